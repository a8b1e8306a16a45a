package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hupe1980/wingman/core"
	"github.com/hupe1980/wingman/logging"
	"github.com/hupe1980/wingman/sse"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 8 << 20

type handlers struct {
	svc    Service
	logger logging.Logger
	port   func() int
}

// Health handles GET /health
func (h *handlers) Health(c *gin.Context) {
	var modelID any
	if id, ok := h.svc.ModelID(); ok {
		modelID = id
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "port": h.port(), "model": modelID})
}

// GetContext handles GET /context
func (h *handlers) GetContext(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Context())
}

// PostContext handles POST /context
func (h *handlers) PostContext(c *gin.Context) {
	var next core.EditorContext
	h.bindLenient(c, &next)

	h.svc.SetContext(next)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Inline handles GET /inline
func (h *handlers) Inline(c *gin.Context) {
	sink := newStreamSink(c)
	if err := h.svc.Inline(c.Request.Context(), sink); err != nil {
		h.writeError(c, sink, err)
	}
}

type generateRequest struct {
	Prompt string
}

// UnmarshalJSON keeps only a string prompt.
func (r *generateRequest) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	_ = json.Unmarshal(fields["prompt"], &r.Prompt)
	return nil
}

// Generate handles POST /generate
func (h *handlers) Generate(c *gin.Context) {
	var req generateRequest
	h.bindLenient(c, &req)

	sink := newStreamSink(c)
	if err := h.svc.Generate(c.Request.Context(), req.Prompt, sink); err != nil {
		h.writeError(c, sink, err)
	}
}

// Abort handles POST /abort
func (h *handlers) Abort(c *gin.Context) {
	h.svc.Abort()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// PostWriteback handles POST /writeback
func (h *handlers) PostWriteback(c *gin.Context) {
	var payload core.WritebackPayload
	h.bindLenient(c, &payload)

	if err := h.svc.PutWriteback(payload); err != nil {
		h.writeError(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetWriteback handles GET /writeback
func (h *handlers) GetWriteback(c *gin.Context) {
	file := c.Query("file")
	if file == "" {
		h.writeError(c, nil, core.NewValidationError("file", "file query param is required"))
		return
	}
	c.JSON(http.StatusOK, h.svc.TakeWriteback(file))
}

// ReloadConfig handles POST /reload-config
func (h *handlers) ReloadConfig(c *gin.Context) {
	if err := h.svc.ReloadConfig(c.Request.Context()); err != nil {
		h.writeError(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// bindLenient decodes the body into v. Unreadable or malformed bodies leave v
// at its zero value, which every route treats as an empty object.
func (h *handlers) bindLenient(c *gin.Context, v any) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil || len(body) == 0 {
		return
	}
	if err := json.Unmarshal(body, v); err != nil {
		h.logger.Debug("ignoring malformed request body", "path", c.Request.URL.Path, "error", err)
	}
}

// writeError maps err onto a status code. Nothing is written once a stream
// has started.
func (h *handlers) writeError(c *gin.Context, sink *streamSink, err error) {
	if sink != nil && sink.Started() {
		return
	}

	var validation *core.ValidationError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message})
	case errors.Is(err, core.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": core.NotConfiguredMessage})
	case errors.Is(err, core.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": core.BusyMessage})
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": core.NotFoundMessage})
	case c.Request.Context().Err() != nil:
		// Client is gone.
		c.Abort()
	default:
		h.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// streamSink writes relay chunks as SSE events. Headers are sent with the
// first chunk so that admission failures can still produce JSON errors.
type streamSink struct {
	c       *gin.Context
	started bool
}

func newStreamSink(c *gin.Context) *streamSink { return &streamSink{c: c} }

// Started reports whether any chunk was written.
func (s *streamSink) Started() bool { return s.started }

// WriteChunk implements runner.Sink.
func (s *streamSink) WriteChunk(data string) error {
	w := s.c.Writer
	if !s.started {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		s.started = true
	}

	if _, err := io.WriteString(w, sse.Encode(data)); err != nil {
		return err
	}
	w.Flush()

	return s.c.Request.Context().Err()
}
