// Package client talks to a running Wingman server.
//
//	c, err := client.Discover(ctx)
//	if err != nil { ... }
//	_ = c.PostContext(ctx, core.EditorContext{File: core.String("main.go")})
//	stream, err := c.Generate(ctx, "explain this file")
//	text, err := stream.Collect(func(chunk string) { fmt.Print(chunk) })
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/hupe1980/wingman/core"
	"github.com/hupe1980/wingman/sse"
)

// Health is the GET /health response. Model is nil when unconfigured.
type Health struct {
	OK    bool    `json:"ok"`
	Port  int     `json:"port"`
	Model *string `json:"model"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("wingman request failed (%d): %s", e.Code, e.Message)
}

// Is maps well-known status codes onto the core sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case core.ErrValidation:
		return e.Code == http.StatusBadRequest
	case core.ErrNotFound:
		return e.Code == http.StatusNotFound
	case core.ErrBusy:
		return e.Code == http.StatusConflict
	case core.ErrNotConfigured:
		return e.Code == http.StatusServiceUnavailable
	}
	return false
}

// Options configures a Client.
type Options struct {
	// HTTPClient defaults to a client without timeout, since streams are
	// long-lived.
	HTTPClient *http.Client
}

// Client is a Wingman HTTP client.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// New creates a client for baseURL, e.g. "http://127.0.0.1:7891".
func New(baseURL string, optFns ...func(o *Options)) (*Client, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	return &Client{baseURL: u, httpClient: opts.HTTPClient}, nil
}

// ReadPort returns the port published in path, or fallback when the file is
// missing or unparsable.
func ReadPort(path string, fallback int) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	port, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || port <= 0 || port > 65535 {
		return fallback
	}
	return port
}

// Discover creates a client for the server on this machine, using the
// published port file and falling back to the default port.
func Discover(ctx context.Context, optFns ...func(o *Options)) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	port := ReadPort(core.PortFilePath(), core.DefaultPort)
	return New("http://"+net.JoinHostPort(core.DefaultHost, strconv.Itoa(port)), optFns...)
}

// BaseURL returns the server URL.
func (c *Client) BaseURL() string { return strings.TrimSuffix(c.baseURL.String(), "/") }

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.doJSON(ctx, http.MethodGet, "health", nil, nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Context calls GET /context.
func (c *Client) Context(ctx context.Context) (core.EditorContext, error) {
	var ec core.EditorContext
	err := c.doJSON(ctx, http.MethodGet, "context", nil, nil, &ec)
	return ec, err
}

// PostContext calls POST /context.
func (c *Client) PostContext(ctx context.Context, ec core.EditorContext) error {
	return c.doJSON(ctx, http.MethodPost, "context", nil, ec, nil)
}

// Generate calls POST /generate. The caller must Close the stream.
func (c *Client) Generate(ctx context.Context, prompt string) (*sse.Reader, error) {
	return c.stream(ctx, http.MethodPost, "generate", map[string]string{"prompt": prompt})
}

// Inline calls GET /inline. The caller must Close the stream.
func (c *Client) Inline(ctx context.Context) (*sse.Reader, error) {
	return c.stream(ctx, http.MethodGet, "inline", nil)
}

// Abort calls POST /abort.
func (c *Client) Abort(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "abort", nil, nil, nil)
}

// PutWriteback calls POST /writeback.
func (c *Client) PutWriteback(ctx context.Context, p core.WritebackPayload) error {
	return c.doJSON(ctx, http.MethodPost, "writeback", nil, p, nil)
}

// TakeWriteback calls GET /writeback. An all-null payload means nothing was
// pending.
func (c *Client) TakeWriteback(ctx context.Context, file string) (core.WritebackPayload, error) {
	var p core.WritebackPayload
	err := c.doJSON(ctx, http.MethodGet, "writeback", url.Values{"file": {file}}, nil, &p)
	return p, err
}

// ReloadConfig calls POST /reload-config.
func (c *Client) ReloadConfig(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "reload-config", nil, nil, nil)
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s /%s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) stream(ctx context.Context, method, path string, body any) (*sse.Reader, error) {
	req, err := c.newRequest(ctx, method, path, nil, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s /%s: %w", method, path, err)
	}

	if err := checkResponse(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return sse.NewReader(resp.Body), nil
}

const maxErrorBody = 64 << 10

func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload sse.ErrorPayload
	msg := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		msg = payload.Error
	}

	return &StatusError{Code: resp.StatusCode, Message: msg}
}

// IsUnavailable reports whether err means no server is listening.
func IsUnavailable(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
