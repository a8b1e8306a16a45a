package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"
)

const readHeaderTimeout = 10 * time.Second

// Handle controls a started server.
type Handle struct {
	Port int
	URL  string

	srv      *http.Server
	portFile string
	done     chan error
	server   *Server
}

// Start binds the preferred port, falling back to an ephemeral one, writes
// the port file and serves in the background.
func (s *Server) Start(ctx context.Context) (*Handle, error) {
	ln, err := s.listen(ctx)
	if err != nil {
		return nil, err
	}

	port := ln.Addr().(*net.TCPAddr).Port
	s.port.Store(int64(port))

	h := &Handle{
		Port:   port,
		URL:    "http://" + net.JoinHostPort(s.opts.Host, strconv.Itoa(port)),
		done:   make(chan error, 1),
		server: s,
		srv: &http.Server{
			Handler:           s.router,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}

	if !s.opts.DisablePortFile {
		if err := os.WriteFile(s.opts.PortFile, []byte(strconv.Itoa(port)), 0o644); err != nil {
			_ = ln.Close()
			return nil, fmt.Errorf("write port file: %w", err)
		}
		h.portFile = s.opts.PortFile
	}

	go func() {
		err := h.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		h.done <- err
		close(h.done)
	}()

	s.logger.Info("wingman server listening", "url", h.URL, "port_file", h.portFile)

	return h, nil
}

func (s *Server) listen(ctx context.Context) (net.Listener, error) {
	var lc net.ListenConfig

	if s.opts.Port != 0 {
		addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
		ln, err := lc.Listen(ctx, "tcp", addr)
		if err == nil {
			return ln, nil
		}
		s.logger.Warn("preferred port unavailable, using an ephemeral port", "addr", addr, "error", err)
	}

	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(s.opts.Host, "0"))
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return ln, nil
}

// Done receives the serve error (nil after a clean shutdown) and is then
// closed.
func (h *Handle) Done() <-chan error { return h.done }

// Shutdown stops accepting requests, waits for active ones until ctx ends
// and removes the port file.
func (h *Handle) Shutdown(ctx context.Context) error {
	err := h.srv.Shutdown(ctx)

	if h.portFile != "" {
		if rmErr := removeIfOwned(h.portFile, h.Port); rmErr != nil {
			h.server.logger.Warn("remove port file", "path", h.portFile, "error", rmErr)
		}
	}

	return err
}

// removeIfOwned deletes the port file unless another server has since
// replaced it.
func removeIfOwned(path string, port int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if string(data) != strconv.Itoa(port) {
		return nil
	}
	return os.Remove(path)
}
