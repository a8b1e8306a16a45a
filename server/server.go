// Package server exposes a Wingman over loopback HTTP for editor
// integrations.
//
// Routes:
//
//	GET  /health          {ok, port, model}
//	GET  /context         current editor context
//	POST /context         replace the editor context
//	GET  /inline          stream a completion for the editor context
//	POST /generate        stream a free-form prompt
//	POST /abort           stop the active generation
//	POST /writeback       queue code for a file
//	GET  /writeback?file= take the queued code for a file
//	POST /reload-config   reapply the settings file
//
// Streams use text/event-stream framing from package sse. Every other
// request gets 404 {"error": "Not found"}.
package server

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hupe1980/wingman/core"
	"github.com/hupe1980/wingman/logging"
	"github.com/hupe1980/wingman/runner"
)

// Port discovery defaults, shared with package client through core.
const (
	DefaultHost  = core.DefaultHost
	DefaultPort  = core.DefaultPort
	PortFileName = core.PortFileName
)

// PortFilePath returns where the bound port is published.
func PortFilePath() string { return core.PortFilePath() }

// Service is the Wingman surface served over HTTP. *wingman.Wingman
// satisfies it.
type Service interface {
	ModelID() (string, bool)
	Context() core.EditorContext
	SetContext(c core.EditorContext) core.EditorContext
	Generate(ctx context.Context, prompt string, sink runner.Sink) error
	Inline(ctx context.Context, sink runner.Sink) error
	Abort()
	PutWriteback(p core.WritebackPayload) error
	TakeWriteback(file string) core.WritebackPayload
	ReloadConfig(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	// Host defaults to DefaultHost.
	Host string
	// Port defaults to DefaultPort. Zero binds an ephemeral port directly.
	Port int
	// PortFile defaults to PortFilePath(). Set DisablePortFile to skip it.
	PortFile        string
	DisablePortFile bool
	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger
}

// Server routes HTTP requests to a Service.
type Server struct {
	svc    Service
	opts   Options
	router *gin.Engine
	logger logging.Logger
	port   atomic.Int64
}

// New creates a Server for svc.
func New(svc Service, optFns ...func(o *Options)) *Server {
	opts := Options{
		Host:     DefaultHost,
		Port:     DefaultPort,
		PortFile: PortFilePath(),
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.PortFile == "" {
		opts.PortFile = PortFilePath()
	}

	s := &Server{
		svc:    svc,
		opts:   opts,
		logger: logging.OrNoOp(opts.Logger),
	}
	s.port.Store(int64(DefaultPort))
	s.router = s.routes()

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Port returns the bound port, or DefaultPort before Start.
func (s *Server) Port() int { return int(s.port.Load()) }

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// Editor webviews call from arbitrary origins.
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type"},
	}))

	router.Use(LoggingMiddleware(s.logger))

	h := &handlers{svc: s.svc, logger: s.logger, port: s.Port}

	router.GET("/health", h.Health)
	router.GET("/context", h.GetContext)
	router.POST("/context", h.PostContext)
	router.GET("/inline", h.Inline)
	router.POST("/generate", h.Generate)
	router.POST("/abort", h.Abort)
	router.POST("/writeback", h.PostWriteback)
	router.GET("/writeback", h.GetWriteback)
	router.POST("/reload-config", h.ReloadConfig)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": core.NotFoundMessage})
	})

	return router
}
