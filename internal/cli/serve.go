package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hupe1980/wingman"
	"github.com/hupe1980/wingman/core"
	"github.com/hupe1980/wingman/logging"
	"github.com/hupe1980/wingman/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	port     int
	portFile string
	noWatch  bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Wingman server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, root, opts)
		},
	}

	cmd.Flags().IntVar(&opts.port, "port", server.DefaultPort, "preferred port (0 for an ephemeral port)")
	cmd.Flags().StringVar(&opts.portFile, "port-file", server.PortFilePath(), "file the bound port is written to")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "do not reload when the settings file changes")

	return cmd
}

func runServe(cmd *cobra.Command, root *rootOptions, opts *serveOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := root.logger(cmd.ErrOrStderr())
	if logging.ParseLevel(root.logLevel) != logging.LogLevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := root.settingsStore(logger.WithComponent("settings"))
	if err != nil {
		return err
	}

	w := wingman.New(func(o *wingman.Options) {
		o.Settings = store
		o.Logger = logger
	})
	if err := w.ReloadConfig(ctx); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	srv := server.New(w, func(o *server.Options) {
		o.Port = opts.port
		o.PortFile = opts.portFile
		o.Logger = logger.WithComponent("server")
	})

	h, err := srv.Start(ctx)
	if err != nil {
		return err
	}

	if !opts.noWatch {
		err := store.Watch(ctx, func(cfg core.AgentConfiguration) {
			w.Reconfigure(ctx, cfg)
			logger.Info("settings reloaded", "configured", w.Status().Configured)
		})
		if err != nil {
			logger.Warn("settings watcher disabled", "error", err)
		}
	}

	modelID, _ := w.ModelID()
	fmt.Fprintln(cmd.OutOrStdout(), renderServing(h.URL, w.Status(), modelID))

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-h.Done():
	}

	w.Abort()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", "error", err)
	}

	return serveErr
}
