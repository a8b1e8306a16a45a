// Package cli implements the wingman command.
package cli

import (
	"context"
	"io"

	"github.com/hupe1980/wingman/client"
	"github.com/hupe1980/wingman/logging"
	"github.com/hupe1980/wingman/settings"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	logLevel     string
	logFormat    string
	url          string
	settingsPath string
}

// Execute runs the wingman command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "wingman",
		Short:         "Wingman: a local generation relay for editor integrations",
		Long:          "wingman serves a single-flight LLM engine over loopback HTTP for editor extensions, and talks to a running server from the shell.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")
	flags.StringVar(&opts.url, "url", "", "server URL (default: discovered from the port file)")
	flags.StringVar(&opts.settingsPath, "settings", "", "settings file (default: per-user app data dir)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newContextCmd(opts),
		newGenerateCmd(opts),
		newInlineCmd(opts),
		newWritebackCmd(opts),
		newHealthCmd(opts),
		newAbortCmd(opts),
		newReloadCmd(opts),
		newConfigCmd(opts),
	)

	return rootCmd
}

func (o *rootOptions) logger(w io.Writer) *logging.StructuredLogger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(o.logLevel),
		Format: o.logFormat,
		Output: w,
	}).WithComponent("wingman")
}

func (o *rootOptions) client(ctx context.Context) (*client.Client, error) {
	if o.url != "" {
		return client.New(o.url)
	}
	return client.Discover(ctx)
}

func (o *rootOptions) settingsStore(logger logging.Logger) (*settings.Store, error) {
	return settings.New(func(so *settings.Options) {
		so.Path = o.settingsPath
		so.Logger = logger
	})
}
