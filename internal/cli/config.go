package cli

import (
	"fmt"

	"github.com/hupe1980/wingman/logging"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the settings file",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings (API key redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := root.settingsStore(root.logger(cmd.ErrOrStderr()).WithComponent("settings"))
			if err != nil {
				return err
			}
			cfg, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return fmt.Errorf("encode settings: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the settings file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := root.settingsStore(logging.NoOpLogger{})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), store.Path())
			return err
		},
	}

	cmd.AddCommand(show, newConfigSetCmd(root), path)
	return cmd
}

type configSetOptions struct {
	provider    string
	modelID     string
	backendURL  string
	apiKey      string
	temperature float64
}

func newConfigSetCmd(root *rootOptions) *cobra.Command {
	opts := &configSetOptions{}

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update the settings file",
		Long:  "set changes only the given fields. A running server watching the file picks the change up.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := root.settingsStore(root.logger(cmd.ErrOrStderr()).WithComponent("settings"))
			if err != nil {
				return err
			}
			cfg, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("provider") {
				cfg.Provider = opts.provider
			}
			if flags.Changed("model") {
				cfg.ModelID = opts.modelID
			}
			if flags.Changed("backend-url") {
				cfg.BackendURL = opts.backendURL
			}
			if flags.Changed("api-key") {
				cfg.APIKey = opts.apiKey
			}
			if flags.Changed("temperature") {
				cfg.Temperature = opts.temperature
			}

			saved, err := store.Save(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(saved.Redacted())
			if err != nil {
				return fmt.Errorf("encode settings: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.provider, "provider", "", "provider (openai, anthropic, google, ollama)")
	cmd.Flags().StringVar(&opts.modelID, "model", "", "model id")
	cmd.Flags().StringVar(&opts.backendURL, "backend-url", "", "endpoint override")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "API key")
	cmd.Flags().Float64Var(&opts.temperature, "temperature", 0, "sampling temperature, clamped to [0,1]")

	return cmd
}
