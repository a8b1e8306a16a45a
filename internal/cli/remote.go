package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hupe1980/wingman/client"
	"github.com/hupe1980/wingman/core"
	"github.com/hupe1980/wingman/sse"
	"github.com/spf13/cobra"
)

type contextOptions struct {
	file      string
	line      int
	selection string
	code      string
	codeFile  string
}

func newContextCmd(root *rootOptions) *cobra.Command {
	opts := &contextOptions{}

	cmd := &cobra.Command{
		Use:   "context",
		Short: "Push the editor context to a running server",
		Long:  "context replaces the server's editor context. Flags that are not given are sent as null.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ec := core.EditorContext{File: core.String(opts.file)}
			if cmd.Flags().Changed("line") {
				ec.Line = core.Int(opts.line)
			}
			if cmd.Flags().Changed("selection") {
				ec.Selection = core.String(opts.selection)
			}

			switch {
			case opts.codeFile != "":
				data, err := readInput(cmd, opts.codeFile)
				if err != nil {
					return err
				}
				ec.SurroundingCode = core.String(data)
			case cmd.Flags().Changed("code"):
				ec.SurroundingCode = core.String(opts.code)
			}

			c, err := root.client(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.PostContext(cmd.Context(), ec); err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return err
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "path of the active file")
	cmd.Flags().IntVar(&opts.line, "line", 0, "cursor line")
	cmd.Flags().StringVar(&opts.selection, "selection", "", "selected text")
	cmd.Flags().StringVar(&opts.code, "code", "", "code surrounding the cursor")
	cmd.Flags().StringVar(&opts.codeFile, "code-file", "", "read the surrounding code from a file (- for stdin)")
	_ = cmd.MarkFlagRequired("file")
	cmd.MarkFlagsMutuallyExclusive("code", "code-file")

	return cmd
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "generate PROMPT...",
		Short: "Stream a generation for a prompt to stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			return streamTo(cmd, root, func(ctx context.Context, c *client.Client) (*sse.Reader, error) {
				return c.Generate(ctx, prompt)
			})
		},
	}
}

func newInlineCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inline",
		Short: "Stream an inline completion for the current editor context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return streamTo(cmd, root, func(ctx context.Context, c *client.Client) (*sse.Reader, error) {
				return c.Inline(ctx)
			})
		},
	}
}

// streamTo prints the stream's chunks as they arrive. Interrupting the
// command disconnects, which aborts the generation on the server.
func streamTo(cmd *cobra.Command, root *rootOptions, open func(ctx context.Context, c *client.Client) (*sse.Reader, error)) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := root.client(ctx)
	if err != nil {
		return err
	}

	stream, err := open(ctx, c)
	if err != nil {
		return err
	}
	defer stream.Close()

	out := cmd.OutOrStdout()
	var writeErr error
	_, err = stream.Collect(func(chunk string) {
		if writeErr == nil {
			_, writeErr = io.WriteString(out, chunk)
		}
	})
	if writeErr != nil {
		return writeErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out)
	return err
}

type writebackPutOptions struct {
	line     int
	code     string
	codeFile string
}

func newWritebackCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "writeback",
		Short: "Queue or take generated code for an editor file",
	}

	get := &cobra.Command{
		Use:   "get FILE",
		Short: "Take the pending writeback for FILE (printed as JSON)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := root.client(cmd.Context())
			if err != nil {
				return err
			}
			p, err := c.TakeWriteback(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}

	opts := &writebackPutOptions{}
	put := &cobra.Command{
		Use:   "put FILE",
		Short: "Queue code for FILE, replacing any pending writeback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := core.WritebackPayload{File: core.String(args[0])}
			if cmd.Flags().Changed("line") {
				p.Line = core.Int(opts.line)
			}
			switch {
			case opts.codeFile != "":
				data, err := readInput(cmd, opts.codeFile)
				if err != nil {
					return err
				}
				p.Code = core.String(data)
			case cmd.Flags().Changed("code"):
				p.Code = core.String(opts.code)
			}

			c, err := root.client(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.PutWriteback(cmd.Context(), p); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return err
		},
	}
	put.Flags().IntVar(&opts.line, "line", 0, "line the code belongs to")
	put.Flags().StringVar(&opts.code, "code", "", "code to write back")
	put.Flags().StringVar(&opts.codeFile, "code-file", "", "read the code from a file (- for stdin)")
	put.MarkFlagsMutuallyExclusive("code", "code-file")

	cmd.AddCommand(get, put)
	return cmd
}

func newHealthCmd(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show the status of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := root.client(cmd.Context())
			if err != nil {
				return err
			}
			h, err := c.Health(cmd.Context())
			if err != nil {
				if client.IsUnavailable(err) {
					return fmt.Errorf("no wingman server at %s: %w", c.BaseURL(), err)
				}
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(h)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderHealth(h, c.BaseURL()))
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")

	return cmd
}

func newAbortCmd(root *rootOptions) *cobra.Command {
	return simpleCall("abort", "Stop the active generation", root, func(ctx context.Context, c *client.Client) error {
		return c.Abort(ctx)
	})
}

func newReloadCmd(root *rootOptions) *cobra.Command {
	return simpleCall("reload", "Make the server reapply its settings file", root, func(ctx context.Context, c *client.Client) error {
		return c.ReloadConfig(ctx)
	})
}

func simpleCall(use, short string, root *rootOptions, call func(ctx context.Context, c *client.Client) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := root.client(cmd.Context())
			if err != nil {
				return err
			}
			if err := call(cmd.Context(), c); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return err
		},
	}
}
