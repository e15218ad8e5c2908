package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/evonomics/config"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
	LogFormat  string // "json" | "text"
	Verbose    bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "evonomics",
		Short: "Artificial life with a food market",
		Long: `Evonomics evolves bytecode brains on a toroidal grid. Agents eat, move,
divide and merge, and trade food for money in a double auction backed by a
central reserve.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(opts); err != nil {
				return err
			}
			// Initialize config before anything else
			return config.Init(opts.ConfigPath)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config.yaml (empty = use defaults)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "json", "log format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newServeCommand())

	return cmd
}

// setupLogging installs the default slog logger on stdout.
func setupLogging(opts *rootOptions) error {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch opts.LogFormat {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, hopts)
	case "text":
		handler = slog.NewTextHandler(os.Stdout, hopts)
	default:
		return fmt.Errorf("invalid log format %q: must be json or text", opts.LogFormat)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}
