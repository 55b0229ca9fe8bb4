package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeanhaley32/ouinet-shell/internal/platform"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ouinet-shell",
		Short:         "Host shell for the Ouinet caching client",
		Long:          "Prepares an install directory, configures and supervises the Ouinet client, and relays host signals and injector credentials to it.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.String("install-dir", "", "Install directory (default $OUINET_SHELL_HOME or ~/.ouinet-shell/ouinet)")
	pf.String("config", "", "Settings file (default ~/.ouinet-shell/config.yaml if present)")
	pf.StringSlice("env-file", []string{".env"}, "Files loaded into the environment before reading settings")
	pf.String("log-level", "info", "Shell log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Shell log format (text, json)")

	rootCmd.AddCommand(
		newInitCmd(),
		newArgsCmd(),
		newRunCmd(),
		newStopCmd(),
		newStatusCmd(),
		newCredentialsCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, fmt.Errorf("invalid log-level flag: %w", err)
	}
	format, err := cmd.Flags().GetString("log-format")
	if err != nil {
		return nil, fmt.Errorf("invalid log-format flag: %w", err)
	}
	return buildLogger(cmd.ErrOrStderr(), level, format)
}

func buildLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", format)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ouinet-shell version %s\n", version)
			fmt.Fprintf(out, "Platform: %s\n", platform.Detect())
		},
	}
}
