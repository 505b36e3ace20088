// Package main provides the CLI entrypoint for mixctl.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mixctl/mixctl/internal/client"
	"github.com/mixctl/mixctl/internal/config"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	globalOpts struct {
		verbose    bool
		socketPath string
		configPath string
	}
	logger *slog.Logger

	// daemonClient is the shared connection to mixd
	daemonClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mixctl",
	Short: "Control the mixd volume coordination daemon",
	Long: `mixctl talks to a running mixd daemon over its Unix socket.

It can inspect tracked audio sources, get and set per-source or master
volume, mute sources, and switch the coordination mode that governs how
a volume change to one source affects the others (independent, linked
or inverse).`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		path, err := resolveSocketPath()
		if err != nil {
			return err
		}

		daemonClient, err = client.Dial(path)
		if err != nil {
			return fmt.Errorf("is mixd running? %w", err)
		}
		logger.Debug("connected to daemon", "socket", path)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if daemonClient != nil {
			return daemonClient.Close()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.socketPath, "socket", "",
		"Path to the mixd socket (default: from config, then $XDG_RUNTIME_DIR/mixd.sock)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/mixctl/mixd.toml)")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// resolveSocketPath picks the daemon socket: flag, then config, then the
// runtime-dir default.
func resolveSocketPath() (string, error) {
	if globalOpts.socketPath != "" {
		return globalOpts.socketPath, nil
	}

	cfg, err := config.Load(globalOpts.configPath)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Daemon.SocketPath != "" {
		return cfg.Daemon.SocketPath, nil
	}
	return config.DefaultSocketPath(), nil
}
