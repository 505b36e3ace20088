// Package main is the entry point for the mixd volume coordination daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mixctl/mixctl/internal/actuator"
	"github.com/mixctl/mixctl/internal/config"
	"github.com/mixctl/mixctl/internal/coordinator"
	"github.com/mixctl/mixctl/internal/daemon"
	"github.com/mixctl/mixctl/internal/observe"
	"github.com/mixctl/mixctl/internal/protocol"
	"github.com/mixctl/mixctl/internal/registry"
)

var (
	// Build-time variables
	version = "dev"
)

// stdioPipe joins stdin and stdout into the native-messaging transport.
type stdioPipe struct {
	io.Reader
	io.Writer
}

func main() {
	configPath := flag.String("config", "", "Path to config file (default ~/.config/mixctl/mixd.toml)")
	socketPath := flag.String("socket", "", "Unix socket path for local clients (overrides config)")
	noStdio := flag.Bool("no-stdio", false, "Do not serve the stdio transport (socket-only operation)")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("mixd version", version)
		os.Exit(0)
	}

	// Logs go to stderr: stdout belongs to the framed protocol.
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := run(logger, *configPath, *socketPath, *noStdio); err != nil {
		logger.Error("daemon failed", "error", err)
		os.Exit(1)
	}
	logger.Info("mixd stopped")
}

func run(logger *slog.Logger, configPath, socketOverride string, noStdio bool) error {
	logger.Info("starting mixd", "version", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	socketPath := cfg.Daemon.SocketPath
	if socketOverride != "" {
		socketPath = socketOverride
	}
	if noStdio && socketPath == "" {
		socketPath = config.DefaultSocketPath()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var metricsHandler http.Handler
	if cfg.Daemon.MetricsListen != "" {
		handler, shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    "mixd",
			ServiceVersion: version,
		})
		if err != nil {
			return fmt.Errorf("failed to initialise metrics: %w", err)
		}
		metricsHandler = handler
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			if err := shutdown(sctx); err != nil {
				logger.Warn("metrics shutdown failed", "error", err)
			}
		}()
	}

	reg := registry.New()
	coord := coordinator.New(reg, actuator.Logged(logger), protocol.Mode(cfg.Mixer.InitialMode), logger)
	srv := daemon.NewServer(cfg, reg, coord, nil, logger)

	// Hot-reload retunable settings when the config file changes.
	watchPath := configPath
	if watchPath == "" {
		if watchPath, err = config.Path(); err != nil {
			return err
		}
	}
	watcher, err := config.NewWatcher(watchPath, logger)
	if err != nil {
		logger.Warn("config watcher unavailable", "error", err)
	} else {
		watcher.SetReloadCallback(srv.ApplyConfig)
		watcher.SetErrorCallback(func(err error) {
			logger.Warn("ignoring invalid config change", "error", err)
		})
		if err := watcher.Start(); err != nil {
			logger.Warn("failed to start config watcher", "error", err)
		}
		defer func() { _ = watcher.Stop() }()
	}

	opts := daemon.RunOptions{
		SocketPath:     socketPath,
		MetricsHandler: metricsHandler,
		MetricsListen:  cfg.Daemon.MetricsListen,
	}
	if !noStdio {
		opts.Stdio = stdioPipe{Reader: os.Stdin, Writer: os.Stdout}
	}

	logger.Info("mixd ready",
		"stdio", !noStdio,
		"socket", socketPath,
		"metrics", cfg.Daemon.MetricsListen,
		"mode", cfg.Mixer.InitialMode,
	)
	return srv.Run(ctx, opts)
}
