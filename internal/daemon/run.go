package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mixctl/mixctl/internal/registry"
)

// RunOptions selects which transports and background tasks Run supervises.
type RunOptions struct {
	// Stdio, when non-nil, is served as the native-messaging transport.
	// Its EOF ends the whole daemon (clean shutdown signal).
	Stdio io.ReadWriter

	// SocketPath, when non-empty, is a Unix socket for local clients.
	SocketPath string

	// MetricsHandler, when non-nil, is served at MetricsListen/metrics.
	MetricsHandler http.Handler
	MetricsListen  string
}

// Run supervises all serving loops until ctx is cancelled or the stdio
// transport disconnects.
func (s *Server) Run(ctx context.Context, opts RunOptions) error {
	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g.Go(func() error { return s.sweepLoop(ctx) })
	g.Go(func() error { return s.trackSources(ctx) })

	if opts.SocketPath != "" {
		ln, err := s.listenSocket(opts.SocketPath)
		if err != nil {
			return err
		}
		g.Go(func() error { return s.acceptLoop(ctx, ln) })
		g.Go(func() error {
			<-ctx.Done()
			return ln.Close()
		})
	}

	if opts.MetricsListen != "" && opts.MetricsHandler != nil {
		g.Go(func() error { return s.serveMetrics(ctx, opts.MetricsListen, opts.MetricsHandler) })
	}

	if opts.Stdio != nil {
		g.Go(func() error {
			err := s.ServeConn(ctx, opts.Stdio)
			// The browser closed our stdin: shut everything down.
			cancel()
			return err
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// sweepLoop periodically removes sources that stopped reporting.
func (s *Server) sweepLoop(ctx context.Context) error {
	for {
		interval, maxAge := s.sweepSettings()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
			if removed := s.registry.SweepInactive(maxAge); len(removed) > 0 {
				s.logger.Info("swept inactive sources", "removed", removed, "remaining", s.registry.Count())
			}
		}
	}
}

// trackSources mirrors registry membership into the active-sources gauge.
func (s *Server) trackSources(ctx context.Context) error {
	events := s.registry.Subscribe()
	defer s.registry.Unsubscribe(events)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Type {
			case registry.ChangeAdded:
				s.metrics.ActiveSources.Add(ctx, 1)
			case registry.ChangeRemoved, registry.ChangeSwept:
				s.metrics.ActiveSources.Add(ctx, -1)
			}
		}
	}
}

// listenSocket binds the Unix socket, replacing a stale socket file left
// by an unclean shutdown.
func (s *Server) listenSocket(path string) (net.Listener, error) {
	if _, err := os.Stat(path); err == nil {
		if conn, err := net.DialTimeout("unix", path, 250*time.Millisecond); err == nil {
			conn.Close()
			return nil, errors.New("daemon already running on " + path)
		}
		_ = os.Remove(path)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	s.logger.Info("listening", "socket", path)
	return ln, nil
}

// acceptLoop serves each socket client on its own goroutine.
func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		go func() {
			defer conn.Close()
			if err := s.ServeConn(ctx, conn); err != nil {
				s.logger.Warn("connection failed", "remote", conn.RemoteAddr(), "error", err)
			}
		}()
	}
}

// serveMetrics exposes the Prometheus scrape endpoint.
func (s *Server) serveMetrics(ctx context.Context, addr string, handler http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("metrics listening", "addr", addr)
	return srv.ListenAndServe()
}
