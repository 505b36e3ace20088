// Package daemon wires the mixd pipeline together: framed transport in,
// validation, dispatch with timeout racing, volume coordination, framed
// response out.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mixctl/mixctl/internal/config"
	"github.com/mixctl/mixctl/internal/coordinator"
	"github.com/mixctl/mixctl/internal/dispatch"
	"github.com/mixctl/mixctl/internal/frame"
	"github.com/mixctl/mixctl/internal/observe"
	"github.com/mixctl/mixctl/internal/protocol"
	"github.com/mixctl/mixctl/internal/registry"
)

// Server handles the mixd protocol over any number of framed transports.
type Server struct {
	logger     *slog.Logger
	registry   *registry.Registry
	coord      *coordinator.Coordinator
	dispatcher *dispatch.Dispatcher
	metrics    *observe.Metrics
	started    time.Time

	mu            sync.RWMutex
	maxFrameSize  int
	sweepInterval time.Duration
	maxSourceAge  time.Duration
}

// NewServer creates a Server. metrics may be nil to use the process-wide
// default instruments.
func NewServer(cfg *config.Config, reg *registry.Registry, coord *coordinator.Coordinator, metrics *observe.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Server{
		logger:        logger,
		registry:      reg,
		coord:         coord,
		dispatcher:    dispatch.New(cfg.Dispatch.DefaultTimeout.Duration(), logger),
		metrics:       metrics,
		started:       time.Now(),
		maxFrameSize:  cfg.Transport.MaxFrameSize,
		sweepInterval: cfg.Registry.SweepInterval.Duration(),
		maxSourceAge:  cfg.Registry.MaxSourceAge.Duration(),
	}
}

// ApplyConfig adopts re-tunable settings from a reloaded configuration.
// Transport and socket settings are fixed at startup.
func (s *Server) ApplyConfig(cfg *config.Config) {
	s.dispatcher.SetDefaultTimeout(cfg.Dispatch.DefaultTimeout.Duration())

	s.mu.Lock()
	s.sweepInterval = cfg.Registry.SweepInterval.Duration()
	s.maxSourceAge = cfg.Registry.MaxSourceAge.Duration()
	s.mu.Unlock()

	s.logger.Info("configuration applied",
		"default_timeout", cfg.Dispatch.DefaultTimeout.Duration(),
		"sweep_interval", cfg.Registry.SweepInterval.Duration(),
		"max_source_age", cfg.Registry.MaxSourceAge.Duration(),
	)
}

// ServeConn reads frames from rw until end of stream and serves each
// request. EOF is a clean shutdown signal for the connection, never an
// error; oversized and malformed frames produce error responses and the
// connection keeps going.
func (s *Server) ServeConn(ctx context.Context, rw io.ReadWriter) error {
	s.mu.RLock()
	maxSize := s.maxFrameSize
	s.mu.RUnlock()

	conn := frame.NewConn(rw, maxSize)

	for {
		payload, err := conn.ReadFrame()
		switch {
		case errors.Is(err, io.EOF):
			s.logger.Info("transport disconnected")
			return nil
		case errors.Is(err, frame.ErrFrameTooLarge):
			s.metrics.RecordFrameRejected(ctx, "oversized")
			s.writeResponse(conn, protocol.Fail("", err))
			continue
		case err != nil:
			return err
		}

		s.metrics.FramesDecoded.Add(ctx, 1)
		s.handleFrame(ctx, conn, payload)
	}
}

// handleFrame validates one payload and dispatches it. Validation
// failures never reach the coordinator: they resolve to an immediate
// error response carrying the request's id when one was present.
func (s *Server) handleFrame(ctx context.Context, conn *frame.Conn, payload []byte) {
	env, err := protocol.Parse(payload)
	if err != nil {
		if errors.Is(err, protocol.ErrMalformedPayload) {
			s.metrics.RecordFrameRejected(ctx, "malformed")
		} else {
			s.metrics.RecordFrameRejected(ctx, "invalid")
		}
		s.logger.Debug("rejected request", "id", env.ID, "action", env.Action, "error", err)
		s.writeResponse(conn, protocol.Fail(env.ID, err))
		return
	}

	start := time.Now()
	s.dispatcher.Dispatch(env.ID, env.Timeout, func(hctx context.Context) (any, error) {
		return s.handle(hctx, env.Cmd)
	}, func(requestID string, data any, err error) {
		status := "ok"
		if err != nil {
			status = "error"
			if errors.Is(err, dispatch.ErrTimeout) {
				s.metrics.RequestTimeouts.Add(ctx, 1)
				status = "timeout"
			}
			s.writeResponse(conn, protocol.Fail(requestID, err))
		} else {
			s.writeResponse(conn, protocol.OK(requestID, data))
		}
		s.metrics.RecordRequest(ctx, env.Action, status, time.Since(start).Seconds())
	})
}

// writeResponse marshals and frames one response.
func (s *Server) writeResponse(conn *frame.Conn, resp protocol.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to marshal response", "request_id", resp.RequestID, "error", err)
		return
	}
	if err := conn.WriteFrame(data); err != nil {
		s.logger.Warn("failed to write response", "request_id", resp.RequestID, "error", err)
	}
}

// sweepSettings returns the current liveness knobs.
func (s *Server) sweepSettings() (interval, maxAge time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sweepInterval, s.maxSourceAge
}
