package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mixctl/mixctl/internal/coordinator"
	"github.com/mixctl/mixctl/internal/protocol"
	"github.com/mixctl/mixctl/internal/registry"
)

// handle executes one validated command against the volume engine.
func (s *Server) handle(ctx context.Context, cmd protocol.Command) (any, error) {
	switch cmd := cmd.(type) {
	case protocol.GetSources:
		sources := s.registry.All()
		return map[string]any{"sources": sources, "count": len(sources)}, nil

	case protocol.SetVolume:
		changes, err := s.coord.SetVolume(ctx, cmd.SourceID, cmd.Volume)
		if err != nil {
			return nil, s.foldActuation(ctx, err)
		}
		return map[string]any{"changes": changes}, nil

	case protocol.GetVolume:
		src, ok := s.registry.Get(cmd.SourceID)
		if !ok {
			return nil, fmt.Errorf("%w: %q", registry.ErrUnknownSource, cmd.SourceID)
		}
		return map[string]any{"volume": src.Volume}, nil

	case protocol.SetMute:
		if err := s.coord.SetMute(ctx, cmd.SourceID, cmd.Muted); err != nil {
			return nil, s.foldActuation(ctx, err)
		}
		return map[string]any{"sourceId": cmd.SourceID, "muted": cmd.Muted}, nil

	case protocol.SetMode:
		changes, err := s.coord.SetPolicy(ctx, cmd.Mode)
		if err != nil {
			return nil, s.foldActuation(ctx, err)
		}
		return map[string]any{"mode": cmd.Mode, "changes": changes}, nil

	case protocol.GetMode:
		return map[string]any{"mode": s.coord.Policy()}, nil

	case protocol.SetMasterVolume:
		changes, err := s.coord.SetMasterVolume(ctx, cmd.Volume)
		if err != nil {
			return nil, s.foldActuation(ctx, err)
		}
		return map[string]any{"changes": changes}, nil

	case protocol.ToggleMuteAll:
		muted, err := s.coord.ToggleMuteAll(ctx)
		if err != nil {
			return nil, s.foldActuation(ctx, err)
		}
		return map[string]any{"muted": muted}, nil

	case protocol.SourceEvent:
		if cmd.Playing {
			created := s.registry.ObserveStarted(cmd.SourceID)
			if created {
				s.logger.Info("source tracked", "source_id", cmd.SourceID)
			}
			return map[string]any{"sourceId": cmd.SourceID, "tracked": true}, nil
		}
		if s.registry.ObserveStopped(cmd.SourceID) {
			s.logger.Info("source untracked", "source_id", cmd.SourceID)
		}
		return map[string]any{"sourceId": cmd.SourceID, "tracked": false}, nil

	case protocol.Ping:
		return map[string]any{
			"pong":         true,
			"uptimeMillis": time.Since(s.started).Milliseconds(),
			"sources":      s.registry.Count(),
			"mode":         s.coord.Policy(),
		}, nil

	default:
		return nil, fmt.Errorf("unhandled command %T", cmd)
	}
}

// foldActuation counts collaborator failures before handing the error
// back to the response path.
func (s *Server) foldActuation(ctx context.Context, err error) error {
	var aerr *coordinator.ActuationError
	if errors.As(err, &aerr) {
		s.metrics.ActuationErrors.Add(ctx, 1)
	}
	return err
}
