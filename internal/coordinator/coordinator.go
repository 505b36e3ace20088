// Package coordinator computes how volume and mute changes propagate
// across the tracked source set under the active coordination policy and
// drives the actuator for every affected source.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/mixctl/mixctl/internal/actuator"
	"github.com/mixctl/mixctl/internal/protocol"
	"github.com/mixctl/mixctl/internal/registry"
)

// Change records the volume applied to one source by an operation.
type Change struct {
	SourceID string `json:"sourceId"`
	Volume   int    `json:"volume"`
}

// ActuationError reports a collaborator failure for one source. The
// registry mutation it accompanies is not rolled back: observed volume
// reflects intent, not confirmed hardware state.
type ActuationError struct {
	SourceID string
	Err      error
}

func (e *ActuationError) Error() string {
	return fmt.Sprintf("actuation failed for source %q: %v", e.SourceID, e.Err)
}

func (e *ActuationError) Unwrap() error { return e.Err }

// Coordinator owns the coordination policy and applies policy arithmetic
// over registry snapshots. A single mutex serializes every operation so
// the redistribution math always reads a stable source set before
// writing any of it.
type Coordinator struct {
	mu       sync.Mutex
	policy   protocol.Mode
	registry *registry.Registry
	actuator actuator.Actuator
	logger   *slog.Logger
}

// New creates a Coordinator with the given initial policy.
func New(reg *registry.Registry, act actuator.Actuator, initial protocol.Mode, logger *slog.Logger) *Coordinator {
	if initial == "" {
		initial = protocol.ModeIndependent
	}
	if act == nil {
		act = actuator.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		policy:   initial,
		registry: reg,
		actuator: act,
		logger:   logger,
	}
}

// Policy returns the active coordination policy.
func (c *Coordinator) Policy() protocol.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy
}

// SetVolume applies a user-initiated volume change to one source and
// redistributes across the rest per the active policy. It returns the
// new state of every affected source. Actuation failures are returned
// alongside the changes; the in-memory state keeps the intended values.
func (c *Coordinator) SetVolume(ctx context.Context, sourceID string, newVolume int) ([]Change, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target, ok := c.registry.Get(sourceID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", registry.ErrUnknownSource, sourceID)
	}
	newVolume = clamp(newVolume)

	switch c.policy {
	case protocol.ModeLinked:
		return c.setLinked(ctx, target, newVolume)
	case protocol.ModeInverse:
		return c.setInverse(ctx, target, newVolume)
	default:
		change, err := c.apply(ctx, sourceID, newVolume)
		return []Change{change}, err
	}
}

// setLinked scales every source by newVolume/oldVolume. A zero old
// volume cannot produce a ratio, so every source is set to newVolume.
func (c *Coordinator) setLinked(ctx context.Context, target registry.AudioSource, newVolume int) ([]Change, error) {
	sources := c.registry.All()
	changes := make([]Change, 0, len(sources))
	var errs []error

	if target.Volume == 0 {
		for _, src := range sources {
			change, err := c.apply(ctx, src.ID, newVolume)
			changes = append(changes, change)
			errs = append(errs, err)
		}
		return changes, errors.Join(errs...)
	}

	ratio := float64(newVolume) / float64(target.Volume)
	for _, src := range sources {
		scaled := clamp(int(math.Round(float64(src.Volume) * ratio)))
		change, err := c.apply(ctx, src.ID, scaled)
		changes = append(changes, change)
		errs = append(errs, err)
	}
	return changes, errors.Join(errs...)
}

// setInverse treats 100*n volume units as a fixed budget: the target
// takes newVolume and the remainder is split evenly across the others.
// With fewer than two sources there is nobody to redistribute to and the
// policy degenerates to independent.
func (c *Coordinator) setInverse(ctx context.Context, target registry.AudioSource, newVolume int) ([]Change, error) {
	sources := c.registry.All()
	n := len(sources)
	if n < 2 {
		change, err := c.apply(ctx, target.ID, newVolume)
		return []Change{change}, err
	}

	changes := make([]Change, 0, n)
	var errs []error

	change, err := c.apply(ctx, target.ID, newVolume)
	changes = append(changes, change)
	errs = append(errs, err)

	remaining := 100*n - newVolume
	share := clamp(int(math.Round(float64(remaining) / float64(n-1))))
	for _, src := range sources {
		if src.ID == target.ID {
			continue
		}
		change, err := c.apply(ctx, src.ID, share)
		changes = append(changes, change)
		errs = append(errs, err)
	}
	return changes, errors.Join(errs...)
}

// SetMute applies a mute state to one source.
func (c *Coordinator) SetMute(ctx context.Context, sourceID string, muted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	src, ok := c.registry.Get(sourceID)
	if !ok {
		return fmt.Errorf("%w: %q", registry.ErrUnknownSource, sourceID)
	}
	if src.Muted == muted {
		return nil
	}

	if err := c.registry.SetMuted(sourceID, muted); err != nil {
		return err
	}
	return c.actuate(ctx, sourceID, src.Volume, muted)
}

// SetMasterVolume applies one volume to every tracked source.
func (c *Coordinator) SetMasterVolume(ctx context.Context, volume int) ([]Change, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	volume = clamp(volume)
	sources := c.registry.All()
	changes := make([]Change, 0, len(sources))
	var errs []error
	for _, src := range sources {
		change, err := c.apply(ctx, src.ID, volume)
		changes = append(changes, change)
		errs = append(errs, err)
	}
	return changes, errors.Join(errs...)
}

// ToggleMuteAll mutes every source, or unmutes every source when all are
// already muted. It returns the resulting mute state.
func (c *Coordinator) ToggleMuteAll(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sources := c.registry.All()
	if len(sources) == 0 {
		return false, nil
	}
	allMuted := true
	for _, src := range sources {
		if !src.Muted {
			allMuted = false
			break
		}
	}
	muted := !allMuted

	var errs []error
	for _, src := range sources {
		if src.Muted == muted {
			continue
		}
		if err := c.registry.SetMuted(src.ID, muted); err != nil {
			errs = append(errs, err)
			continue
		}
		errs = append(errs, c.actuate(ctx, src.ID, src.Volume, muted))
	}
	return muted, errors.Join(errs...)
}

// SetPolicy switches the coordination policy. Switching into linked sets
// every source to the current average; switching into inverse sets every
// source to the even budget split; independent applies no normalization.
// Setting the already-active policy is a no-op.
func (c *Coordinator) SetPolicy(ctx context.Context, mode protocol.Mode) ([]Change, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if mode == c.policy {
		return nil, nil
	}
	c.policy = mode
	c.logger.Info("coordination policy changed", "mode", mode)

	sources := c.registry.All()
	n := len(sources)
	if n == 0 {
		return nil, nil
	}

	var level int
	switch mode {
	case protocol.ModeLinked:
		total := 0
		for _, src := range sources {
			total += src.Volume
		}
		level = clamp(int(math.Round(float64(total) / float64(n))))
	case protocol.ModeInverse:
		level = clamp(int(math.Round(100 / float64(n))))
	default:
		return nil, nil
	}

	changes := make([]Change, 0, n)
	var errs []error
	for _, src := range sources {
		change, err := c.apply(ctx, src.ID, level)
		changes = append(changes, change)
		errs = append(errs, err)
	}
	return changes, errors.Join(errs...)
}

// apply writes one source's volume to the registry and the actuator. The
// actuator is only driven when the value actually changes; the returned
// Change always reports the source's resulting volume.
func (c *Coordinator) apply(ctx context.Context, sourceID string, volume int) (Change, error) {
	change := Change{SourceID: sourceID, Volume: volume}

	src, ok := c.registry.Get(sourceID)
	if !ok {
		return change, fmt.Errorf("%w: %q", registry.ErrUnknownSource, sourceID)
	}
	if src.Volume == volume {
		return change, nil
	}

	if err := c.registry.SetVolume(sourceID, volume); err != nil {
		return change, err
	}
	return change, c.actuate(ctx, sourceID, volume, src.Muted)
}

// actuate drives the collaborator and folds failures into an
// ActuationError without touching registry state.
func (c *Coordinator) actuate(ctx context.Context, sourceID string, volume int, muted bool) error {
	if err := c.actuator.Apply(ctx, sourceID, volume, muted); err != nil {
		c.logger.Warn("actuator failed", "source_id", sourceID, "volume", volume, "muted", muted, "error", err)
		return &ActuationError{SourceID: sourceID, Err: err}
	}
	return nil
}

// clamp bounds a volume to [MinVolume, MaxVolume].
func clamp(v int) int {
	if v < protocol.MinVolume {
		return protocol.MinVolume
	}
	if v > protocol.MaxVolume {
		return protocol.MaxVolume
	}
	return v
}
