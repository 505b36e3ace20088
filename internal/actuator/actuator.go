// Package actuator defines the collaborator boundary for applying volume
// and mute changes to concrete OS-level targets. Real implementations
// (AppleScript, PowerShell, Core Audio) live outside this repository.
package actuator

import (
	"context"
	"log/slog"
)

// Actuator applies a volume/mute state to one source's OS-level target.
type Actuator interface {
	Apply(ctx context.Context, sourceID string, volume int, muted bool) error
}

// Func adapts a function to the Actuator interface.
type Func func(ctx context.Context, sourceID string, volume int, muted bool) error

// Apply implements Actuator.
func (f Func) Apply(ctx context.Context, sourceID string, volume int, muted bool) error {
	return f(ctx, sourceID, volume, muted)
}

// Discard ignores every change. Useful in tests and when the host runs
// without an OS backend.
var Discard Actuator = Func(func(context.Context, string, int, bool) error {
	return nil
})

// Logged records every change through the given logger and applies
// nothing. It is the default backend of the daemon binary.
func Logged(logger *slog.Logger) Actuator {
	if logger == nil {
		logger = slog.Default()
	}
	return Func(func(_ context.Context, sourceID string, volume int, muted bool) error {
		logger.Debug("actuate", "source_id", sourceID, "volume", volume, "muted", muted)
		return nil
	})
}
