package protocol

import "time"

// Command is the validated, typed form of a request. Each action kind
// carries only its required fields; anything reaching the volume engine
// has already passed validation.
type Command interface {
	isCommand()
}

// GetSources lists all tracked audio sources.
type GetSources struct{}

// SetVolume applies a volume change to one source under the active
// coordination policy.
type SetVolume struct {
	SourceID string
	Volume   int
}

// GetVolume reads one source's current volume.
type GetVolume struct {
	SourceID string
}

// SetMute applies a mute state to one source.
type SetMute struct {
	SourceID string
	Muted    bool
}

// SetMode switches the coordination policy.
type SetMode struct {
	Mode Mode
}

// GetMode reads the active coordination policy.
type GetMode struct{}

// SetMasterVolume applies one volume to every tracked source.
type SetMasterVolume struct {
	Volume int
}

// ToggleMuteAll mutes every source, or unmutes all if all are muted.
type ToggleMuteAll struct{}

// SourceEvent reports that a source started or stopped playing.
type SourceEvent struct {
	SourceID string
	Playing  bool
}

// Ping probes daemon liveness.
type Ping struct{}

func (GetSources) isCommand()      {}
func (SetVolume) isCommand()       {}
func (GetVolume) isCommand()       {}
func (SetMute) isCommand()         {}
func (SetMode) isCommand()         {}
func (GetMode) isCommand()         {}
func (SetMasterVolume) isCommand() {}
func (ToggleMuteAll) isCommand()   {}
func (SourceEvent) isCommand()     {}
func (Ping) isCommand()            {}

// Envelope is a validated request ready for dispatch.
type Envelope struct {
	// ID is the sender-assigned correlation id, empty if absent.
	ID string

	// Action is the raw wire action, kept for logging and metrics.
	Action string

	// Timeout is the per-request override, zero when unset.
	Timeout time.Duration

	// Cmd is the typed command.
	Cmd Command
}
