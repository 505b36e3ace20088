// Package protocol defines the JSON message protocol spoken inside mixctl
// frames: request and response envelopes, the per-action command types,
// and the validation that guards the boundary between the wire and the
// volume engine.
package protocol

import "fmt"

// Recognized wire actions.
const (
	ActionGetSources      = "getAudioSources"
	ActionSetVolume       = "setVolume"
	ActionSetTabVolume    = "setTabVolume" // legacy alias for setVolume
	ActionGetVolume       = "getVolume"
	ActionSetMute         = "setMute"
	ActionSetMode         = "setMode"
	ActionGetMode         = "getMode"
	ActionSetMasterVolume = "setMasterVolume"
	ActionToggleMuteAll   = "toggleMuteAll"
	ActionSourceEvent     = "sourceEvent"
	ActionPing            = "ping"
)

// Mode is the coordination policy governing how a volume change to one
// source affects the others.
type Mode string

const (
	// ModeIndependent changes only the targeted source.
	ModeIndependent Mode = "independent"
	// ModeLinked scales all sources together, preserving proportions.
	ModeLinked Mode = "linked"
	// ModeInverse treats volume as a zero-sum budget across sources.
	ModeInverse Mode = "inverse"
)

// ParseMode validates a wire mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeIndependent, ModeLinked, ModeInverse:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// Request is the raw wire shape of an inbound message. Optional fields
// are pointers so presence can be checked explicitly per action.
type Request struct {
	Action   string   `json:"action"`
	ID       string   `json:"id,omitempty"`
	SourceID *string  `json:"sourceId,omitempty"`
	Volume   *float64 `json:"volume,omitempty"`
	Muted    *bool    `json:"muted,omitempty"`
	Mode     *string  `json:"mode,omitempty"`
	Playing  *bool    `json:"playing,omitempty"`
	Timeout  *float64 `json:"timeout,omitempty"` // milliseconds
}

// Response is the wire shape of an outbound message. Exactly one Response
// exists per accepted Request; requests that fail to parse produce a
// Response with no RequestID.
type Response struct {
	RequestID string `json:"requestId,omitempty"`
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
}

// OK builds a success Response for the given correlation id.
func OK(requestID string, data any) Response {
	return Response{RequestID: requestID, Success: true, Data: data}
}

// Fail builds an error Response for the given correlation id.
func Fail(requestID string, err error) Response {
	return Response{RequestID: requestID, Success: false, Error: err.Error()}
}
