package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// Volume bounds. Every applied or returned volume is an integer in this range.
const (
	MinVolume = 0
	MaxVolume = 100
)

// ErrMalformedPayload marks bytes that could not be decoded as a request.
var ErrMalformedPayload = errors.New("malformed payload")

// ValidationError describes a request field that failed its schema check.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: field %q %s", e.Field, e.Reason)
}

// UnknownActionError marks a request whose action is not recognized.
type UnknownActionError struct {
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q", e.Action)
}

// Parse decodes and validates one frame payload. The returned Envelope
// carries the request's correlation id whenever one could be decoded, so
// error responses can still be correlated. Parse is pure: no side
// effects, no I/O.
func Parse(data []byte) (Envelope, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	env := Envelope{ID: req.ID, Action: req.Action}

	if req.Timeout != nil {
		ms := *req.Timeout
		if ms <= 0 || ms != math.Trunc(ms) {
			return env, &ValidationError{Field: "timeout", Reason: "must be a positive integer of milliseconds"}
		}
		env.Timeout = time.Duration(ms) * time.Millisecond
	}

	cmd, err := buildCommand(&req)
	if err != nil {
		return env, err
	}
	env.Cmd = cmd
	return env, nil
}

// buildCommand checks the action's schema and produces the typed command.
func buildCommand(req *Request) (Command, error) {
	switch req.Action {
	case ActionGetSources:
		return GetSources{}, nil

	case ActionSetVolume, ActionSetTabVolume:
		id, err := sourceID(req)
		if err != nil {
			return nil, err
		}
		v, err := volume(req)
		if err != nil {
			return nil, err
		}
		return SetVolume{SourceID: id, Volume: v}, nil

	case ActionGetVolume:
		id, err := sourceID(req)
		if err != nil {
			return nil, err
		}
		return GetVolume{SourceID: id}, nil

	case ActionSetMute:
		id, err := sourceID(req)
		if err != nil {
			return nil, err
		}
		if req.Muted == nil {
			return nil, &ValidationError{Field: "muted", Reason: "is required and must be a boolean"}
		}
		return SetMute{SourceID: id, Muted: *req.Muted}, nil

	case ActionSetMode:
		if req.Mode == nil {
			return nil, &ValidationError{Field: "mode", Reason: "is required"}
		}
		mode, err := ParseMode(*req.Mode)
		if err != nil {
			return nil, &ValidationError{Field: "mode", Reason: "must be independent, linked, or inverse"}
		}
		return SetMode{Mode: mode}, nil

	case ActionGetMode:
		return GetMode{}, nil

	case ActionSetMasterVolume:
		v, err := volume(req)
		if err != nil {
			return nil, err
		}
		return SetMasterVolume{Volume: v}, nil

	case ActionToggleMuteAll:
		return ToggleMuteAll{}, nil

	case ActionSourceEvent:
		id, err := sourceID(req)
		if err != nil {
			return nil, err
		}
		if req.Playing == nil {
			return nil, &ValidationError{Field: "playing", Reason: "is required and must be a boolean"}
		}
		return SourceEvent{SourceID: id, Playing: *req.Playing}, nil

	case ActionPing:
		return Ping{}, nil

	default:
		return nil, &UnknownActionError{Action: req.Action}
	}
}

func sourceID(req *Request) (string, error) {
	if req.SourceID == nil || *req.SourceID == "" {
		return "", &ValidationError{Field: "sourceId", Reason: "is required and must be a non-empty string"}
	}
	return *req.SourceID, nil
}

func volume(req *Request) (int, error) {
	if req.Volume == nil {
		return 0, &ValidationError{Field: "volume", Reason: "is required and must be numeric"}
	}
	v := *req.Volume
	if v != math.Trunc(v) {
		return 0, &ValidationError{Field: "volume", Reason: "must be an integer"}
	}
	if v < MinVolume || v > MaxVolume {
		return 0, &ValidationError{Field: "volume", Reason: fmt.Sprintf("must be between %d and %d", MinVolume, MaxVolume)}
	}
	return int(v), nil
}
