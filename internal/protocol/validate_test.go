package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_GetSources(t *testing.T) {
	env, err := Parse([]byte(`{"action":"getAudioSources","id":"req-1"}`))
	require.NoError(t, err)
	assert.Equal(t, "req-1", env.ID)
	assert.Equal(t, GetSources{}, env.Cmd)
}

func TestParse_SetVolume(t *testing.T) {
	env, err := Parse([]byte(`{"action":"setVolume","id":"req-2","sourceId":"tab-7","volume":42}`))
	require.NoError(t, err)
	assert.Equal(t, SetVolume{SourceID: "tab-7", Volume: 42}, env.Cmd)
}

func TestParse_SetTabVolumeAlias(t *testing.T) {
	env, err := Parse([]byte(`{"action":"setTabVolume","sourceId":"tab-7","volume":42}`))
	require.NoError(t, err)
	assert.Equal(t, SetVolume{SourceID: "tab-7", Volume: 42}, env.Cmd)
}

func TestParse_SetVolumeRejections(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		field   string
	}{
		{"missing volume", `{"action":"setVolume","sourceId":"tab-1"}`, "volume"},
		{"volume above range", `{"action":"setVolume","sourceId":"tab-1","volume":150}`, "volume"},
		{"volume below range", `{"action":"setVolume","sourceId":"tab-1","volume":-1}`, "volume"},
		{"fractional volume", `{"action":"setVolume","sourceId":"tab-1","volume":50.5}`, "volume"},
		{"empty sourceId", `{"action":"setVolume","sourceId":"","volume":100}`, "sourceId"},
		{"missing sourceId", `{"action":"setVolume","volume":100}`, "sourceId"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.payload))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestParse_SetMute(t *testing.T) {
	env, err := Parse([]byte(`{"action":"setMute","sourceId":"tab-1","muted":true}`))
	require.NoError(t, err)
	assert.Equal(t, SetMute{SourceID: "tab-1", Muted: true}, env.Cmd)

	_, err = Parse([]byte(`{"action":"setMute","sourceId":"tab-1"}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "muted", verr.Field)
}

func TestParse_SetMode(t *testing.T) {
	for _, mode := range []Mode{ModeIndependent, ModeLinked, ModeInverse} {
		env, err := Parse([]byte(`{"action":"setMode","mode":"` + string(mode) + `"}`))
		require.NoError(t, err)
		assert.Equal(t, SetMode{Mode: mode}, env.Cmd)
	}

	_, err := Parse([]byte(`{"action":"setMode","mode":"sideways"}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "mode", verr.Field)
}

func TestParse_SourceEvent(t *testing.T) {
	env, err := Parse([]byte(`{"action":"sourceEvent","sourceId":"tab-3","playing":false}`))
	require.NoError(t, err)
	assert.Equal(t, SourceEvent{SourceID: "tab-3", Playing: false}, env.Cmd)
}

func TestParse_UnknownAction(t *testing.T) {
	env, err := Parse([]byte(`{"action":"explode","id":"req-9"}`))
	var uerr *UnknownActionError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "explode", uerr.Action)
	// The id survives so the error response can still be correlated.
	assert.Equal(t, "req-9", env.ID)
}

func TestParse_MalformedPayload(t *testing.T) {
	_, err := Parse([]byte(`{"action":`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = Parse([]byte{0xff, 0xfe, 0x00})
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestParse_TimeoutOverride(t *testing.T) {
	env, err := Parse([]byte(`{"action":"ping","timeout":250}`))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, env.Timeout)

	_, err = Parse([]byte(`{"action":"ping","timeout":-1}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "timeout", verr.Field)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("linked")
	require.NoError(t, err)
	assert.Equal(t, ModeLinked, mode)

	_, err = ParseMode("looped")
	assert.Error(t, err)
}
