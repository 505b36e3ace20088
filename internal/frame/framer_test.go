package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_RoundTrip(t *testing.T) {
	payload := []byte(`{"action":"getAudioSources"}`)

	encoded, err := Encode(payload)
	require.NoError(t, err)
	require.Len(t, encoded, HeaderSize+len(payload))
	assert.Equal(t, uint32(len(payload)), binary.LittleEndian.Uint32(encoded[:HeaderSize]))

	var got [][]byte
	f := NewFramer(0, func(p []byte) { got = append(got, p) })
	require.NoError(t, f.Feed(encoded))

	require.Len(t, got, 1)
	assert.Equal(t, payload, got[0])
	assert.Equal(t, 0, f.Buffered())
}

func TestFramer_ChunkedDelivery(t *testing.T) {
	payload := []byte("split across arbitrarily many chunks")
	encoded, err := Encode(payload)
	require.NoError(t, err)

	var got [][]byte
	f := NewFramer(0, func(p []byte) { got = append(got, p) })

	// One byte at a time.
	for i := range encoded {
		require.NoError(t, f.Feed(encoded[i:i+1]))
	}

	require.Len(t, got, 1)
	assert.Equal(t, payload, got[0])
}

func TestFramer_BackToBackFrames(t *testing.T) {
	first, err := Encode([]byte("first"))
	require.NoError(t, err)
	second, err := Encode([]byte("second"))
	require.NoError(t, err)

	var got [][]byte
	f := NewFramer(0, func(p []byte) { got = append(got, p) })
	require.NoError(t, f.Feed(append(first, second...)))

	require.Len(t, got, 2)
	assert.Equal(t, []byte("first"), got[0])
	assert.Equal(t, []byte("second"), got[1])
}

func TestFramer_EmptyPayload(t *testing.T) {
	encoded, err := Encode(nil)
	require.NoError(t, err)

	var got [][]byte
	f := NewFramer(0, func(p []byte) { got = append(got, p) })
	require.NoError(t, f.Feed(encoded))

	require.Len(t, got, 1)
	assert.Empty(t, got[0])
}

func TestFramer_Oversized(t *testing.T) {
	var header [HeaderSize]byte
	binary.LittleEndian.PutUint32(header[:], DefaultMaxFrameSize+1)

	var got [][]byte
	f := NewFramer(0, func(p []byte) { got = append(got, p) })

	err := f.Feed(header[:])
	require.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Empty(t, got, "no partial payload may be emitted")
	assert.Equal(t, 0, f.Buffered(), "partial-read state must be reset")
}

func TestFramer_ReentrantFeed(t *testing.T) {
	// The handler for the first frame feeds the second frame, as happens
	// when message handling synchronously triggers more inbound bytes.
	second, err := Encode([]byte("second"))
	require.NoError(t, err)

	var got [][]byte
	var f *Framer
	f = NewFramer(0, func(p []byte) {
		got = append(got, p)
		if string(p) == "first" {
			require.NoError(t, f.Feed(second))
		}
	})

	first, err := Encode([]byte("first"))
	require.NoError(t, err)
	require.NoError(t, f.Feed(first))

	require.Len(t, got, 2)
	assert.Equal(t, []byte("first"), got[0])
	assert.Equal(t, []byte("second"), got[1])
}

func TestEncode_TooLarge(t *testing.T) {
	_, err := EncodeMax(make([]byte, 16), 8)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestFramer_Reset(t *testing.T) {
	f := NewFramer(0, func([]byte) {})
	require.NoError(t, f.Feed([]byte{1, 2}))
	assert.Equal(t, 2, f.Buffered())

	f.Reset()
	assert.Equal(t, 0, f.Buffered())
}

func TestConn_RoundTrip(t *testing.T) {
	var stream bytes.Buffer
	c := NewConn(&stream, 0)

	require.NoError(t, c.WriteFrame([]byte("one")))
	require.NoError(t, c.WriteFrame([]byte("two")))

	got, err := c.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got)

	got, err = c.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)

	_, err = c.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestConn_OversizedSkipsAndResyncs(t *testing.T) {
	var stream bytes.Buffer

	// Hand-craft an oversized frame under a tiny limit, then a valid one.
	big, err := EncodeMax(make([]byte, 64), DefaultMaxFrameSize)
	require.NoError(t, err)
	stream.Write(big)
	ok, err := EncodeMax([]byte("ok"), 16)
	require.NoError(t, err)
	stream.Write(ok)

	c := NewConn(&stream, 16)

	_, err = c.ReadFrame()
	require.ErrorIs(t, err, ErrFrameTooLarge)

	got, err := c.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), got)
}

func TestConn_TruncatedFrameIsEOF(t *testing.T) {
	var stream bytes.Buffer
	encoded, err := Encode([]byte("truncated"))
	require.NoError(t, err)
	stream.Write(encoded[:len(encoded)-3])

	c := NewConn(&stream, 0)
	_, err = c.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

// faultyStream yields its bytes, then fails every subsequent Read with
// the given error (a reset connection, not a clean close).
type faultyStream struct {
	data []byte
	err  error
}

func (s *faultyStream) Read(p []byte) (int, error) {
	if len(s.data) == 0 {
		return 0, s.err
	}
	n := copy(p, s.data)
	s.data = s.data[n:]
	return n, nil
}

func (s *faultyStream) Write(p []byte) (int, error) { return len(p), nil }

func TestConn_MidFrameTransportErrorPassesThrough(t *testing.T) {
	encoded, err := Encode([]byte("interrupted"))
	require.NoError(t, err)

	reset := errors.New("connection reset by peer")
	c := NewConn(&faultyStream{data: encoded[:len(encoded)-3], err: reset}, 0)

	_, err = c.ReadFrame()
	assert.ErrorIs(t, err, reset)
	assert.NotErrorIs(t, err, io.EOF)
}
