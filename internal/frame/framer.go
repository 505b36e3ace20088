// Package frame implements the length-prefixed message framing used on
// every mixctl transport: a 4-byte little-endian payload length followed
// by the payload bytes. It provides both a push-style Framer for
// callback-driven byte sources and a Conn wrapper for blocking streams.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

const (
	// HeaderSize is the size of the length prefix in bytes.
	HeaderSize = 4

	// DefaultMaxFrameSize bounds payload size (and therefore buffering).
	DefaultMaxFrameSize = 1 << 20 // 1 MiB
)

// Framing errors.
var (
	// ErrFrameTooLarge is returned when a length prefix exceeds the
	// configured maximum payload size.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
)

// Handler receives one complete frame payload. Payloads are delivered in
// arrival order and the slice is owned by the handler.
type Handler func(payload []byte)

// Framer turns an arbitrary byte stream into discrete frames. Feed may be
// called again from inside the frame handler (the handler can trigger
// writes that synchronously deliver more bytes); re-entrant calls only
// append to the buffer and the outer drain loop picks the bytes up.
type Framer struct {
	mu       sync.Mutex
	buf      []byte
	draining bool

	maxSize uint32
	onFrame Handler
}

// NewFramer creates a Framer delivering complete payloads to onFrame.
// maxSize <= 0 selects DefaultMaxFrameSize.
func NewFramer(maxSize int, onFrame Handler) *Framer {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &Framer{
		maxSize: uint32(maxSize),
		onFrame: onFrame,
	}
}

// Feed appends bytes to the internal buffer and delivers every complete
// frame now available. A length prefix above the maximum returns
// ErrFrameTooLarge and resets all partial-read state; the oversized frame
// is not recovered.
func (f *Framer) Feed(p []byte) error {
	f.mu.Lock()
	f.buf = append(f.buf, p...)
	if f.draining {
		// A drain loop further up the stack is still running; it will
		// consume the bytes we just appended.
		f.mu.Unlock()
		return nil
	}
	f.draining = true
	f.mu.Unlock()

	return f.drain()
}

// drain delivers complete frames until the buffer no longer holds one.
// The lock is dropped around the handler call so the handler may Feed.
func (f *Framer) drain() error {
	for {
		f.mu.Lock()
		if len(f.buf) < HeaderSize {
			f.draining = false
			f.mu.Unlock()
			return nil
		}
		size := binary.LittleEndian.Uint32(f.buf[:HeaderSize])
		if size > f.maxSize {
			f.buf = nil
			f.draining = false
			f.mu.Unlock()
			return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, size, f.maxSize)
		}
		if len(f.buf) < HeaderSize+int(size) {
			f.draining = false
			f.mu.Unlock()
			return nil
		}

		payload := make([]byte, size)
		copy(payload, f.buf[HeaderSize:HeaderSize+size])
		f.buf = f.buf[HeaderSize+size:]
		f.mu.Unlock()

		f.onFrame(payload)
	}
}

// Reset discards any buffered partial frame. Used on disconnect: there is
// no partial-message recovery across a broken stream.
func (f *Framer) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buf = nil
}

// Buffered reports how many bytes are held without forming a complete frame.
func (f *Framer) Buffered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buf)
}

// Encode returns length(4 bytes, little-endian) || payload, ready to be
// written atomically to the outbound stream.
func Encode(payload []byte) ([]byte, error) {
	return EncodeMax(payload, DefaultMaxFrameSize)
}

// EncodeMax is Encode with an explicit maximum payload size.
func EncodeMax(payload []byte, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	if len(payload) > maxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(payload), maxSize)
	}
	out := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(out[:HeaderSize], uint32(len(payload)))
	copy(out[HeaderSize:], payload)
	return out, nil
}
