package frame

import (
	"bufio"
	"encoding/binary"
	"io"
	"sync"
)

// Conn frames messages over a blocking duplex byte stream (stdio pipe,
// Unix socket, net.Pipe in tests). Reads and writes operate on whole
// frames; a WriteFrame is a single Write call on the underlying stream.
type Conn struct {
	r *bufio.Reader

	wmu sync.Mutex
	w   io.Writer

	maxSize int
}

// NewConn wraps rw with framing. maxSize <= 0 selects DefaultMaxFrameSize.
func NewConn(rw io.ReadWriter, maxSize int) *Conn {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &Conn{
		r:       bufio.NewReader(rw),
		w:       rw,
		maxSize: maxSize,
	}
}

// ReadFrame blocks until one complete frame arrives and returns its
// payload. io.EOF signals a clean disconnect; bytes of a partially read
// frame are discarded with the stream. An oversized length prefix skips
// the advertised payload to stay in sync and returns ErrFrameTooLarge.
func (c *Conn) ReadFrame() ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(c.r, header[:]); err != nil {
		return nil, eofIfTruncated(err)
	}

	size := binary.LittleEndian.Uint32(header[:])
	if int64(size) > int64(c.maxSize) {
		if _, err := io.CopyN(io.Discard, c.r, int64(size)); err != nil {
			return nil, eofIfTruncated(err)
		}
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(c.r, payload); err != nil {
		return nil, eofIfTruncated(err)
	}
	return payload, nil
}

// eofIfTruncated folds a stream that ended mid-frame into the clean
// disconnect signal; any other transport error passes through so callers
// can report it.
func eofIfTruncated(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return io.EOF
	}
	return err
}

// WriteFrame encodes and writes one frame. Safe for concurrent use; each
// frame is written with a single Write so concurrent writers cannot
// interleave partial frames.
func (c *Conn) WriteFrame(payload []byte) error {
	buf, err := EncodeMax(payload, c.maxSize)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err = c.w.Write(buf)
	return err
}
