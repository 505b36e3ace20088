// Package client implements the calling side of the mixd protocol for
// tooling that talks to a running daemon over its Unix socket.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/mixctl/mixctl/internal/dispatch"
	"github.com/mixctl/mixctl/internal/frame"
	"github.com/mixctl/mixctl/internal/protocol"
	"github.com/mixctl/mixctl/internal/registry"
)

// ErrDaemonFailure wraps an error reported by the daemon in a Response.
var ErrDaemonFailure = errors.New("daemon error")

// Client issues requests over one framed connection. A Client is safe
// for concurrent use; responses are matched to callers by request id.
type Client struct {
	conn   *frame.Conn
	closer io.Closer

	mu      sync.Mutex
	pending map[string]chan protocol.Response
	readErr error
	reading bool
}

// Dial connects to the daemon socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon at %s: %w", path, err)
	}
	return New(conn), nil
}

// New wraps an established duplex stream. If rw is also an io.Closer,
// Close closes it.
func New(rw io.ReadWriter) *Client {
	c := &Client{
		conn:    frame.NewConn(rw, 0),
		pending: make(map[string]chan protocol.Response),
	}
	if closer, ok := rw.(io.Closer); ok {
		c.closer = closer
	}
	return c
}

// Do sends one request and blocks until its response arrives or ctx is
// done. A missing request id is filled in before sending. A response
// with success=false is returned alongside ErrDaemonFailure.
func (c *Client) Do(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if req.ID == "" {
		req.ID = dispatch.NewRequestID()
	}

	ch := make(chan protocol.Response, 1)
	c.mu.Lock()
	if c.readErr != nil {
		err := c.readErr
		c.mu.Unlock()
		return protocol.Response{}, err
	}
	c.pending[req.ID] = ch
	if !c.reading {
		c.reading = true
		go c.readLoop()
	}
	c.mu.Unlock()
	defer c.forget(req.ID)

	payload, err := json.Marshal(req)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("failed to encode request: %w", err)
	}
	if err := c.conn.WriteFrame(payload); err != nil {
		return protocol.Response{}, fmt.Errorf("failed to send request: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			c.mu.Lock()
			err := c.readErr
			c.mu.Unlock()
			return protocol.Response{}, err
		}
		if !resp.Success {
			return resp, fmt.Errorf("%w: %s", ErrDaemonFailure, resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		return protocol.Response{}, ctx.Err()
	}
}

// Close tears down the connection. In-flight Do calls fail.
func (c *Client) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// readLoop delivers responses to waiting callers. Responses with an
// unknown or absent request id (parse failures reported by the daemon)
// are dropped; the waiting caller times out via its context.
func (c *Client) readLoop() {
	for {
		payload, err := c.conn.ReadFrame()
		if err != nil {
			c.fail(err)
			return
		}

		var resp protocol.Response
		if err := json.Unmarshal(payload, &resp); err != nil {
			c.fail(fmt.Errorf("failed to decode response: %w", err))
			return
		}

		c.mu.Lock()
		if ch, ok := c.pending[resp.RequestID]; ok {
			ch <- resp
			delete(c.pending, resp.RequestID)
		}
		c.mu.Unlock()
	}
}

func (c *Client) fail(err error) {
	if errors.Is(err, io.EOF) {
		err = errors.New("daemon closed the connection")
	}
	c.mu.Lock()
	c.readErr = err
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.reading = false
	c.mu.Unlock()
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Sources fetches the tracked source list.
func (c *Client) Sources(ctx context.Context) ([]registry.AudioSource, error) {
	resp, err := c.Do(ctx, protocol.Request{Action: protocol.ActionGetSources})
	if err != nil {
		return nil, err
	}
	var data struct {
		Sources []registry.AudioSource `json:"sources"`
	}
	if err := decodeData(resp.Data, &data); err != nil {
		return nil, err
	}
	return data.Sources, nil
}

// Volume fetches the current volume of one source.
func (c *Client) Volume(ctx context.Context, sourceID string) (int, error) {
	resp, err := c.Do(ctx, protocol.Request{
		Action:   protocol.ActionGetVolume,
		SourceID: &sourceID,
	})
	if err != nil {
		return 0, err
	}
	var data struct {
		Volume int `json:"volume"`
	}
	if err := decodeData(resp.Data, &data); err != nil {
		return 0, err
	}
	return data.Volume, nil
}

// SetVolume sets one source's volume, subject to the active mode.
func (c *Client) SetVolume(ctx context.Context, sourceID string, volume int) error {
	v := float64(volume)
	_, err := c.Do(ctx, protocol.Request{
		Action:   protocol.ActionSetVolume,
		SourceID: &sourceID,
		Volume:   &v,
	})
	return err
}

// SetMasterVolume sets every tracked source to the same volume.
func (c *Client) SetMasterVolume(ctx context.Context, volume int) error {
	v := float64(volume)
	_, err := c.Do(ctx, protocol.Request{
		Action: protocol.ActionSetMasterVolume,
		Volume: &v,
	})
	return err
}

// SetMute sets one source's mute flag.
func (c *Client) SetMute(ctx context.Context, sourceID string, muted bool) error {
	_, err := c.Do(ctx, protocol.Request{
		Action:   protocol.ActionSetMute,
		SourceID: &sourceID,
		Muted:    &muted,
	})
	return err
}

// ToggleMuteAll flips the global mute state and reports the result.
func (c *Client) ToggleMuteAll(ctx context.Context) (bool, error) {
	resp, err := c.Do(ctx, protocol.Request{Action: protocol.ActionToggleMuteAll})
	if err != nil {
		return false, err
	}
	var data struct {
		Muted bool `json:"muted"`
	}
	if err := decodeData(resp.Data, &data); err != nil {
		return false, err
	}
	return data.Muted, nil
}

// Mode fetches the active coordination mode.
func (c *Client) Mode(ctx context.Context) (protocol.Mode, error) {
	resp, err := c.Do(ctx, protocol.Request{Action: protocol.ActionGetMode})
	if err != nil {
		return "", err
	}
	var data struct {
		Mode protocol.Mode `json:"mode"`
	}
	if err := decodeData(resp.Data, &data); err != nil {
		return "", err
	}
	return data.Mode, nil
}

// SetMode switches the coordination mode.
func (c *Client) SetMode(ctx context.Context, mode protocol.Mode) error {
	m := string(mode)
	_, err := c.Do(ctx, protocol.Request{
		Action: protocol.ActionSetMode,
		Mode:   &m,
	})
	return err
}

// Status holds the daemon state reported by ping.
type Status struct {
	Pong         bool          `json:"pong"`
	UptimeMillis int64         `json:"uptimeMillis"`
	Sources      int           `json:"sources"`
	Mode         protocol.Mode `json:"mode"`
}

// Ping checks daemon liveness and returns its status summary.
func (c *Client) Ping(ctx context.Context) (Status, error) {
	resp, err := c.Do(ctx, protocol.Request{Action: protocol.ActionPing})
	if err != nil {
		return Status{}, err
	}
	var st Status
	if err := decodeData(resp.Data, &st); err != nil {
		return Status{}, err
	}
	return st, nil
}

// decodeData round-trips a response data payload into a typed struct.
func decodeData(data any, out any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
