package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixctl/mixctl/internal/actuator"
	"github.com/mixctl/mixctl/internal/config"
	"github.com/mixctl/mixctl/internal/coordinator"
	"github.com/mixctl/mixctl/internal/daemon"
	"github.com/mixctl/mixctl/internal/protocol"
	"github.com/mixctl/mixctl/internal/registry"
)

func newClientAgainstDaemon(t *testing.T) (*Client, *registry.Registry) {
	t.Helper()

	cfg := config.Default()
	reg := registry.New()
	coord := coordinator.New(reg, actuator.Discard, protocol.ModeIndependent, nil)
	srv := daemon.NewServer(cfg, reg, coord, nil, nil)

	clientEnd, serverEnd := net.Pipe()
	go func() { _ = srv.ServeConn(context.Background(), serverEnd) }()

	c := New(clientEnd)
	t.Cleanup(func() {
		c.Close()
		serverEnd.Close()
	})
	return c, reg
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestClient_VolumeRoundTrip(t *testing.T) {
	c, reg := newClientAgainstDaemon(t)
	ctx := testCtx(t)
	reg.ObserveStarted("tab-1")

	require.NoError(t, c.SetVolume(ctx, "tab-1", 42))

	vol, err := c.Volume(ctx, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, 42, vol)
}

func TestClient_Sources(t *testing.T) {
	c, reg := newClientAgainstDaemon(t)
	ctx := testCtx(t)
	reg.ObserveStarted("tab-a")
	reg.ObserveStarted("tab-b")

	sources, err := c.Sources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "tab-a", sources[0].ID)
	assert.Equal(t, 100, sources[0].Volume)
}

func TestClient_DaemonFailure(t *testing.T) {
	c, _ := newClientAgainstDaemon(t)

	_, err := c.Volume(testCtx(t), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDaemonFailure)
	assert.Contains(t, err.Error(), "unknown source")
}

func TestClient_ModeRoundTrip(t *testing.T) {
	c, _ := newClientAgainstDaemon(t)
	ctx := testCtx(t)

	mode, err := c.Mode(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.ModeIndependent, mode)

	require.NoError(t, c.SetMode(ctx, protocol.ModeInverse))

	mode, err = c.Mode(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.ModeInverse, mode)
}

func TestClient_MuteAndToggleAll(t *testing.T) {
	c, reg := newClientAgainstDaemon(t)
	ctx := testCtx(t)
	reg.ObserveStarted("tab-1")
	reg.ObserveStarted("tab-2")

	require.NoError(t, c.SetMute(ctx, "tab-1", true))

	muted, err := c.ToggleMuteAll(ctx)
	require.NoError(t, err)
	assert.True(t, muted, "mixed state resolves to all muted")

	muted, err = c.ToggleMuteAll(ctx)
	require.NoError(t, err)
	assert.False(t, muted)
}

func TestClient_Ping(t *testing.T) {
	c, reg := newClientAgainstDaemon(t)
	reg.ObserveStarted("tab-1")

	st, err := c.Ping(testCtx(t))
	require.NoError(t, err)
	assert.True(t, st.Pong)
	assert.Equal(t, 1, st.Sources)
	assert.Equal(t, protocol.ModeIndependent, st.Mode)
	assert.GreaterOrEqual(t, st.UptimeMillis, int64(0))
}

func TestClient_ContextCancellation(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	defer serverEnd.Close()

	// No server reads: Do must give up when the context expires.
	c := New(clientEnd)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	go func() {
		// Drain the request so WriteFrame does not block forever.
		buf := make([]byte, 1024)
		_, _ = serverEnd.Read(buf)
	}()

	_, err := c.Do(ctx, protocol.Request{Action: protocol.ActionPing})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_ClosedConnectionFailsPending(t *testing.T) {
	c, reg := newClientAgainstDaemon(t)
	ctx := testCtx(t)
	reg.ObserveStarted("tab-1")

	// Prime the read loop with one successful call, then cut the link.
	_, err := c.Ping(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = c.Ping(ctx)
	assert.Error(t, err)
}
