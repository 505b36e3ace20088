// Package dispatch correlates requests with responses: it assigns
// correlation ids, races each handler against a per-request timeout, and
// guarantees exactly one response per accepted request.
package dispatch

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultTimeout is used when a request carries no timeout override.
const DefaultTimeout = 5000 * time.Millisecond

// ErrTimeout is folded into the response when the timer wins the race.
// Its text is part of the wire contract.
var ErrTimeout = errors.New("Request timeout")

// Handler is one request's unit of work. The context is cancelled when
// the request times out; a result arriving after that is discarded.
type Handler func(ctx context.Context) (any, error)

// Responder receives the single response for a dispatched request.
type Responder func(requestID string, data any, err error)

// Dispatcher runs handlers with timeout racing. It supports arbitrarily
// many concurrently outstanding requests, each with an independent timer.
type Dispatcher struct {
	// defaultTimeout holds nanoseconds; atomic because config reloads
	// adjust it while connection goroutines dispatch.
	defaultTimeout atomic.Int64
	logger         *slog.Logger
	inFlight       atomic.Int64
}

// New creates a Dispatcher. defaultTimeout <= 0 selects DefaultTimeout.
func New(defaultTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{logger: logger}
	d.defaultTimeout.Store(int64(defaultTimeout))
	return d
}

// SetDefaultTimeout adjusts the default timeout for subsequent requests.
// Safe to call concurrently with Dispatch.
func (d *Dispatcher) SetDefaultTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.defaultTimeout.Store(int64(timeout))
	}
}

// DefaultTimeout returns the timeout applied to requests without an
// override.
func (d *Dispatcher) DefaultTimeout() time.Duration {
	return time.Duration(d.defaultTimeout.Load())
}

// InFlight reports how many requests are currently outstanding.
func (d *Dispatcher) InFlight() int {
	return int(d.inFlight.Load())
}

// Dispatch runs handler for the request identified by requestID, racing
// it against timeout (or the default when zero). The responder is called
// exactly once: with the handler's result, its error, or ErrTimeout.
// Returns the effective correlation id, generating one when absent.
func (d *Dispatcher) Dispatch(requestID string, timeout time.Duration, handler Handler, respond Responder) string {
	if requestID == "" {
		requestID = NewRequestID()
	}
	if timeout <= 0 {
		timeout = time.Duration(d.defaultTimeout.Load())
	}

	d.inFlight.Add(1)
	go d.run(requestID, timeout, handler, respond)
	return requestID
}

type result struct {
	data any
	err  error
}

func (d *Dispatcher) run(requestID string, timeout time.Duration, handler Handler, respond Responder) {
	defer d.inFlight.Add(-1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Buffered so a late handler can always deliver and exit; nobody
	// reads after the timer wins, which is exactly the drop semantics.
	resultCh := make(chan result, 1)
	go func() {
		data, err := handler(ctx)
		resultCh <- result{data: data, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-resultCh:
		respond(requestID, res.data, res.err)
	case <-timer.C:
		d.logger.Warn("request timed out", "request_id", requestID, "timeout", timeout)
		respond(requestID, nil, ErrTimeout)
	}
}

// NewRequestID generates a correlation id unique with high probability
// across the process lifetime (millisecond timestamp plus randomness).
func NewRequestID() string {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		// crypto/rand never fails on supported platforms.
		panic("dispatch: failed to generate request id: " + err.Error())
	}
	return id.String()
}
