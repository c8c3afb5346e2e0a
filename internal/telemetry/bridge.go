package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultStaleAfter is how long a bridge value stays valid without a new frame.
	DefaultStaleAfter = 2 * time.Second

	maxFrameSize   = 4096
	minRetryDelay  = 500 * time.Millisecond
	maxRetryDelay  = 10 * time.Second
	handshakeLimit = 5 * time.Second
)

// Frame is one message from the simulator bridge: variable name to value.
type Frame map[string]float64

// Bridge receives frames pushed by a simulator bridge over a websocket and
// serves the latest values to the poller without blocking.
type Bridge struct {
	url        string
	staleAfter time.Duration
	dialer     *websocket.Dialer
	logger     *log.Logger
	now        func() time.Time

	mu        sync.RWMutex
	values    Frame
	updatedAt time.Time
	connected bool
}

// NewBridge constructs a Bridge for the given ws:// or wss:// URL.
func NewBridge(url string, staleAfter time.Duration, logger *log.Logger) *Bridge {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Bridge{
		url:        url,
		staleAfter: staleAfter,
		dialer:     &websocket.Dialer{HandshakeTimeout: handshakeLimit},
		logger:     logger,
		now:        time.Now,
		values:     Frame{},
	}
}

// Read implements Source.
func (b *Bridge) Read(name string) (float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.connected || b.now().Sub(b.updatedAt) > b.staleAfter {
		return 0, ErrUnavailable
	}
	v, ok := b.values[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnavailable, name)
	}
	return v, nil
}

// Connected reports whether a websocket session is open.
func (b *Bridge) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}

// Run keeps a connection to the bridge open until ctx is done, reconnecting
// with exponential backoff.
func (b *Bridge) Run(ctx context.Context) error {
	delay := minRetryDelay
	for {
		err := b.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			b.logger.Printf("telemetry bridge: %v (retry in %s)", err, delay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

func (b *Bridge) session(ctx context.Context) error {
	conn, _, err := b.dialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", b.url, err)
	}
	conn.SetReadLimit(maxFrameSize)
	b.setConnected(true)
	defer b.setConnected(false)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()

	b.logger.Printf("telemetry bridge: connected to %s", b.url)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("failed to read frame: %w", err)
		}
		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			b.logger.Printf("telemetry bridge: dropping malformed frame: %v", err)
			continue
		}
		b.store(frame)
	}
}

func (b *Bridge) store(frame Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range frame {
		b.values[k] = v
	}
	b.updatedAt = b.now()
}

func (b *Bridge) setConnected(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = v
	if !v {
		b.values = Frame{}
	}
}
