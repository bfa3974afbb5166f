package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hilthontt/tunesync/internal/domain"
	"github.com/hilthontt/tunesync/internal/infrastructure/logging"
)

// Status is the channel's connection state as reported to the engine.
type Status int

const (
	StatusConnected Status = iota
	StatusReconnecting
	StatusGivenUp
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusGivenUp:
		return "given up"
	}
	return "unknown"
}

const (
	DefaultMaxAttempts    = 15
	DefaultReconnectDelay = 5 * time.Second
)

// Channel is a websocket connection that reconnects itself. Inbound
// events and status changes are delivered on their own channels; sends
// during an outage are dropped, convergence relies on the next
// broadcast superseding whatever was missed.
type Channel struct {
	url         string
	maxAttempts int
	delay       time.Duration
	logger      logging.Logger

	events chan *domain.Event
	status chan Status

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	done chan struct{}
}

type Options struct {
	MaxAttempts    int
	ReconnectDelay time.Duration
	Logger         logging.Logger
}

func Dial(ctx context.Context, url string, opts Options) (*Channel, error) {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}

	c := &Channel{
		url:         url,
		maxAttempts: opts.MaxAttempts,
		delay:       opts.ReconnectDelay,
		logger:      opts.Logger,
		events:      make(chan *domain.Event, 64),
		status:      make(chan Status, 8),
		done:        make(chan struct{}),
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c.setConn(conn)
	c.notify(StatusConnected)

	go c.readLoop(ctx)

	return c, nil
}

// Events delivers every event received from the room, echoes included.
func (c *Channel) Events() <-chan *domain.Event {
	return c.events
}

// StatusChanges delivers connection state transitions.
func (c *Channel) StatusChanges() <-chan Status {
	return c.status
}

// Send writes an event to the room. During an outage the event is
// dropped and ErrNotConnected returned.
func (c *Channel) Send(event *domain.Event) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Channel) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Channel) notify(s Status) {
	select {
	case c.status <- s:
	default:
	}
}

func (c *Channel) readLoop(ctx context.Context) {
	for {
		c.mu.Lock()
		conn := c.conn
		closed := c.closed
		c.mu.Unlock()

		if closed || conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}

			if c.logger != nil {
				c.logger.Warn(logging.Transport, logging.Reconnect, "connection lost", map[logging.ExtraKey]any{
					logging.ErrorMessage: err.Error(),
				})
			}

			if !c.reconnect(ctx) {
				return
			}
			continue
		}

		var event domain.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			// Malformed events are skipped, never fatal
			continue
		}

		select {
		case c.events <- &event:
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// reconnect retries with a fixed delay until it succeeds or the attempt
// budget runs out. Returns false once the channel has given up.
func (c *Channel) reconnect(ctx context.Context) bool {
	c.setConn(nil)
	c.notify(StatusReconnecting)

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		select {
		case <-time.After(c.delay):
		case <-c.done:
			return false
		case <-ctx.Done():
			return false
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err == nil {
			c.setConn(conn)
			c.notify(StatusConnected)

			if c.logger != nil {
				c.logger.Info(logging.Transport, logging.Reconnect, "reconnected", map[logging.ExtraKey]any{
					"attempt": attempt,
				})
			}
			return true
		}

		if c.logger != nil {
			c.logger.Warn(logging.Transport, logging.Reconnect, "reconnect attempt failed", map[logging.ExtraKey]any{
				"attempt":      attempt,
				"max_attempts": c.maxAttempts,
			})
		}
	}

	c.notify(StatusGivenUp)
	return false
}
