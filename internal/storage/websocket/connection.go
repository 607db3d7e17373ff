package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/railsim/formation/pkg/streaming"
)

const (
	sendChSize   = 10_000
	ackChSize    = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

// session is one dialed socket and the loops serving it. The write loop is
// the only writer while the session is live.
type session struct {
	conn *ws.Conn
	stop chan struct{}
	once sync.Once
}

func (s *session) end() {
	s.once.Do(func() {
		close(s.stop)
		_ = s.conn.Close()
	})
}

// connection manages a reconnecting WebSocket with a single write goroutine.
type connection struct {
	mu           sync.Mutex
	current      *session
	reconnecting bool
	closed       bool

	sendCh chan []byte
	ackCh  chan streaming.AckMessage
	done   chan struct{} // closed on shutdown

	wsURL  string
	secret string

	// replay returns the messages that restore the remote state after a
	// reconnect.
	replay func() [][]byte

	initialBackoff time.Duration

	logger *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		sendCh: make(chan []byte, sendChSize),
		ackCh:  make(chan streaming.AckMessage, ackChSize),
		done:   make(chan struct{}),
		logger: logger,

		initialBackoff: time.Second,
	}
}

// dial connects to the WebSocket server and starts read/write loops.
func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}
	c.start(conn)
	return nil
}

// dialOnce performs a single WebSocket dial with the secret query param.
func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", c.secret)
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (c *connection) start(conn *ws.Conn) {
	s := &session{conn: conn, stop: make(chan struct{})}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.current = s
	c.mu.Unlock()

	go c.writeLoop(s)
	go c.readLoop(s)
}

// writeLoop drains sendCh and writes messages to the session's socket.
// A message taken from sendCh when the write fails is lost; the replay on
// reconnect restores the remote state.
func (c *connection) writeLoop(s *session) {
	for {
		select {
		case <-c.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(
				ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			)
			s.end()
			return
		case <-s.stop:
			return
		case data := <-c.sendCh:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				c.lost(s)
				return
			}
			if err := s.conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				c.lost(s)
				return
			}
		}
	}
}

// readLoop reads ack messages from the server and routes them to ackCh.
func (c *connection) readLoop(s *session) {
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			case <-s.stop:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			c.lost(s)
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil {
			c.logger.Debug("Non-ack message received", "raw", string(message))
			continue
		}

		if ack.Type == streaming.TypeAck {
			select {
			case c.ackCh <- ack:
			default:
				c.logger.Debug("Ack channel full, dropping", "for", ack.For)
			}
		}
	}
}

// lost ends a failed session and starts one reconnect for it.
func (c *connection) lost(s *session) {
	s.end()

	c.mu.Lock()
	if c.closed || c.reconnecting || c.current != s {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.reconnecting = true
	c.mu.Unlock()

	go c.reconnect()
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff. On success it replays the current remote state
// and restarts the read/write loops.
func (c *connection) reconnect() {
	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	backoff := c.initialBackoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		var replay [][]byte
		if c.replay != nil {
			replay = c.replay()
		}
		if err := writeAll(conn, replay); err != nil {
			c.logger.Warn("Failed to replay state after reconnect", "error", err)
			_ = conn.Close()
			continue
		}

		c.start(conn)
		c.logger.Info("WebSocket reconnected", "attempt", attempt, "replayed", len(replay))
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// writeAll writes messages synchronously, used before the write loop runs.
func writeAll(conn *ws.Conn, msgs [][]byte) error {
	for _, data := range msgs {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
			return err
		}
	}
	return nil
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *connection) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

// sendAndWait sends data and blocks until the server acknowledges with a
// matching ack message or the timeout expires.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	select {
	case <-c.done:
		return fmt.Errorf("connection closed before sending %q", ackFor)
	default:
	}
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
			// Not our ack, keep waiting.
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close shuts down all goroutines. The live write loop sends the close
// frame; a connection that is reconnecting has no socket to close.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()
	return nil
}
