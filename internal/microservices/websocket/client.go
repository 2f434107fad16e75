package websocket

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"taskhub/internal/microservices/http-api/models"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const ( // ping pong(2-way heartbeat) to keep connection alive
	WriteWait      = 10 * time.Second    // max time to write a message to the peer
	PongWait       = 60 * time.Second    // max time to wait for pong from peer
	PingPeriod     = (PongWait * 9) / 10 // must be shorter than PongWait
	MaxMessageSize = 512                 // clients only send small control frames
	SendBufferSize = 64
	MaxHeldEvents  = 256 // live events buffered while the catch-up burst is running
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendTimeout      = errors.New("send buffer full")
)

// Client is one user's websocket connection. WritePump owns all writes to the socket;
// ReadPump detects disconnects and enforces the inbound rate limit.
type Client struct {
	UserID  string
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	limiter *rate.Limiter
	logger  *slog.Logger

	mu         sync.Mutex // guards catch-up state and ordering of enqueues
	catchingUp bool
	held       []models.EnrichedNotification
	replayed   map[string]struct{} // ids sent in the burst; later pushes of them are dropped

	closeOnce sync.Once
}

// NewClient creates a client in the catching-up state: live events are held until
// Replay has delivered the unread backlog.
func NewClient(userID string, conn *websocket.Conn, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		UserID:     userID,
		conn:       conn,
		send:       make(chan []byte, SendBufferSize),
		done:       make(chan struct{}),
		limiter:    rate.NewLimiter(rate.Limit(10), 20), // 10 frames/sec with burst of 20
		logger:     logger,
		catchingUp: true,
	}
}

func (c *Client) Send(n models.EnrichedNotification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.catchingUp {
		if len(c.held) >= MaxHeldEvents {
			return ErrSendTimeout
		}
		c.held = append(c.held, n)
		return nil
	}
	if _, dup := c.replayed[n.ID]; dup {
		return nil
	}
	return c.enqueue(n)
}

func (c *Client) Replay(batch []models.EnrichedNotification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	replayed := make(map[string]struct{}, len(batch))
	var firstErr error
	for _, n := range batch {
		if _, dup := replayed[n.ID]; dup {
			continue
		}
		replayed[n.ID] = struct{}{}
		if err := c.enqueue(n); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, n := range c.held {
		if _, dup := replayed[n.ID]; dup {
			continue
		}
		if err := c.enqueue(n); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.held = nil
	c.replayed = replayed
	c.catchingUp = false
	return firstErr
}

// enqueue hands a frame to the write pump. Callers hold c.mu so frames keep their order.
func (c *Client) enqueue(n models.EnrichedNotification) error {
	frame, err := NewNotificationFrame(n)
	if err != nil {
		return err
	}
	data, err := frame.ToJSON()
	if err != nil {
		return err
	}

	timer := time.NewTimer(WriteWait)
	defer timer.Stop()
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	case <-timer.C:
		return ErrSendTimeout
	}
}

// Close stops both pumps. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// Done is closed once the client has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ReadPump reads until the peer goes away, then calls onClose. Inbound data frames
// carry nothing the server acts on; a client exceeding the frame rate is disconnected.
func (c *Client) ReadPump(onClose func(*Client)) {
	defer func() {
		c.Close()
		if onClose != nil {
			onClose(c)
		}
	}()

	c.conn.SetReadLimit(MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("ws_read_failed", "user_id", c.UserID, "error", err)
			} else {
				c.logger.Debug("ws_client_disconnected", "user_id", c.UserID)
			}
			return
		}
		if !c.limiter.Allow() {
			c.logger.Warn("ws_rate_limited", "user_id", c.UserID)
			c.writeClose(websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}
	}
}

// WritePump drains the send queue onto the socket and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("ws_write_failed", "user_id", c.UserID, "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.writeClose(websocket.CloseNormalClosure, "")
			return
		}
	}
}

func (c *Client) writeClose(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(WriteWait))
}
