package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

var ErrClientClosed = errors.New("client connection closed")

// Conn is the part of a websocket connection the relay needs. Both
// gofiber/contrib/websocket and gorilla/websocket connections satisfy it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

type deadlineSetter interface {
	SetWriteDeadline(t time.Time) error
}

type readLimiter interface {
	SetReadLimit(limit int64)
}

// Client wraps one live socket. Writes are serialised because peers write to
// it from their own goroutines.
type Client struct {
	ID string

	conn   Conn
	mu     sync.Mutex
	closed bool

	identityMu   sync.RWMutex
	userID       string
	targetUserID string
}

func NewClient(conn Conn) *Client {
	if rl, ok := conn.(readLimiter); ok {
		rl.SetReadLimit(maxMessageSize)
	}
	return &Client{ID: uuid.NewString(), conn: conn}
}

// Send writes one JSON frame. A failed write marks the client closed so the
// registry treats it as offline from then on.
func (c *Client) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	if ds, ok := c.conn.(deadlineSetter); ok {
		_ = ds.SetWriteDeadline(time.Now().Add(writeWait))
	}
	if err := c.conn.WriteJSON(v); err != nil {
		c.closed = true
		_ = c.conn.Close()
		return err
	}
	return nil
}

func (c *Client) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *Client) read() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *Client) setIdentity(userID, targetUserID string) {
	c.identityMu.Lock()
	c.userID = userID
	c.targetUserID = targetUserID
	c.identityMu.Unlock()
}

func (c *Client) UserID() string {
	c.identityMu.RLock()
	defer c.identityMu.RUnlock()
	return c.userID
}

// TargetUserID is the peer this connection joined to chat with.
func (c *Client) TargetUserID() string {
	c.identityMu.RLock()
	defer c.identityMu.RUnlock()
	return c.targetUserID
}
