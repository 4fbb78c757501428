package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned by Receive once the peer has gone away
var ErrClosed = errors.New("connection closed")

// Conn is one live chat connection
type Conn interface {
	// Receive blocks until the next frame arrives
	Receive() ([]byte, error)
	// Send writes v as a JSON frame; it is safe for concurrent use
	Send(v interface{}) error
	Close() error
}

// SessionManager tracks the live connection of each user
type SessionManager interface {
	Register(userID uint, conn Conn)
	Unregister(userID uint, conn Conn)
	Lookup(userID uint) (Conn, bool)
	Count() int
}

// Registry is the in-process SessionManager
type Registry struct {
	mu    sync.RWMutex
	conns map[uint]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[uint]Conn)}
}

// Register maps userID to conn, closing any connection it replaces
func (r *Registry) Register(userID uint, conn Conn) {
	r.mu.Lock()
	previous, ok := r.conns[userID]
	r.conns[userID] = conn
	r.mu.Unlock()

	if ok && previous != conn {
		previous.Close()
	}
}

// Unregister removes userID only while it still maps to conn
func (r *Registry) Unregister(userID uint, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.conns[userID]; ok && current == conn {
		delete(r.conns, userID)
	}
}

func (r *Registry) Lookup(userID uint) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

const writeTimeout = 10 * time.Second

// wsConn adapts a gorilla connection; gorilla allows one concurrent writer
type wsConn struct {
	conn      *websocket.Conn
	writeLock sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func NewWebSocketConn(conn *websocket.Conn) Conn {
	return &wsConn{conn: conn}
}

func (c *wsConn) Receive() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
			return nil, ErrClosed
		}
		return nil, err
	}
	return data, nil
}

func (c *wsConn) Send(v interface{}) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeLock.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeLock.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
