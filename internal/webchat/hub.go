package webchat

import (
	"errors"
	"sync"
	"time"
)

// ErrNoSession is returned when no connection is attached to a session.
var ErrNoSession = errors.New("no active web chat connection for session")

// Conn is the subset of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
}

// Frame is the JSON document pushed to a browser session.
type Frame struct {
	Type      string    `json:"type"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type client struct {
	conn Conn
	mu   sync.Mutex
}

func (c *client) write(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub tracks open web chat connections by session id. A session may have several
// tabs open; every one receives each frame.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*client]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]map[*client]struct{})}
}

// Register attaches conn to sessionID and returns the func that detaches it.
func (h *Hub) Register(sessionID string, conn Conn) func() {
	c := &client{conn: conn}

	h.mu.Lock()
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*client]struct{})
	}
	h.sessions[sessionID][c] = struct{}{}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.sessions[sessionID], c)
		if len(h.sessions[sessionID]) == 0 {
			delete(h.sessions, sessionID)
		}
	}
}

// Connected reports how many connections are attached to sessionID.
func (h *Hub) Connected(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Send writes frame to every connection of sessionID. It succeeds when at least one
// connection accepted the frame.
func (h *Hub) Send(sessionID string, frame Frame) error {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.sessions[sessionID]))
	for c := range h.sessions[sessionID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return ErrNoSession
	}

	var errs []error
	for _, c := range clients {
		if err := c.write(frame); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(clients) {
		return errors.Join(errs...)
	}
	return nil
}
