package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/genricoloni/wozplayer/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	clientBuffer = 16
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

// Event is pushed to operator pages over the websocket
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	MediaID   string    `json:"mediaId,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan Event
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// EventStream broadcasts mediaEnded and mediaError to websocket clients.
// A client that cannot keep up loses events instead of blocking the sender.
type EventStream struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewEventStream creates an empty stream
func NewEventStream(logger *zap.Logger) *EventStream {
	return &EventStream{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // operator pages are served from other origins
			},
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and keeps the client registered until it
// disconnects
func (s *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan Event, clientBuffer)}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()

	s.logger.Info("Event client connected", zap.String("remote", r.RemoteAddr), zap.Int("clients", n))

	go s.writeLoop(c)
	s.readLoop(c)
}

// readLoop discards incoming frames; it only detects the disconnect
func (s *EventStream) readLoop(c *client) {
	defer s.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("Event client read failed", zap.Error(err))
			}
			return
		}
	}
}

func (s *EventStream) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				s.logger.Debug("Event client write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *EventStream) remove(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		c.close()
	}
	n := len(s.clients)
	s.mu.Unlock()
	s.logger.Info("Event client disconnected", zap.Int("clients", n))
}

// Clients returns the number of connected clients
func (s *EventStream) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// MediaEnded pushes a mediaEnded event
func (s *EventStream) MediaEnded(id domain.MediaID) {
	s.broadcast(Event{Type: "mediaEnded", MediaID: string(id)})
}

// MediaError pushes a mediaError event
func (s *EventStream) MediaError(message string) {
	s.broadcast(Event{Type: "mediaError", Message: message})
}

func (s *EventStream) broadcast(ev Event) {
	ev.ID = uuid.New().String()
	ev.Timestamp = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- ev:
		default:
			s.logger.Warn("Event client too slow, dropping event", zap.String("type", ev.Type))
		}
	}
}

// Close disconnects every client and refuses new ones
func (s *EventStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for c := range s.clients {
		delete(s.clients, c)
		c.close()
	}
}
