package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed is returned by commands issued after the connection is gone
var ErrClosed = errors.New("mpv connection closed")

// Event is an asynchronous notification sent by mpv
type Event struct {
	Name      string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	FileError string `json:"file_error,omitempty"`
}

// Conn defines the JSON IPC operations used by surfaces and canvases.
// This abstraction allows us to mock mpv in tests.
//
//go:generate mockgen -destination=mocks/conn_mock.go -package=mocks github.com/genricoloni/wozplayer/internal/mpv Conn
type Conn interface {
	// Command sends one IPC command and waits for its reply
	Command(ctx context.Context, args ...any) (any, error)

	// Events returns the stream of mpv events; it is closed with the connection
	Events() <-chan Event

	Close() error
}

// ipcCommand is the JSON structure sent to mpv's IPC socket
type ipcCommand struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// ipcMessage is either a command reply or an event
type ipcMessage struct {
	Event     string `json:"event"`
	Reason    string `json:"reason"`
	FileError string `json:"file_error"`
	RequestID int64  `json:"request_id"`
	Data      any    `json:"data"`
	Error     string `json:"error"`
}

type reply struct {
	data any
	err  error
}

// Client is a persistent JSON IPC connection to one mpv process.
// Replies are matched to commands by request id; everything else is an event.
type Client struct {
	logger *zap.Logger
	conn   net.Conn
	events chan Event

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan reply
	closed  bool

	done chan struct{}
}

// NewClient wraps an established socket connection and starts reading from it
func NewClient(logger *zap.Logger, conn net.Conn) *Client {
	c := &Client{
		logger:  logger,
		conn:    conn,
		events:  make(chan Event, 16),
		pending: make(map[int64]chan reply),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Command sends args as one mpv command
func (c *Client) Command(ctx context.Context, args ...any) (any, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan reply, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	payload, err := json.Marshal(ipcCommand{Command: args, RequestID: id})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	// mpv requires newline-delimited JSON
	c.writeMu.Lock()
	_, err = c.conn.Write(append(payload, '\n'))
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	select {
	case r := <-ch:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

// Events returns the mpv event stream
func (c *Client) Events() <-chan Event {
	return c.events
}

// Close closes the socket; pending commands fail with ErrClosed
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.events)

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			c.logger.Debug("Skipping malformed mpv message", zap.Error(err))
			continue
		}

		if msg.Event != "" {
			ev := Event{Name: msg.Event, Reason: msg.Reason, FileError: msg.FileError}
			select {
			case c.events <- ev:
			default:
				c.logger.Warn("mpv event dropped, channel full", zap.String("event", ev.Name))
			}
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.RequestID]
		c.mu.Unlock()
		if !ok {
			continue
		}

		var err error
		if msg.Error != "" && msg.Error != "success" {
			err = fmt.Errorf("mpv error: %s", msg.Error)
		}
		ch <- reply{data: msg.Data, err: err}
	}

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.logger.Warn("mpv connection lost", zap.Error(err))
	}
}
