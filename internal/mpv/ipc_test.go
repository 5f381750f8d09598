package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeMpv answers every command on conn with reply and may push events first
func fakeMpv(t *testing.T, conn net.Conn, reply func(cmd ipcCommand) (any, string), events ...string) {
	t.Helper()
	go func() {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			var cmd ipcCommand
			if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
				return
			}
			for _, ev := range events {
				if _, err := fmt.Fprintf(conn, "{\"event\":%q,\"reason\":\"eof\"}\n", ev); err != nil {
					return
				}
			}
			events = nil

			data, status := reply(cmd)
			payload, _ := json.Marshal(map[string]any{
				"request_id": cmd.RequestID,
				"data":       data,
				"error":      status,
			})
			if _, err := conn.Write(append(payload, '\n')); err != nil {
				return
			}
		}
	}()
}

func TestClient_Command(t *testing.T) {
	tests := []struct {
		name        string
		reply       func(cmd ipcCommand) (any, string)
		expectData  any
		expectError bool
	}{
		{
			name: "Success - Property value",
			reply: func(cmd ipcCommand) (any, string) {
				return "idle.mp4", "success"
			},
			expectData: "idle.mp4",
		},
		{
			name: "Error - Property unavailable",
			reply: func(cmd ipcCommand) (any, string) {
				return nil, "property unavailable"
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clientSide, serverSide := net.Pipe()
			fakeMpv(t, serverSide, tt.reply)

			c := NewClient(zap.NewNop(), clientSide)
			defer c.Close()

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			data, err := c.Command(ctx, "get_property", "filename")
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if data != tt.expectData {
				t.Errorf("Data mismatch: want %v, got %v", tt.expectData, data)
			}
		})
	}
}

func TestClient_EventsAndClose(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	fakeMpv(t, serverSide, func(cmd ipcCommand) (any, string) {
		return nil, "success"
	}, "end-file")

	c := NewClient(zap.NewNop(), clientSide)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := c.Command(ctx, "set_property", "pause", false); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	select {
	case ev := <-c.Events():
		if ev.Name != "end-file" || ev.Reason != "eof" {
			t.Errorf("Unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected an event")
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Unexpected close error: %v", err)
	}
	if _, err := c.Command(ctx, "stop"); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after close, got %v", err)
	}

	// events channel is closed with the connection
	if _, ok := <-c.Events(); ok {
		t.Error("Expected events channel closed")
	}
}

func TestClient_CommandHonorsContext(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	// read commands but never answer
	go func() {
		scanner := bufio.NewScanner(serverSide)
		for scanner.Scan() {
		}
	}()

	c := NewClient(zap.NewNop(), clientSide)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, err := c.Command(ctx, "loadfile", "q1.mp4", "replace"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}
