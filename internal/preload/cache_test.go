package preload

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/genricoloni/wozplayer/internal/domain"
	"go.uber.org/zap"
)

func TestCache_Request(t *testing.T) {
	tests := []struct {
		name       string
		load       LoadFunc[string]
		ids        []domain.MediaID
		wantCached map[domain.MediaID]bool
	}{
		{
			name: "Success - All ids cached",
			load: func(ctx context.Context, id domain.MediaID) (string, error) {
				return "handle-" + string(id), nil
			},
			ids:        []domain.MediaID{domain.MediaIdle, domain.MediaQ1},
			wantCached: map[domain.MediaID]bool{domain.MediaIdle: true, domain.MediaQ1: true},
		},
		{
			name: "Failure - Error is swallowed and not cached",
			load: func(ctx context.Context, id domain.MediaID) (string, error) {
				if id == domain.MediaQ2 {
					return "", errors.New("file missing")
				}
				return "ok", nil
			},
			ids:        []domain.MediaID{domain.MediaQ2, domain.MediaWelcome},
			wantCached: map[domain.MediaID]bool{domain.MediaQ2: false, domain.MediaWelcome: true},
		},
		{
			name: "Timeout - Slow load is abandoned",
			load: func(ctx context.Context, id domain.MediaID) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			},
			ids:        []domain.MediaID{domain.MediaClosing},
			wantCached: map[domain.MediaID]bool{domain.MediaClosing: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCache(zap.NewNop(), tt.load, 50*time.Millisecond)
			c.Request(context.Background(), tt.ids)

			for id, want := range tt.wantCached {
				if got := c.Cached(id); got != want {
					t.Errorf("Cached(%s): want %v, got %v", id, want, got)
				}
			}
		})
	}
}

// TestCache_SharesInFlightLoad verifies that concurrent requests for the same
// id start a single load.
func TestCache_SharesInFlightLoad(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	c := NewCache(zap.NewNop(), func(ctx context.Context, id domain.MediaID) (int, error) {
		calls.Add(1)
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return 42, nil
	}, time.Second)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Request(context.Background(), []domain.MediaID{domain.MediaIdle})
	}()
	<-started

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Request(context.Background(), []domain.MediaID{domain.MediaIdle})
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("expected a single load, got %d", n)
	}
	if h, ok := c.Get(domain.MediaIdle); !ok || h != 42 {
		t.Errorf("unexpected cache entry: %v %v", h, ok)
	}
}

func TestCache_CachedIdIsNoop(t *testing.T) {
	var calls atomic.Int32
	c := NewCache(zap.NewNop(), func(ctx context.Context, id domain.MediaID) (string, error) {
		calls.Add(1)
		return "x", nil
	}, time.Second)

	c.Request(context.Background(), []domain.MediaID{domain.MediaQ4})
	c.Request(context.Background(), []domain.MediaID{domain.MediaQ4, domain.MediaQ4})

	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 load, got %d", n)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}
