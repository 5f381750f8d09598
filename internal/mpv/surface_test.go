package mpv_test

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/genricoloni/wozplayer/internal/domain"
	"github.com/genricoloni/wozplayer/internal/mpv"
	"github.com/genricoloni/wozplayer/internal/mpv/mocks"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

// newMockSurface wires a surface to a mocked connection whose event stream
// is fed through the returned channel
func newMockSurface(t *testing.T) (*mpv.Surface, *mocks.MockConn, chan mpv.Event) {
	t.Helper()
	ctrl := gomock.NewController(t)
	conn := mocks.NewMockConn(ctrl)
	events := make(chan mpv.Event, 4)

	conn.EXPECT().Events().Return((<-chan mpv.Event)(events))
	conn.EXPECT().Close().DoAndReturn(func() error {
		close(events)
		return nil
	})

	s := mpv.NewSurface(zap.NewNop(), "video-a", conn, nil)
	t.Cleanup(func() { _ = s.Close() })
	return s, conn, events
}

func TestSurface_PropertyMapping(t *testing.T) {
	tests := []struct {
		name   string
		call   func(s *mpv.Surface) error
		expect []any
	}{
		{
			name:   "Opacity maps to brightness",
			call:   func(s *mpv.Surface) error { return s.SetOpacity(0.25) },
			expect: []any{"set_property", "brightness", -75},
		},
		{
			name:   "Full opacity is neutral brightness",
			call:   func(s *mpv.Surface) error { return s.SetOpacity(1) },
			expect: []any{"set_property", "brightness", 0},
		},
		{
			name:   "Visibility maps to ontop",
			call:   func(s *mpv.Surface) error { return s.SetVisible(true) },
			expect: []any{"set_property", "ontop", true},
		},
		{
			name:   "Loop on",
			call:   func(s *mpv.Surface) error { return s.SetLoop(true) },
			expect: []any{"set_property", "loop-file", "inf"},
		},
		{
			name:   "Loop off",
			call:   func(s *mpv.Surface) error { return s.SetLoop(false) },
			expect: []any{"set_property", "loop-file", "no"},
		},
		{
			name:   "Volume is scaled to percent",
			call:   func(s *mpv.Surface) error { return s.SetVolume(0.5) },
			expect: []any{"set_property", "volume", 50.0},
		},
		{
			name:   "Mute",
			call:   func(s *mpv.Surface) error { return s.SetMuted(true) },
			expect: []any{"set_property", "mute", true},
		},
		{
			name:   "Pause",
			call:   func(s *mpv.Surface) error { return s.Pause() },
			expect: []any{"set_property", "pause", true},
		},
		{
			name:   "Banner text",
			call:   func(s *mpv.Surface) error { return s.ShowText("Erreur", 4*time.Second) },
			expect: []any{"show-text", "Erreur", int64(4000)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, conn, _ := newMockSurface(t)
			conn.EXPECT().Command(gomock.Any(), tt.expect...).Return(nil, nil)

			if err := tt.call(s); err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestSurface_Load(t *testing.T) {
	const path = "assets/videos/q1.mp4"

	tests := []struct {
		name         string
		path         string
		event        *mpv.Event
		timeout      time.Duration
		expectReason domain.LoadFailure
		expectCtxErr bool
	}{
		{
			name:  "Success - File loaded",
			event: &mpv.Event{Name: "file-loaded"},
		},
		{
			name:         "Unsupported format",
			event:        &mpv.Event{Name: "end-file", Reason: "error", FileError: "unrecognized file format"},
			expectReason: domain.FailureNotFound,
		},
		{
			name:         "Missing local file",
			event:        &mpv.Event{Name: "end-file", Reason: "error", FileError: "loading failed"},
			expectReason: domain.FailureNotFound,
		},
		{
			name:         "Unreachable remote file",
			path:         "https://media.example.org/videos/q1.mp4",
			event:        &mpv.Event{Name: "end-file", Reason: "error", FileError: "loading failed"},
			expectReason: domain.FailureNetwork,
		},
		{
			name:         "Decode error",
			event:        &mpv.Event{Name: "end-file", Reason: "error", FileError: "no audio or video data played"},
			expectReason: domain.FailureDecode,
		},
		{
			name:         "Timeout - mpv never answers",
			timeout:      30 * time.Millisecond,
			expectCtxErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, conn, events := newMockSurface(t)
			target := path
			if tt.path != "" {
				target = tt.path
			}

			conn.EXPECT().Command(gomock.Any(), "loadfile", target, "replace").
				DoAndReturn(func(ctx context.Context, args ...any) (any, error) {
					if tt.event != nil {
						events <- *tt.event
					}
					return nil, nil
				})
			if tt.expectCtxErr {
				conn.EXPECT().Command(gomock.Any(), "stop").Return(nil, nil)
			}

			ctx := context.Background()
			if tt.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.timeout)
				defer cancel()
			}

			err := s.Load(ctx, target)

			switch {
			case tt.expectCtxErr:
				if !errors.Is(err, context.DeadlineExceeded) {
					t.Errorf("Expected deadline exceeded, got %v", err)
				}
				if s.Source() != "" {
					t.Errorf("Expected no source bound, got %q", s.Source())
				}
			case tt.expectReason != "":
				var le *domain.LoadError
				if !errors.As(err, &le) || le.Reason != tt.expectReason {
					t.Errorf("Expected %s LoadError, got %v", tt.expectReason, err)
				}
			default:
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				if s.Source() != target {
					t.Errorf("Source mismatch: want %s, got %s", target, s.Source())
				}
			}
		})
	}
}

func TestSurface_Events(t *testing.T) {
	tests := []struct {
		name       string
		event      mpv.Event
		expectKind *domain.SurfaceEventKind
	}{
		{
			name:       "Natural end",
			event:      mpv.Event{Name: "end-file", Reason: "eof"},
			expectKind: ptr(domain.SurfaceEnded),
		},
		{
			name:       "Runtime error",
			event:      mpv.Event{Name: "end-file", Reason: "error", FileError: "decoder failed"},
			expectKind: ptr(domain.SurfaceError),
		},
		{
			name:  "Stop is ignored",
			event: mpv.Event{Name: "end-file", Reason: "stop"},
		},
		{
			name:  "Unrelated event is ignored",
			event: mpv.Event{Name: "playback-restart"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, events := newMockSurface(t)
			events <- tt.event

			select {
			case ev := <-s.Events():
				if tt.expectKind == nil {
					t.Fatalf("Unexpected event emitted: %+v", ev)
				}
				if ev.Kind != *tt.expectKind {
					t.Errorf("Kind mismatch: want %v, got %v", *tt.expectKind, ev.Kind)
				}
			case <-time.After(50 * time.Millisecond):
				if tt.expectKind != nil {
					t.Error("Expected event was not emitted")
				}
			}
		})
	}
}

func TestSurface_ClearInterruptsLoad(t *testing.T) {
	s, conn, _ := newMockSurface(t)

	loading := make(chan struct{})
	conn.EXPECT().Command(gomock.Any(), "loadfile", gomock.Any(), "replace").
		DoAndReturn(func(ctx context.Context, args ...any) (any, error) {
			close(loading)
			return nil, nil
		})
	conn.EXPECT().Command(gomock.Any(), "stop").Return(nil, nil)

	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background(), "assets/videos/welcome.mp4") }()

	<-loading
	time.Sleep(10 * time.Millisecond)
	if err := s.Clear(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	select {
	case err := <-done:
		var le *domain.LoadError
		if !errors.As(err, &le) || le.Reason != domain.FailureInterrupted {
			t.Errorf("Expected interrupted LoadError, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Load was not interrupted")
	}
}

type nopWriteCloser struct {
	frames [][]byte
}

func (w *nopWriteCloser) Write(p []byte) (int, error) {
	w.frames = append(w.frames, append([]byte(nil), p...))
	return len(p), nil
}

func (w *nopWriteCloser) Close() error { return nil }

func TestCanvas_WriteFrame(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mocks.NewMockConn(ctrl)
	events := make(chan mpv.Event)
	conn.EXPECT().Events().Return((<-chan mpv.Event)(events))
	conn.EXPECT().Close().DoAndReturn(func() error {
		close(events)
		return nil
	})

	w := &nopWriteCloser{}
	c := mpv.NewCanvas(zap.NewNop(), "canvas", conn, w, domain.ScreenResolution{Width: 4, Height: 2}, nil)
	defer c.Close()

	if err := c.WriteFrame(image.NewRGBA(image.Rect(0, 0, 4, 2))); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(w.frames) != 1 || len(w.frames[0]) != 32 {
		t.Errorf("Expected one 32-byte write, got %d writes", len(w.frames))
	}

	// a sub-image has a wider stride and is written row by row
	big := image.NewRGBA(image.Rect(0, 0, 8, 2))
	sub := big.SubImage(image.Rect(0, 0, 4, 2)).(*image.RGBA)
	if err := c.WriteFrame(sub); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(w.frames) != 3 || len(w.frames[1]) != 16 {
		t.Errorf("Expected two row writes of 16 bytes, got %d writes", len(w.frames)-1)
	}

	if err := c.WriteFrame(image.NewRGBA(image.Rect(0, 0, 3, 3))); err == nil {
		t.Error("Expected size mismatch error")
	}
}

func ptr[T any](v T) *T {
	return &v
}
