package visualizer

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestGeometry(t *testing.T) {
	tests := []struct {
		name       string
		bins       []uint8
		wantAvg    float64
		wantRadius float64
	}{
		{name: "Silence", bins: make([]uint8, 128), wantAvg: 0, wantRadius: 100},
		{name: "Saturated", bins: filled(128, 255), wantAvg: 255, wantRadius: 200},
		{name: "Half", bins: filled(128, 51), wantAvg: 51, wantRadius: 120},
		{name: "Empty", bins: nil, wantAvg: 0, wantRadius: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			avg := Average(tt.bins)
			if avg != tt.wantAvg {
				t.Errorf("average: want %v, got %v", tt.wantAvg, avg)
			}
			if r := DiscRadius(avg); r != tt.wantRadius {
				t.Errorf("radius: want %v, got %v", tt.wantRadius, r)
			}
		})
	}
}

func TestBarValue_SamplesEvenly(t *testing.T) {
	bins := make([]uint8, 128)
	for i := range bins {
		bins[i] = uint8(i)
	}

	if got := BarValue(bins, 0); got != 0 {
		t.Errorf("bar 0: want 0, got %d", got)
	}
	if got := BarValue(bins, 1); got != 2 {
		t.Errorf("bar 1: want bin 2, got %d", got)
	}
	if got := BarValue(bins, BarCount-1); got != 126 {
		t.Errorf("last bar: want bin 126, got %d", got)
	}
}

func TestRenderer(t *testing.T) {
	r := NewRenderer(640, 480)

	black := r.Clear()
	if !isBlack(black, 320, 240) {
		t.Fatal("expected a black canvas after Clear")
	}

	frame := r.Frame(filled(128, 200))
	if isBlack(frame, 320, 240) {
		t.Error("expected the disc at the center")
	}
	if !isBlack(frame, 2, 2) {
		t.Error("expected the corner to stay dark")
	}

	idle := r.Idle()
	if isBlack(idle, 320, 240) {
		t.Error("expected the idle graphic at the center")
	}

	if !isBlack(r.Clear(), 320, 240) {
		t.Error("expected Clear to wipe the idle graphic")
	}
}

type fakeSource struct {
	visible atomic.Bool
	playing atomic.Bool
}

func (s *fakeSource) Visible() bool { return s.visible.Load() }

func (s *fakeSource) Frequencies(dst []uint8) bool {
	if !s.playing.Load() {
		return false
	}
	for i := range dst {
		dst[i] = 180
	}
	return true
}

type recordingSink struct {
	mu     sync.Mutex
	frames int
	last   []byte
}

func (s *recordingSink) WriteFrame(frame *image.RGBA) error {
	s.mu.Lock()
	s.frames++
	s.last = append(s.last[:0], frame.Pix...)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *recordingSink) centerIsBlack(w, h int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	off := (h/2*w + w/2) * 4
	return s.last[off] == 0 && s.last[off+1] == 0 && s.last[off+2] == 0
}

type recordingView struct {
	mu      sync.Mutex
	changes []bool
}

func (v *recordingView) SetVisible(visible bool) error {
	v.mu.Lock()
	v.changes = append(v.changes, visible)
	v.mu.Unlock()
	return nil
}

func (v *recordingView) snapshot() []bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]bool(nil), v.changes...)
}

func TestVisualizer_Loop(t *testing.T) {
	src := &fakeSource{}
	view := &recordingView{}
	sink := &recordingSink{}

	v := New(zap.NewNop(), src, view, NewRenderer(320, 240), 200, sink)
	if err := v.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer v.Stop()

	// idle graphic is published once while nothing plays
	waitFor(t, func() bool { return sink.count() >= 1 })
	time.Sleep(30 * time.Millisecond)
	if n := sink.count(); n != 1 {
		t.Errorf("expected a single idle frame, got %d", n)
	}

	src.visible.Store(true)
	src.playing.Store(true)
	waitFor(t, func() bool { return sink.count() >= 5 })
	if got := view.snapshot(); len(got) != 1 || !got[0] {
		t.Errorf("expected the view raised once, got %v", got)
	}

	src.playing.Store(false)
	before := sink.count()
	waitFor(t, func() bool { return sink.count() >= before+2 })
	time.Sleep(30 * time.Millisecond)
	if n := sink.count(); n != before+2 {
		t.Errorf("expected clear and idle frames only, got %d", n-before)
	}

	src.visible.Store(false)
	waitFor(t, func() bool { return len(view.snapshot()) == 2 })

	v.Stop()
	if !sink.centerIsBlack(320, 240) {
		t.Error("expected the canvas cleared on stop")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func filled(n int, v uint8) []uint8 {
	b := make([]uint8, n)
	for i := range b {
		b[i] = v
	}
	return b
}

func isBlack(img *image.RGBA, x, y int) bool {
	c := img.RGBAAt(x, y)
	return c.R == 0 && c.G == 0 && c.B == 0
}
