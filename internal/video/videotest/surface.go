// Package videotest provides an in-memory video surface for tests.
package videotest

import (
	"context"
	"sync"
	"time"

	"github.com/genricoloni/wozplayer/internal/domain"
)

// Surface records every call it receives and plays nothing.
type Surface struct {
	name   string
	events chan domain.SurfaceEvent

	// LoadFunc overrides Load when set; the source is bound only on success
	LoadFunc func(ctx context.Context, path string) error
	// RejectAudible makes Play fail with ErrPlaybackRejected while unmuted
	RejectAudible bool
	// OpacityErr makes SetOpacity fail without changing the opacity
	OpacityErr error

	mu           sync.Mutex
	source       string
	playing      bool
	muted        bool
	loop         bool
	visible      bool
	opacity      float64
	volume       float64
	text         string
	loads        []string
	plays        int
	rewinds      int
	clears       int
	opacityCalls int
	closed       bool
}

// NewSurface creates a fake surface
func NewSurface(name string) *Surface {
	return &Surface{
		name:    name,
		events:  make(chan domain.SurfaceEvent, 4),
		opacity: 1,
	}
}

func (s *Surface) Name() string { return s.name }

func (s *Surface) Load(ctx context.Context, path string) error {
	s.mu.Lock()
	s.loads = append(s.loads, path)
	fn := s.LoadFunc
	s.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, path); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.source = path
	s.playing = false
	s.mu.Unlock()
	return nil
}

func (s *Surface) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *Surface) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RejectAudible && !s.muted {
		return domain.ErrPlaybackRejected
	}
	s.plays++
	s.playing = true
	return nil
}

func (s *Surface) Pause() error {
	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()
	return nil
}

func (s *Surface) Rewind() error {
	s.mu.Lock()
	s.rewinds++
	s.mu.Unlock()
	return nil
}

func (s *Surface) Clear() error {
	s.mu.Lock()
	s.source = ""
	s.playing = false
	s.clears++
	s.mu.Unlock()
	return nil
}

func (s *Surface) SetLoop(loop bool) error {
	s.mu.Lock()
	s.loop = loop
	s.mu.Unlock()
	return nil
}

func (s *Surface) SetMuted(muted bool) error {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
	return nil
}

func (s *Surface) SetVolume(volume float64) error {
	s.mu.Lock()
	s.volume = volume
	s.mu.Unlock()
	return nil
}

func (s *Surface) SetOpacity(opacity float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opacityCalls++
	if s.OpacityErr != nil {
		return s.OpacityErr
	}
	s.opacity = opacity
	return nil
}

func (s *Surface) SetVisible(visible bool) error {
	s.mu.Lock()
	s.visible = visible
	s.mu.Unlock()
	return nil
}

func (s *Surface) ShowText(text string, d time.Duration) error {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
	return nil
}

func (s *Surface) Events() <-chan domain.SurfaceEvent { return s.events }

func (s *Surface) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// End simulates the natural end of the bound source
func (s *Surface) End() {
	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()
	s.events <- domain.SurfaceEvent{Kind: domain.SurfaceEnded}
}

// Fail simulates a runtime error of the bound source
func (s *Surface) Fail(err error) {
	s.events <- domain.SurfaceEvent{Kind: domain.SurfaceError, Err: err}
}

func (s *Surface) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *Surface) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

func (s *Surface) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *Surface) Loop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop
}

func (s *Surface) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *Surface) Opacity() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opacity
}

func (s *Surface) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Loads returns every path passed to Load, in order
func (s *Surface) Loads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.loads...)
}

func (s *Surface) Plays() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays
}

func (s *Surface) Rewinds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rewinds
}

func (s *Surface) Clears() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}

func (s *Surface) OpacityCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opacityCalls
}

func (s *Surface) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
