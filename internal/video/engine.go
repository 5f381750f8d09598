package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/genricoloni/wozplayer/internal/domain"
	"github.com/genricoloni/wozplayer/internal/fetcher"
	"github.com/genricoloni/wozplayer/internal/preload"
	"github.com/genricoloni/wozplayer/internal/resolver"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	defaultLoadTimeout = 10 * time.Second
	defaultFrameRate   = 60
)

var errNothingPrepared = errors.New("no media prepared")

// Options tunes the video engine
type Options struct {
	LoadTimeout time.Duration
	FrameRate   int
	Fade        time.Duration
	Volume      float64
}

// Engine double-buffers two video surfaces and crossfades between them.
// Exactly one surface is active outside of a crossfade.
type Engine struct {
	logger      *zap.Logger
	resolver    domain.Resolver
	cache       *preload.Cache[fetcher.Asset]
	loadTimeout time.Duration
	frameTick   time.Duration

	mu         sync.Mutex
	surfaces   [2]domain.Surface
	active     int
	target     int
	prepared   bool
	reuse      bool
	next       domain.MediaID
	current    domain.MediaID
	fade       time.Duration
	volume     float64
	fadeCancel context.CancelFunc

	transitioning atomic.Bool

	events chan domain.EngineEvent
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewEngine creates a video engine over two surfaces. Surface a starts active.
func NewEngine(
	logger *zap.Logger,
	res domain.Resolver,
	cache *preload.Cache[fetcher.Asset],
	a, b domain.Surface,
	opts Options,
) *Engine {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = defaultLoadTimeout
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = defaultFrameRate
	}

	e := &Engine{
		logger:      logger,
		resolver:    res,
		cache:       cache,
		loadTimeout: opts.LoadTimeout,
		frameTick:   time.Second / time.Duration(opts.FrameRate),
		surfaces:    [2]domain.Surface{a, b},
		fade:        opts.Fade,
		volume:      opts.Volume,
		events:      make(chan domain.EngineEvent, 8),
		done:        make(chan struct{}),
	}

	for i, s := range e.surfaces {
		if err := s.SetVolume(opts.Volume); err != nil {
			logger.Warn("Failed to set initial volume", zap.String("surface", s.Name()), zap.Error(err))
		}
		if err := s.SetVisible(i == 0); err != nil {
			logger.Warn("Failed to set initial visibility", zap.String("surface", s.Name()), zap.Error(err))
		}
		e.wg.Add(1)
		go e.watch(i)
	}

	return e
}

// Kind returns the media kind served by this engine
func (e *Engine) Kind() domain.MediaKind {
	return domain.KindVideo
}

// Load prepares req on the inactive surface, or picks a surface still
// holding idle when idle is re-entered after another cue.
func (e *Engine) Load(ctx context.Context, req domain.LoadRequest) error {
	e.mu.Lock()
	if req.Media == domain.MediaIdle && req.ReturningToIdle {
		for i, s := range e.surfaces {
			if i != e.active && resolver.IsIdleSource(s.Source()) {
				e.target, e.reuse, e.prepared, e.next = i, true, true, req.Media
				e.mu.Unlock()
				e.logger.Info("Reusing idle surface", zap.String("surface", s.Name()))
				return nil
			}
		}
	}
	idx := 1 - e.active
	s := e.surfaces[idx]
	e.prepared = false
	e.mu.Unlock()

	path := e.resolver.Resolve(req.Media, domain.KindVideo)
	if !isRemote(path) {
		if _, err := os.Stat(path); err != nil {
			return &domain.LoadError{Media: req.Media, Path: path, Reason: domain.FailureNotFound, Err: err}
		}
	}

	e.logger.Info("Loading video",
		zap.String("media", string(req.Media)),
		zap.String("surface", s.Name()),
		zap.Bool("loop", req.Loop),
		zap.Bool("preloaded", e.Cached(req.Media)))

	if err := s.Pause(); err != nil {
		e.logger.Debug("Pause before load failed", zap.Error(err))
	}
	if err := s.Rewind(); err != nil {
		e.logger.Debug("Rewind before load failed", zap.Error(err))
	}
	if err := s.SetLoop(req.Loop); err != nil {
		e.logger.Warn("Failed to set loop flag", zap.String("surface", s.Name()), zap.Error(err))
	}

	loadCtx, cancel := context.WithTimeout(ctx, e.loadTimeout)
	defer cancel()

	if err := s.Load(loadCtx, path); err != nil {
		if errors.Is(loadCtx.Err(), context.DeadlineExceeded) {
			return &domain.LoadTimeoutError{Media: req.Media, Path: path, Timeout: e.loadTimeout}
		}
		var le *domain.LoadError
		if errors.As(err, &le) {
			le.Media, le.Path = req.Media, path
			return le
		}
		return &domain.LoadError{Media: req.Media, Path: path, Reason: domain.FailureDecode, Err: err}
	}

	e.mu.Lock()
	e.target, e.reuse, e.prepared, e.next = idx, false, true, req.Media
	e.mu.Unlock()

	e.logger.Debug("Video ready", zap.String("media", string(req.Media)))
	return nil
}

// Play crossfades to the prepared surface and starts it
func (e *Engine) Play(ctx context.Context) error {
	e.mu.Lock()
	if !e.prepared {
		e.mu.Unlock()
		return errNothingPrepared
	}
	from, to, reuse, media := e.active, e.target, e.reuse, e.next
	e.prepared = false
	e.mu.Unlock()

	if err := e.crossfade(ctx, from, to); err != nil {
		return fmt.Errorf("crossfade interrupted: %w", err)
	}

	s := e.surfaces[to]
	if reuse {
		if err := s.SetLoop(true); err != nil {
			e.logger.Warn("Failed to set loop on idle surface", zap.Error(err))
		}
		if err := s.Rewind(); err != nil {
			e.logger.Warn("Failed to rewind idle surface", zap.Error(err))
		}
	}

	e.mu.Lock()
	e.current = media
	e.mu.Unlock()

	if err := e.start(ctx, s); err != nil {
		return err
	}

	e.logger.Info("Video playback started",
		zap.String("media", string(media)),
		zap.String("surface", s.Name()),
		zap.Bool("reused", reuse))
	return nil
}

// start plays s with sound, falling back to a muted start that is unmuted
// right after when the platform refuses audible playback
func (e *Engine) start(ctx context.Context, s domain.Surface) error {
	err := s.Play(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrPlaybackRejected) {
		return fmt.Errorf("failed to start %s: %w", s.Name(), err)
	}

	e.logger.Debug("Audible playback rejected, retrying muted", zap.String("surface", s.Name()))
	if err := s.SetMuted(true); err != nil {
		return fmt.Errorf("failed to mute %s: %w", s.Name(), err)
	}
	if err := s.Play(ctx); err != nil {
		_ = s.SetMuted(false)
		return fmt.Errorf("failed to start %s muted: %w", s.Name(), err)
	}
	return s.SetMuted(false)
}

// Stop pauses both surfaces, interrupts a running fade and releases
// every source except idle
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.fadeCancel
	e.prepared = false
	e.current = ""
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	for _, s := range e.surfaces {
		if err := s.Pause(); err != nil {
			e.logger.Debug("Pause failed", zap.String("surface", s.Name()), zap.Error(err))
		}
		e.releaseIfNotIdle(s)
	}
	e.logger.Info("Video stopped")
}

// Show raises the active surface
func (e *Engine) Show() {
	e.mu.Lock()
	s := e.surfaces[e.active]
	e.mu.Unlock()
	if err := s.SetVisible(true); err != nil {
		e.logger.Warn("Failed to show video surface", zap.Error(err))
	}
}

// Hide lowers both surfaces; the active flag is kept
func (e *Engine) Hide() {
	for _, s := range e.surfaces {
		if err := s.SetVisible(false); err != nil {
			e.logger.Warn("Failed to hide video surface", zap.String("surface", s.Name()), zap.Error(err))
		}
	}
}

// SetVolume applies volume to both surfaces immediately
func (e *Engine) SetVolume(volume float64) {
	e.mu.Lock()
	e.volume = volume
	e.mu.Unlock()
	for _, s := range e.surfaces {
		if err := s.SetVolume(volume); err != nil {
			e.logger.Warn("Failed to set volume", zap.String("surface", s.Name()), zap.Error(err))
		}
	}
}

// SetFadeDuration is picked up by the next crossfade
func (e *Engine) SetFadeDuration(d time.Duration) {
	e.mu.Lock()
	e.fade = d
	e.mu.Unlock()
}

// Preload warms the cache for ids
func (e *Engine) Preload(ctx context.Context, ids []domain.MediaID) {
	if e.cache == nil {
		return
	}
	e.cache.Request(ctx, ids)
}

// Cached reports whether id was preloaded
func (e *Engine) Cached(id domain.MediaID) bool {
	return e.cache != nil && e.cache.Cached(id)
}

// Events emits ended and error notifications of the active surface
func (e *Engine) Events() <-chan domain.EngineEvent {
	return e.events
}

// Active returns the index of the active surface
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Transitioning reports whether a crossfade is running
func (e *Engine) Transitioning() bool {
	return e.transitioning.Load()
}

// Close stops event forwarding and closes both surfaces
func (e *Engine) Close() error {
	close(e.done)
	e.wg.Wait()

	var err error
	for _, s := range e.surfaces {
		err = multierr.Append(err, s.Close())
	}
	return err
}

// watch forwards events of surface i while it is the active one
func (e *Engine) watch(i int) {
	defer e.wg.Done()
	events := e.surfaces[i].Events()

	for {
		select {
		case <-e.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}

			e.mu.Lock()
			active := i == e.active
			media := e.current
			e.mu.Unlock()

			if !active || e.transitioning.Load() {
				e.logger.Debug("Ignoring event from inactive surface",
					zap.String("surface", e.surfaces[i].Name()),
					zap.Bool("active", active),
					zap.Bool("transitioning", e.transitioning.Load()))
				continue
			}

			switch ev.Kind {
			case domain.SurfaceEnded:
				e.emit(domain.EngineEvent{Kind: domain.EventEnded, Media: media})
			case domain.SurfaceError:
				e.emit(domain.EngineEvent{Kind: domain.EventError, Media: media, Err: ev.Err})
			}
		}
	}
}

func (e *Engine) emit(ev domain.EngineEvent) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

func (e *Engine) releaseIfNotIdle(s domain.Surface) {
	if src := s.Source(); src != "" && !resolver.IsIdleSource(src) {
		if err := s.Clear(); err != nil {
			e.logger.Warn("Failed to release surface", zap.String("surface", s.Name()), zap.Error(err))
		}
	}
}

func (e *Engine) setActive(i int) {
	e.mu.Lock()
	e.active = i
	e.mu.Unlock()
}

func isRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}
