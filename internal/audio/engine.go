package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/genricoloni/wozplayer/internal/domain"
	"github.com/genricoloni/wozplayer/internal/preload"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"go.uber.org/zap"
)

const (
	defaultLoadTimeout = 10 * time.Second
	resampleQuality    = 4
)

var errNothingPrepared = errors.New("no audio prepared")

// Engine plays one audio cue at a time and feeds the analyzer.
// Cues do not crossfade: a new Play replaces whatever is sounding.
type Engine struct {
	logger      *zap.Logger
	decoder     *Decoder
	cache       *preload.Cache[*Clip]
	sink        Sink
	loadTimeout time.Duration

	mu       sync.Mutex
	prepared *Clip
	loop     bool
	current  domain.MediaID
	gen      uint64
	gain     float64
	volume   *effects.Volume
	analyzer *Analyzer
	playing  bool

	visible atomic.Bool
	events  chan domain.EngineEvent
	done    chan struct{}
}

// NewEngine creates an audio engine. The output sink and the analyzer stay
// closed until the first Play.
func NewEngine(
	logger *zap.Logger,
	decoder *Decoder,
	cache *preload.Cache[*Clip],
	sink Sink,
	volume float64,
) *Engine {
	return &Engine{
		logger:      logger,
		decoder:     decoder,
		cache:       cache,
		sink:        sink,
		loadTimeout: defaultLoadTimeout,
		gain:        volume,
		events:      make(chan domain.EngineEvent, 8),
		done:        make(chan struct{}),
	}
}

// Kind returns the media kind served by this engine
func (e *Engine) Kind() domain.MediaKind {
	return domain.KindAudio
}

// Load decodes the cue, or takes it from the preload cache
func (e *Engine) Load(ctx context.Context, req domain.LoadRequest) error {
	clip, ok := e.cachedClip(req.Media)
	if !ok {
		loadCtx, cancel := context.WithTimeout(ctx, e.loadTimeout)
		defer cancel()

		var err error
		clip, err = e.decoder.Decode(loadCtx, req.Media)
		if err != nil {
			if errors.Is(loadCtx.Err(), context.DeadlineExceeded) {
				return &domain.LoadTimeoutError{Media: req.Media, Path: e.decoder.resolver.Resolve(req.Media, domain.KindAudio), Timeout: e.loadTimeout}
			}
			return err
		}
	}

	e.mu.Lock()
	e.prepared = clip
	e.loop = req.Loop
	e.mu.Unlock()

	e.logger.Info("Audio ready",
		zap.String("media", string(req.Media)),
		zap.Bool("loop", req.Loop),
		zap.Bool("preloaded", ok))
	return nil
}

// Play starts the prepared cue, opening the output on first use
func (e *Engine) Play(ctx context.Context) error {
	e.mu.Lock()
	clip, loop := e.prepared, e.loop
	if clip == nil {
		e.mu.Unlock()
		return errNothingPrepared
	}
	e.prepared = nil
	e.mu.Unlock()

	if err := e.sink.Init(); err != nil {
		return fmt.Errorf("audio output unavailable: %w", err)
	}
	e.sink.Clear()

	e.mu.Lock()
	if e.analyzer == nil {
		e.analyzer = NewAnalyzer()
		e.logger.Debug("Frequency analyzer created")
	}

	e.gen++
	gen := e.gen

	var src beep.Streamer
	if loop {
		src = beep.Loop(-1, clip.Buffer.Streamer(0, clip.Buffer.Len()))
	} else {
		src = beep.Seq(
			clip.Buffer.Streamer(0, clip.Buffer.Len()),
			// runs on the output goroutine under the sink lock
			beep.Callback(func() { go e.ended(gen) }),
		)
	}

	resampled := beep.Resample(resampleQuality, clip.Buffer.Format().SampleRate, e.sink.SampleRate(), src)
	vol := &effects.Volume{Streamer: resampled, Base: 2}
	applyGain(vol, e.gain)
	tap := NewTap(vol, FFTSize)

	e.volume = vol
	e.analyzer.Attach(tap)
	e.current = clip.Media
	e.playing = true
	e.mu.Unlock()

	e.sink.Play(&beep.Ctrl{Streamer: tap})

	e.logger.Info("Audio playback started",
		zap.String("media", string(clip.Media)),
		zap.Bool("loop", loop),
		zap.Duration("duration", clip.Duration()))
	return nil
}

// Stop silences the output immediately
func (e *Engine) Stop() {
	e.mu.Lock()
	e.gen++
	e.prepared = nil
	e.current = ""
	e.playing = false
	e.volume = nil
	if e.analyzer != nil {
		e.analyzer.Detach()
	}
	e.mu.Unlock()

	e.sink.Clear()
	e.logger.Info("Audio stopped")
}

// Show activates the abstract view
func (e *Engine) Show() {
	e.visible.Store(true)
}

// Hide deactivates the abstract view
func (e *Engine) Hide() {
	e.visible.Store(false)
}

// Visible reports whether the abstract view is active
func (e *Engine) Visible() bool {
	return e.visible.Load()
}

// Playing reports whether a cue is sounding
func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// Frequencies fills dst with the current spectrum. It reports false and
// leaves dst untouched while nothing is playing.
func (e *Engine) Frequencies(dst []uint8) bool {
	e.mu.Lock()
	a, playing := e.analyzer, e.playing
	e.mu.Unlock()

	if !playing || a == nil {
		return false
	}
	a.ByteFrequencyData(dst)
	return true
}

// SetVolume applies the gain to the sounding cue and the next ones
func (e *Engine) SetVolume(volume float64) {
	e.mu.Lock()
	e.gain = volume
	vol := e.volume
	e.mu.Unlock()

	if vol == nil {
		return
	}
	e.sink.Lock()
	applyGain(vol, volume)
	e.sink.Unlock()
}

// SetFadeDuration is accepted for symmetry; audio cues cut
func (e *Engine) SetFadeDuration(time.Duration) {}

// Preload decodes ids into the cache
func (e *Engine) Preload(ctx context.Context, ids []domain.MediaID) {
	if e.cache == nil {
		return
	}
	e.cache.Request(ctx, ids)
}

// Cached reports whether id is decoded in the cache
func (e *Engine) Cached(id domain.MediaID) bool {
	return e.cache != nil && e.cache.Cached(id)
}

// Events delivers natural end and runtime error notifications
func (e *Engine) Events() <-chan domain.EngineEvent {
	return e.events
}

// Close stops playback and event delivery
func (e *Engine) Close() error {
	e.Stop()
	close(e.done)
	return nil
}

func (e *Engine) cachedClip(id domain.MediaID) (*Clip, bool) {
	if e.cache == nil {
		return nil, false
	}
	return e.cache.Get(id)
}

// ended handles the natural end of the cue started as generation gen
func (e *Engine) ended(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || !e.playing {
		e.mu.Unlock()
		return
	}
	media := e.current
	e.playing = false
	e.volume = nil
	if e.analyzer != nil {
		e.analyzer.Detach()
	}
	e.mu.Unlock()

	e.logger.Debug("Audio ended", zap.String("media", string(media)))

	select {
	case e.events <- domain.EngineEvent{Kind: domain.EventEnded, Media: media}:
	case <-e.done:
	}
}

// applyGain maps a linear gain in [0, 1] onto the base-2 volume effect
func applyGain(v *effects.Volume, gain float64) {
	if gain <= 0 {
		v.Silent = true
		return
	}
	v.Silent = false
	v.Volume = math.Log2(math.Min(gain, 1))
}
