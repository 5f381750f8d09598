package visualizer

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/genricoloni/wozplayer/internal/audio"
	"github.com/genricoloni/wozplayer/internal/domain"
	"go.uber.org/zap"
)

const warnInterval = 5 * time.Second

// Source is the audio side feeding the visualizer
type Source interface {
	// Visible reports whether the abstract view is active
	Visible() bool
	// Frequencies fills dst and reports false while nothing plays
	Frequencies(dst []uint8) bool
}

// View is the window the frames are shown in
type View interface {
	SetVisible(visible bool) error
}

// Visualizer runs the per-frame redraw loop of the abstract view.
// While audio plays every tick renders a frame; when it stops the canvas is
// cleared to black and the static idle graphic is shown once.
type Visualizer struct {
	logger   *zap.Logger
	src      Source
	view     View
	renderer *Renderer
	sinks    []domain.FrameSink
	tick     time.Duration

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastWarn time.Time // Rate limiting for sink failure warnings
}

// New creates a visualizer. view may be nil when frames only go to sinks.
func New(
	logger *zap.Logger,
	src Source,
	view View,
	renderer *Renderer,
	frameRate int,
	sinks ...domain.FrameSink,
) *Visualizer {
	if frameRate <= 0 {
		frameRate = 30
	}
	return &Visualizer{
		logger:   logger,
		src:      src,
		view:     view,
		renderer: renderer,
		sinks:    sinks,
		tick:     time.Second / time.Duration(frameRate),
	}
}

// Start launches the redraw loop in a goroutine. It returns immediately.
func (v *Visualizer) Start(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cancel != nil {
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel

	v.wg.Add(1)
	go v.run(loopCtx)

	v.logger.Info("Visualizer started", zap.Duration("frameInterval", v.tick))
	return nil
}

// Stop cancels the loop and waits for it
func (v *Visualizer) Stop() {
	v.mu.Lock()
	cancel := v.cancel
	v.cancel = nil
	v.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	v.wg.Wait()
	v.logger.Info("Visualizer stopped")
}

func (v *Visualizer) run(ctx context.Context) {
	defer v.wg.Done()

	ticker := time.NewTicker(v.tick)
	defer ticker.Stop()

	bins := make([]uint8, audio.BinCount)
	visible := false
	playing := false
	idleShown := false

	for {
		select {
		case <-ctx.Done():
			v.publish(v.renderer.Clear())
			return
		case <-ticker.C:
		}

		if vis := v.src.Visible(); vis != visible {
			visible = vis
			v.setVisible(vis)
		}

		if v.src.Frequencies(bins) {
			playing, idleShown = true, false
			v.publish(v.renderer.Frame(bins))
			continue
		}

		if playing {
			// visualization stopped
			playing = false
			v.publish(v.renderer.Clear())
		}
		if !idleShown {
			idleShown = true
			v.publish(v.renderer.Idle())
		}
	}
}

func (v *Visualizer) setVisible(visible bool) {
	if v.view == nil {
		return
	}
	if err := v.view.SetVisible(visible); err != nil {
		v.logger.Warn("Failed to toggle abstract view", zap.Bool("visible", visible), zap.Error(err))
	}
}

func (v *Visualizer) publish(frame *image.RGBA) {
	for _, sink := range v.sinks {
		if err := sink.WriteFrame(frame); err != nil {
			if time.Since(v.lastWarn) > warnInterval {
				v.logger.Warn("Frame sink failed", zap.Error(err))
				v.lastWarn = time.Now()
			}
		}
	}
}
