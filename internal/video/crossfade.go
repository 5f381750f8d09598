package video

import (
	"context"
	"time"

	"github.com/genricoloni/wozplayer/internal/domain"
	"go.uber.org/zap"
)

// crossfade moves the active role from surface from to surface to.
// A zero fade is an instant cut. Stop cancels a running fade, which is then
// finalized like a cut and reported as interrupted.
func (e *Engine) crossfade(ctx context.Context, from, to int) error {
	if from == to {
		return nil
	}

	e.mu.Lock()
	fade := e.fade
	e.mu.Unlock()

	a, b := e.surfaces[from], e.surfaces[to]

	if fade <= 0 {
		e.transitioning.Store(true)
		if err := b.SetVisible(true); err != nil {
			e.logger.Warn("Failed to show incoming surface", zap.Error(err))
		}
		if err := a.SetVisible(false); err != nil {
			e.logger.Warn("Failed to hide outgoing surface", zap.Error(err))
		}
		e.finalize(from, to)
		e.transitioning.Store(false)
		return nil
	}

	fctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.fadeCancel = cancel
	e.mu.Unlock()

	e.transitioning.Store(true)
	defer func() {
		cancel()
		e.mu.Lock()
		e.fadeCancel = nil
		e.mu.Unlock()
		e.transitioning.Store(false)
	}()

	if err := a.Pause(); err != nil {
		e.logger.Debug("Pause of outgoing surface failed", zap.Error(err))
	}
	e.setOpacity(b, 0)
	if err := b.SetVisible(true); err != nil {
		e.logger.Warn("Failed to show incoming surface", zap.Error(err))
	}

	e.logger.Debug("Crossfade started",
		zap.String("from", a.Name()),
		zap.String("to", b.Name()),
		zap.Duration("duration", fade))

	ticker := time.NewTicker(e.frameTick)
	defer ticker.Stop()

	start := time.Now()
	var interrupted error

fading:
	for {
		select {
		case <-fctx.Done():
			interrupted = fctx.Err()
			break fading
		case now := <-ticker.C:
			progress := float64(now.Sub(start)) / float64(fade)
			if progress >= 1 {
				break fading
			}
			e.setOpacity(b, progress)
			e.setOpacity(a, 1-progress)
		}
	}

	e.setOpacity(b, 1)
	if err := a.SetVisible(false); err != nil {
		e.logger.Warn("Failed to hide outgoing surface", zap.Error(err))
	}
	e.setOpacity(a, 1)
	e.finalize(from, to)

	if interrupted != nil {
		e.logger.Debug("Crossfade interrupted", zap.Error(interrupted))
	}
	return interrupted
}

func (e *Engine) setOpacity(s domain.Surface, opacity float64) {
	if err := s.SetOpacity(opacity); err != nil {
		e.logger.Debug("Opacity update failed",
			zap.String("surface", s.Name()),
			zap.Float64("opacity", opacity),
			zap.Error(err))
	}
}

// finalize rewinds the outgoing surface, releases it unless it holds idle
// and hands the active role over
func (e *Engine) finalize(from, to int) {
	a := e.surfaces[from]
	if err := a.Pause(); err != nil {
		e.logger.Debug("Pause of outgoing surface failed", zap.Error(err))
	}
	if err := a.Rewind(); err != nil {
		e.logger.Debug("Rewind of outgoing surface failed", zap.Error(err))
	}
	e.releaseIfNotIdle(a)
	e.setActive(to)
}
