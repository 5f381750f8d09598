package display

import (
	"image"

	"github.com/genricoloni/wozplayer/internal/domain"
	"github.com/kbinani/screenshot"
	"go.uber.org/zap"
)

var fallback = domain.Display{ScreenResolution: domain.ScreenResolution{Width: 1920, Height: 1080}}

// NewDisplay detects the screen the participant view should cover at startup.
// A secondary display is preferred so the operator keeps the primary one.
func NewDisplay(logger *zap.Logger) domain.Display {
	n := screenshot.NumActiveDisplays()
	bounds := make([]image.Rectangle, 0, max(n, 0))
	for i := 0; i < n; i++ {
		bounds = append(bounds, screenshot.GetDisplayBounds(i))
	}

	d, ok := pickDisplay(bounds)
	if !ok {
		logger.Warn("No active displays detected, falling back to 1920x1080")
		return d
	}

	logger.Info("Participant display selected",
		zap.Int("index", d.Index),
		zap.Int("displays", n),
		zap.Int("x", d.X),
		zap.Int("y", d.Y),
		zap.Int("width", d.Width),
		zap.Int("height", d.Height))
	return d
}

// pickDisplay returns the first display not anchored at the origin, else the
// primary one. ok is false when no usable display exists.
func pickDisplay(bounds []image.Rectangle) (domain.Display, bool) {
	chosen := -1
	for i, b := range bounds {
		if b.Empty() {
			continue
		}
		if chosen < 0 {
			chosen = i
		}
		if b.Min != (image.Point{}) {
			chosen = i
			break
		}
	}
	if chosen < 0 {
		return fallback, false
	}

	b := bounds[chosen]
	return domain.Display{
		Index: chosen,
		X:     b.Min.X,
		Y:     b.Min.Y,
		ScreenResolution: domain.ScreenResolution{
			Width:  b.Dx(),
			Height: b.Dy(),
		},
	}, true
}
