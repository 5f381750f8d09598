package overlay

import (
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// clearAfter replaces the banner text with an empty one that expires at once
const clearAfter = time.Millisecond

// TextSurface is an output able to overlay text on the participant display
type TextSurface interface {
	ShowText(text string, d time.Duration) error
}

// State is the banner as seen by the status API
type State struct {
	Message    string `json:"message,omitempty"`
	Persistent bool   `json:"persistent"`
	Visible    bool   `json:"visible"`
}

// Banner shows error messages on every participant surface.
// A persistent banner stays until Hide; a transient one is hidden by the
// orchestrator once its retry fires.
type Banner struct {
	logger   *zap.Logger
	mu       sync.Mutex
	surfaces []TextSurface
	state    State
}

// New creates a banner drawing on the given surfaces
func New(logger *zap.Logger, surfaces ...TextSurface) *Banner {
	return &Banner{logger: logger, surfaces: surfaces}
}

// Show displays message until Hide is called
func (b *Banner) Show(message string, persistent bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = State{Message: message, Persistent: persistent, Visible: true}
	b.logger.Info("Showing error banner", zap.String("message", message), zap.Bool("persistent", persistent))
	b.draw(message, 0)
}

// Hide removes the banner. Hiding an invisible banner is a no-op.
func (b *Banner) Hide() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.state.Visible {
		return
	}
	b.state = State{}
	b.logger.Debug("Hiding error banner")
	b.draw("", clearAfter)
}

// State returns the current banner
func (b *Banner) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Banner) draw(text string, d time.Duration) {
	var err error
	for _, s := range b.surfaces {
		err = multierr.Append(err, s.ShowText(text, d))
	}
	if err != nil {
		b.logger.Warn("Failed to draw error banner", zap.Error(err))
	}
}
