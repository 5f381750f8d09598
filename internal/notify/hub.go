package notify

import (
	"sync"

	"github.com/genricoloni/wozplayer/internal/domain"
	"go.uber.org/zap"
)

// Hub fans participant events out to every registered notifier.
// Sinks are called in registration order on the caller's goroutine, so they
// must not block.
type Hub struct {
	logger *zap.Logger
	mu     sync.RWMutex
	sinks  []domain.Notifier
}

// NewHub creates a hub with optional initial sinks
func NewHub(logger *zap.Logger, sinks ...domain.Notifier) *Hub {
	return &Hub{logger: logger, sinks: sinks}
}

// Register adds a sink. Transports register themselves once they are up.
func (h *Hub) Register(sink domain.Notifier) {
	h.mu.Lock()
	h.sinks = append(h.sinks, sink)
	h.mu.Unlock()
}

// MediaEnded reports the natural end of a cue
func (h *Hub) MediaEnded(id domain.MediaID) {
	h.logger.Info("mediaEnded", zap.String("media", string(id)))
	for _, s := range h.snapshot() {
		s.MediaEnded(id)
	}
}

// MediaError reports an error message to the operator
func (h *Hub) MediaError(message string) {
	h.logger.Warn("mediaError", zap.String("message", message))
	for _, s := range h.snapshot() {
		s.MediaError(message)
	}
}

func (h *Hub) snapshot() []domain.Notifier {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]domain.Notifier(nil), h.sinks...)
}
