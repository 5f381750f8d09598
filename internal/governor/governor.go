package governor

import (
	"sync"
	"time"
)

const (
	// DefaultMaxErrors is the number of close errors that exhausts the budget
	DefaultMaxErrors = 3
	// DefaultCooldown is the window in which consecutive errors accumulate
	DefaultCooldown = 5 * time.Second
	// DefaultRetryStep is the backoff added per consecutive error
	DefaultRetryStep = 3 * time.Second
	// DefaultMaxRetryDelay caps the backoff
	DefaultMaxRetryDelay = 10 * time.Second
)

// Config tunes the retry budget
type Config struct {
	MaxErrors     int
	Cooldown      time.Duration
	RetryStep     time.Duration
	MaxRetryDelay time.Duration
}

// DefaultConfig returns the production retry budget
func DefaultConfig() Config {
	return Config{
		MaxErrors:     DefaultMaxErrors,
		Cooldown:      DefaultCooldown,
		RetryStep:     DefaultRetryStep,
		MaxRetryDelay: DefaultMaxRetryDelay,
	}
}

// Governor bounds consecutive error retries
type Governor struct {
	cfg       Config
	mu        sync.Mutex
	count     int
	lastError time.Time
}

// New creates a governor with the given budget
func New(cfg Config) *Governor {
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = DefaultMaxErrors
	}
	return &Governor{cfg: cfg}
}

// Record registers an error observed at now.
// An error inside the cooldown window of the previous one extends the streak,
// otherwise the streak restarts at one.
func (g *Governor) Record(now time.Time) (count int, exhausted bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.lastError.IsZero() && now.Sub(g.lastError) < g.cfg.Cooldown {
		g.count++
	} else {
		g.count = 1
	}
	g.lastError = now
	return g.count, g.count >= g.cfg.MaxErrors
}

// Reset clears the streak after a successful playback start
func (g *Governor) Reset() {
	g.mu.Lock()
	g.count = 0
	g.mu.Unlock()
}

// Count returns the current streak length
func (g *Governor) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

// Exhausted reports whether automatic retries are disabled
func (g *Governor) Exhausted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count >= g.cfg.MaxErrors
}

// RetryDelay returns the backoff before retrying after count consecutive errors
func (g *Governor) RetryDelay(count int) time.Duration {
	d := g.cfg.RetryStep * time.Duration(count)
	if d > g.cfg.MaxRetryDelay {
		return g.cfg.MaxRetryDelay
	}
	return d
}
