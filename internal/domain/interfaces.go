package domain

import (
	"context"
	"image"
	"time"
)

// Surface is one on-screen video output.
// Implementations must be safe for use from multiple goroutines.
type Surface interface {
	// Name identifies the surface in logs
	Name() string

	// Load replaces the source and blocks until it is ready to play through,
	// the load fails, or ctx is done. The surface stays paused.
	Load(ctx context.Context, path string) error

	// Source returns the currently bound path, empty when cleared
	Source() string

	// Play starts playback. It returns ErrPlaybackRejected when audible
	// playback is refused by the platform.
	Play(ctx context.Context) error

	// Pause halts playback without moving the position
	Pause() error

	// Rewind moves the position back to zero
	Rewind() error

	// Clear unbinds the source to release decoder resources
	Clear() error

	SetLoop(loop bool) error
	SetMuted(muted bool) error
	SetVolume(volume float64) error

	// SetOpacity sets the visual opacity in [0, 1]
	SetOpacity(opacity float64) error

	// SetVisible brings the surface to the front or sends it back
	SetVisible(visible bool) error

	// ShowText overlays a message for the given duration (0 keeps it until replaced)
	ShowText(text string, d time.Duration) error

	// Events emits ended and runtime error notifications
	Events() <-chan SurfaceEvent

	Close() error
}

// MediaEngine plays the cues of one media kind
type MediaEngine interface {
	Kind() MediaKind

	// Load prepares a cue without making it visible
	Load(ctx context.Context, req LoadRequest) error

	// Play makes the prepared cue visible and audible
	Play(ctx context.Context) error

	// Stop halts playback immediately
	Stop()

	// Show and Hide swap the condition view on the participant display
	Show()
	Hide()

	SetVolume(volume float64)
	SetFadeDuration(d time.Duration)

	// Preload warms the engine cache; failures are only logged
	Preload(ctx context.Context, ids []MediaID)

	// Cached reports whether a cue is in the preload cache
	Cached(id MediaID) bool

	// Events emits natural end and runtime error notifications
	Events() <-chan EngineEvent

	Close() error
}

// Notifier receives events leaving the participant core
type Notifier interface {
	MediaEnded(id MediaID)
	MediaError(message string)
}

// Banner shows error messages on the participant display
type Banner interface {
	Show(message string, persistent bool)
	Hide()
}

// Controller is the command stream accepted by the participant core
type Controller interface {
	PlayMedia(cmd MediaCommand)
	StopMedia()
	PreloadMedia(ids []MediaID)
	ChangeCondition(c Condition)
	SetVolume(volume float64)
	SetFadeSpeed(d time.Duration)
	Snapshot() PlaybackState
}

// Resolver maps a cue to its asset path
type Resolver interface {
	Resolve(id MediaID, kind MediaKind) string
	AssetsRoot() string
}

// FrameSink consumes rendered visualizer frames
type FrameSink interface {
	WriteFrame(frame *image.RGBA) error
}

// Config defines the interface for application configuration
type Config interface {
	GetAssetsRoot() string
	GetAudioExtension() string
	GetCondition() Condition
	GetFadeDuration() time.Duration
	GetVolume() float64
	GetHTTPAddr() string
	GetMpvBinary() string
	GetRuntimeDir() string
	GetOutputDir() string
	GetFrameRate() int
	GetCanvasSize() ScreenResolution
	DBusEnabled() bool
}

// Metrics records orchestrator activity
type Metrics interface {
	CommandReceived(command string)
	PhaseChanged(phase Phase)
	RetryScheduled(delay time.Duration)
}
