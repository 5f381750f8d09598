package domain

import "time"

// MediaID identifies one of the fixed media cues of the study
type MediaID string

const (
	// MediaIdle is the steady-state cue looped between operator cues
	MediaIdle MediaID = "idle"
	// MediaWelcome greets the participant
	MediaWelcome MediaID = "welcome"
	// MediaClosing ends the session
	MediaClosing MediaID = "closing"
	MediaQ1      MediaID = "q1"
	MediaQ2      MediaID = "q2"
	MediaQ3      MediaID = "q3"
	MediaQ4      MediaID = "q4"
	MediaQ5      MediaID = "q5"
	MediaQ6      MediaID = "q6"
)

// Vocabulary lists every known media cue
var Vocabulary = []MediaID{
	MediaIdle, MediaWelcome, MediaClosing,
	MediaQ1, MediaQ2, MediaQ3, MediaQ4, MediaQ5, MediaQ6,
}

// Known reports whether the id belongs to the fixed vocabulary.
// Unknown ids are still accepted by the engines; they fail at load time.
func (id MediaID) Known() bool {
	for _, v := range Vocabulary {
		if v == id {
			return true
		}
	}
	return false
}

// Condition is the experimental arm of the study
type Condition string

const (
	// ConditionHuman plays video cues
	ConditionHuman Condition = "human"
	// ConditionAbstract plays audio cues with a reactive visualization
	ConditionAbstract Condition = "abstract"
)

// Valid reports whether c is one of the two experimental conditions
func (c Condition) Valid() bool {
	return c == ConditionHuman || c == ConditionAbstract
}

// Kind returns the media kind played under this condition
func (c Condition) Kind() MediaKind {
	if c == ConditionAbstract {
		return KindAudio
	}
	return KindVideo
}

// MediaKind selects the asset family of a cue
type MediaKind string

const (
	KindVideo MediaKind = "video"
	KindAudio MediaKind = "audio"
)

// MediaCommand is a single play request coming from the operator
type MediaCommand struct {
	Media MediaID `json:"mediaId"`
	Loop  bool    `json:"loop"`
}

// Phase is the coarse state of the playback orchestrator
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseLoading         Phase = "loading"
	PhaseTransitioning   Phase = "transitioning"
	PhasePlaying         Phase = "playing"
	PhaseErrorRecovering Phase = "error_recovering"
)

// PlaybackState is the orchestrator-owned playback state.
// CurrentMedia is empty when nothing is selected.
type PlaybackState struct {
	Condition       Condition     `json:"condition"`
	Phase           Phase         `json:"phase"`
	CurrentMedia    MediaID       `json:"currentMedia,omitempty"`
	IsTransitioning bool          `json:"isTransitioning"`
	IsIdleLooping   bool          `json:"isIdleLooping"`
	ReturningToIdle bool          `json:"returningToIdle"`
	Pending         *MediaCommand `json:"pendingCommand,omitempty"`
	Failed          bool          `json:"failed"`
	Volume          float64       `json:"volume"`
	FadeMillis      int64         `json:"fadeMillis"`
}

// LoadRequest asks an engine to prepare a cue
type LoadRequest struct {
	Media MediaID
	Loop  bool
	// ReturningToIdle is set when idle is re-entered after a non-idle cue ended
	ReturningToIdle bool
}

// EngineEventKind distinguishes engine notifications
type EngineEventKind int

const (
	// EventEnded fires when the visible media reached its natural end
	EventEnded EngineEventKind = iota
	// EventError fires on a runtime playback error of the visible media
	EventError
)

// EngineEvent is emitted asynchronously by a media engine
type EngineEvent struct {
	Kind  EngineEventKind
	Media MediaID
	Err   error
}

// SurfaceEventKind distinguishes surface notifications
type SurfaceEventKind int

const (
	// SurfaceEnded fires when a non-looping source reaches its end
	SurfaceEnded SurfaceEventKind = iota
	// SurfaceError fires when the source fails outside of a load
	SurfaceError
)

// SurfaceEvent is emitted by a video surface
type SurfaceEvent struct {
	Kind SurfaceEventKind
	Err  error
}

// ScreenResolution holds the display dimensions
type ScreenResolution struct {
	Width  int
	Height int
}

// Display describes the screen the participant view is rendered on
type Display struct {
	Index int
	X     int
	Y     int
	ScreenResolution
}

const (
	// MinFadeSpeed and MaxFadeSpeed bound operator fade requests
	MinFadeSpeed = 100 * time.Millisecond
	MaxFadeSpeed = 2000 * time.Millisecond
)

// ClampFadeSpeed bounds an operator fade request to [MinFadeSpeed, MaxFadeSpeed]
func ClampFadeSpeed(d time.Duration) time.Duration {
	return min(MaxFadeSpeed, max(MinFadeSpeed, d))
}

// ClampVolume bounds a volume to [0, 1]
func ClampVolume(v float64) float64 {
	return min(1, max(0, v))
}
