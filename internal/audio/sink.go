package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

const (
	// OutputSampleRate is the rate the output device is opened with
	OutputSampleRate = beep.SampleRate(44100)
	speakerBuffer    = 100 * time.Millisecond
)

// Sink is the audio output device
type Sink interface {
	// Init opens the device; later calls are no-ops
	Init() error
	SampleRate() beep.SampleRate
	Play(s beep.Streamer)
	Clear()

	// Lock guards streamer fields mutated while they are playing
	Lock()
	Unlock()
}

// SpeakerSink plays through the system speaker
type SpeakerSink struct {
	mu          sync.Mutex
	initialized bool
}

// NewSpeakerSink creates a speaker sink; the device opens on first Init
func NewSpeakerSink() *SpeakerSink {
	return &SpeakerSink{}
}

func (s *SpeakerSink) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	if err := speaker.Init(OutputSampleRate, OutputSampleRate.N(speakerBuffer)); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}
	s.initialized = true
	return nil
}

func (s *SpeakerSink) SampleRate() beep.SampleRate {
	return OutputSampleRate
}

func (s *SpeakerSink) Play(st beep.Streamer) {
	speaker.Play(st)
}

func (s *SpeakerSink) Clear() {
	if !s.ready() {
		return
	}
	speaker.Clear()
}

func (s *SpeakerSink) Lock() {
	if s.ready() {
		speaker.Lock()
	}
}

func (s *SpeakerSink) Unlock() {
	if s.ready() {
		speaker.Unlock()
	}
}

func (s *SpeakerSink) ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}
