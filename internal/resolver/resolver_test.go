package resolver

import (
	"testing"

	"github.com/genricoloni/wozplayer/internal/domain"
)

func TestPathResolver_Resolve(t *testing.T) {
	r := New("/srv/assets/", "WAV")

	tests := []struct {
		name string
		id   domain.MediaID
		kind domain.MediaKind
		want string
	}{
		{name: "Idle video", id: domain.MediaIdle, kind: domain.KindVideo, want: "/srv/assets/videos/idle.mp4"},
		{name: "Question audio", id: domain.MediaQ3, kind: domain.KindAudio, want: "/srv/assets/audio/q3.WAV"},
		{name: "Unknown id still resolves", id: "q9", kind: domain.KindVideo, want: "/srv/assets/videos/q9.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Resolve(tt.id, tt.kind); got != tt.want {
				t.Errorf("want %s, got %s", tt.want, got)
			}
		})
	}
}

// TestPathResolver_Deterministic checks that call order and prior calls never
// change the result for any vocabulary/kind pair.
func TestPathResolver_Deterministic(t *testing.T) {
	r := New("assets", ".wav")
	first := map[string]string{}
	kinds := []domain.MediaKind{domain.KindVideo, domain.KindAudio}

	for _, k := range kinds {
		for _, id := range domain.Vocabulary {
			first[string(k)+"/"+string(id)] = r.Resolve(id, k)
		}
	}
	for i := len(domain.Vocabulary) - 1; i >= 0; i-- {
		for _, k := range kinds {
			id := domain.Vocabulary[i]
			if got := r.Resolve(id, k); got != first[string(k)+"/"+string(id)] {
				t.Errorf("%s/%s changed between calls: %s vs %s", k, id, first[string(k)+"/"+string(id)], got)
			}
		}
	}
	if got := r.Resolve(domain.MediaWelcome, domain.KindAudio); got != "assets/audio/welcome.wav" {
		t.Errorf("leading dot should be stripped from extension, got %s", got)
	}
}

func TestIsIdleSource(t *testing.T) {
	tests := map[string]bool{
		"":                             false,
		"/srv/assets/videos/idle.mp4":  true,
		"/srv/assets/videos/q1.mp4":    false,
		"/srv/idle/videos/welcome.mp4": false,
	}
	for src, want := range tests {
		if got := IsIdleSource(src); got != want {
			t.Errorf("IsIdleSource(%q): want %v, got %v", src, want, got)
		}
	}
}
