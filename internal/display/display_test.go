package display

import (
	"image"
	"testing"

	"github.com/genricoloni/wozplayer/internal/domain"
)

func TestPickDisplay(t *testing.T) {
	tests := []struct {
		name   string
		bounds []image.Rectangle
		want   domain.Display
		wantOK bool
	}{
		{
			name:   "No displays",
			bounds: nil,
			want:   fallback,
			wantOK: false,
		},
		{
			name:   "Primary only",
			bounds: []image.Rectangle{image.Rect(0, 0, 2560, 1440)},
			want:   domain.Display{ScreenResolution: domain.ScreenResolution{Width: 2560, Height: 1440}},
			wantOK: true,
		},
		{
			name: "External to the right",
			bounds: []image.Rectangle{
				image.Rect(0, 0, 1920, 1080),
				image.Rect(1920, 0, 3200, 720),
			},
			want:   domain.Display{Index: 1, X: 1920, ScreenResolution: domain.ScreenResolution{Width: 1280, Height: 720}},
			wantOK: true,
		},
		{
			name: "Empty bounds skipped",
			bounds: []image.Rectangle{
				{},
				image.Rect(0, 0, 1280, 800),
			},
			want:   domain.Display{Index: 1, ScreenResolution: domain.ScreenResolution{Width: 1280, Height: 800}},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickDisplay(tt.bounds)
			if ok != tt.wantOK {
				t.Errorf("ok: want %v, got %v", tt.wantOK, ok)
			}
			if got != tt.want {
				t.Errorf("want %+v, got %+v", tt.want, got)
			}
		})
	}
}
