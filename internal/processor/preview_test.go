package processor

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/genricoloni/wozplayer/internal/config"
	"go.uber.org/zap"
)

func newTestProcessor(t *testing.T) (*PreviewProcessor, string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("WOZ_OUTPUT_DIR", dir)
	return NewPreviewProcessor(zap.NewNop(), config.NewAppConfig(zap.NewNop())), dir
}

func TestPreviewProcessor_Process(t *testing.T) {
	tests := []struct {
		name          string
		frame         image.Image
		expectedError string
		expectedSize  image.Point
	}{
		{
			name:         "Success - Canvas 960x540",
			frame:        createTestFrame(960, 540, color.RGBA{R: 90, G: 103, B: 216, A: 255}),
			expectedSize: image.Pt(480, 270),
		},
		{
			name:         "Success - Full HD",
			frame:        createTestFrame(1920, 1080, color.RGBA{A: 255}),
			expectedSize: image.Pt(480, 270),
		},
		{
			name:         "Edge Case - Smaller than preview",
			frame:        createTestFrame(240, 240, color.RGBA{R: 118, G: 75, B: 162, A: 255}),
			expectedSize: image.Pt(480, 480),
		},
		{
			name:          "Error - Empty frame",
			frame:         image.NewRGBA(image.Rect(0, 0, 0, 0)),
			expectedError: "invalid frame dimensions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestProcessor(t)
			result, err := p.Process(tt.frame)

			if tt.expectedError != "" {
				if err == nil {
					t.Fatalf("expected error containing '%s', got nil", tt.expectedError)
				}
				if !strings.Contains(err.Error(), tt.expectedError) {
					t.Errorf("expected error '%s' to contain '%s'", err.Error(), tt.expectedError)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			img, _, err := image.Decode(bytes.NewReader(result))
			if err != nil {
				t.Fatalf("result is not a valid image: %v", err)
			}
			if got := img.Bounds().Size(); got != tt.expectedSize {
				t.Errorf("expected %v, got %v", tt.expectedSize, got)
			}
		})
	}
}

// TestPreviewProcessor_WriteFrameRateLimit verifies that frames closer than the
// interval are skipped.
func TestPreviewProcessor_WriteFrameRateLimit(t *testing.T) {
	p, dir := newTestProcessor(t)

	clock := time.Unix(1000, 0)
	p.now = func() time.Time { return clock }
	path := filepath.Join(dir, previewFilename)

	if err := p.WriteFrame(createTestFrame(64, 36, color.RGBA{A: 255})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected preview written: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	clock = clock.Add(200 * time.Millisecond)
	if err := p.WriteFrame(createTestFrame(64, 36, color.RGBA{A: 255})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected frame inside the interval to be skipped")
	}

	clock = clock.Add(time.Second)
	if err := p.WriteFrame(createTestFrame(64, 36, color.RGBA{A: 255})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected preview rewritten: %v", err)
	}
	if first.Size() == 0 || second.Size() == 0 {
		t.Error("expected non-empty previews")
	}
}

// createTestFrame generates a solid RGBA frame for testing
func createTestFrame(width, height int, col color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, col)
		}
	}
	return img
}
