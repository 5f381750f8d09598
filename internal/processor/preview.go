package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/genricoloni/wozplayer/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultPreviewWidth = 480
	defaultInterval     = time.Second
	previewFilename     = "visualizer_preview.jpg"
)

// PreviewConfig holds configuration for preview generation
type PreviewConfig struct {
	Width    int           // Thumbnail width, height follows the aspect ratio
	Interval time.Duration // Minimum time between two written previews
}

// PreviewProcessor downscales visualizer frames into a JPEG the operator can
// watch. It is a frame sink: frames arriving faster than the interval are
// skipped.
type PreviewProcessor struct {
	logger *zap.Logger
	config PreviewConfig
	appCfg domain.Config // Application configuration for output dir
	now    func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewPreviewProcessor creates a preview sink writing to the configured output dir
func NewPreviewProcessor(logger *zap.Logger, appCfg domain.Config) *PreviewProcessor {
	return &PreviewProcessor{
		logger: logger,
		appCfg: appCfg,
		now:    time.Now,
		config: PreviewConfig{
			Width:    defaultPreviewWidth,
			Interval: defaultInterval,
		},
	}
}

// WriteFrame satisfies domain.FrameSink
func (p *PreviewProcessor) WriteFrame(frame *image.RGBA) error {
	p.mu.Lock()
	now := p.now()
	if !p.last.IsZero() && now.Sub(p.last) < p.config.Interval {
		p.mu.Unlock()
		return nil
	}
	p.last = now
	p.mu.Unlock()

	_, err := p.Generate(frame)
	return err
}

// Process turns a frame into an encoded thumbnail
func (p *PreviewProcessor) Process(frame image.Image) ([]byte, error) {
	// Validate image dimensions to prevent division by zero
	bounds := frame.Bounds()
	if bounds.Dy() == 0 || bounds.Dx() == 0 {
		return nil, fmt.Errorf("invalid frame dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	thumb := imaging.Resize(frame, p.config.Width, 0, imaging.Lanczos)

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, thumb, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

// Generate writes a thumbnail of frame to the output dir and returns its path
func (p *PreviewProcessor) Generate(frame image.Image) (string, error) {
	data, err := p.Process(frame)
	if err != nil {
		return "", err
	}

	outputDir := p.appCfg.GetOutputDir()
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write then rename so readers never see a partial JPEG
	outputPath := filepath.Join(outputDir, previewFilename)
	tmp := outputPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write preview file: %w", err)
	}
	if err := os.Rename(tmp, outputPath); err != nil {
		return "", fmt.Errorf("failed to publish preview file: %w", err)
	}

	p.logger.Debug("Preview written", zap.String("path", outputPath), zap.Int("size", len(data)))
	return outputPath, nil
}
