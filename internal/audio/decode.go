package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/genricoloni/wozplayer/internal/domain"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"go.uber.org/zap"
)

// Clip is a fully decoded audio cue
type Clip struct {
	Media  domain.MediaID
	Path   string
	Buffer *beep.Buffer
}

// Duration returns the playing time of the clip
func (c *Clip) Duration() time.Duration {
	return c.Buffer.Format().SampleRate.D(c.Buffer.Len())
}

// Decoder reads WAV cues into memory
type Decoder struct {
	logger   *zap.Logger
	resolver domain.Resolver
	client   *http.Client
}

// NewDecoder creates a decoder resolving ids through res
func NewDecoder(logger *zap.Logger, res domain.Resolver) *Decoder {
	return &Decoder{
		logger:   logger,
		resolver: res,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Decode resolves and decodes id. It satisfies preload.LoadFunc.
// Decoding is not interruptible; on cancellation the result is dropped.
func (d *Decoder) Decode(ctx context.Context, id domain.MediaID) (*Clip, error) {
	path := d.resolver.Resolve(id, domain.KindAudio)

	type result struct {
		clip *Clip
		err  error
	}
	done := make(chan result, 1)

	go func() {
		clip, err := d.decode(ctx, id, path)
		done <- result{clip, err}
	}()

	select {
	case r := <-done:
		return r.clip, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *Decoder) decode(ctx context.Context, id domain.MediaID, path string) (*Clip, error) {
	r, err := d.open(ctx, id, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	streamer, format, err := wav.Decode(r)
	if err != nil {
		return nil, &domain.LoadError{Media: id, Path: path, Reason: domain.FailureDecode, Err: err}
	}
	defer streamer.Close()

	buffer := beep.NewBuffer(format)
	buffer.Append(streamer)
	if err := streamer.Err(); err != nil {
		return nil, &domain.LoadError{Media: id, Path: path, Reason: domain.FailureDecode, Err: err}
	}

	clip := &Clip{Media: id, Path: path, Buffer: buffer}
	d.logger.Debug("Audio decoded",
		zap.String("media", string(id)),
		zap.Int("sampleRate", int(format.SampleRate)),
		zap.Duration("duration", clip.Duration()))
	return clip, nil
}

func (d *Decoder) open(ctx context.Context, id domain.MediaID, path string) (io.ReadCloser, error) {
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		f, err := os.Open(path)
		if err != nil {
			return nil, &domain.LoadError{Media: id, Path: path, Reason: domain.FailureNotFound, Err: err}
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &domain.LoadError{Media: id, Path: path, Reason: domain.FailureNetwork, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &domain.LoadError{
			Media:  id,
			Path:   path,
			Reason: domain.FailureNotFound,
			Err:    fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}
	return resp.Body, nil
}
