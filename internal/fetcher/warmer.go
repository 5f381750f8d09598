package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/genricoloni/wozplayer/internal/domain"
	"go.uber.org/zap"
)

// Asset is the handle kept for a warmed media file
type Asset struct {
	Path  string
	Bytes int64
}

// Warmer reads media assets end to end so the first real load hits a warm
// page cache (local files) or a warm proxy (HTTP-hosted assets)
type Warmer struct {
	logger   *zap.Logger
	resolver domain.Resolver
	kind     domain.MediaKind
	client   *http.Client
}

// NewWarmer creates a warmer for assets of the given kind
func NewWarmer(logger *zap.Logger, resolver domain.Resolver, kind domain.MediaKind) *Warmer {
	return &Warmer{
		logger:   logger,
		resolver: resolver,
		kind:     kind,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Warm resolves id and reads the asset. It satisfies preload.LoadFunc.
func (w *Warmer) Warm(ctx context.Context, id domain.MediaID) (Asset, error) {
	path := w.resolver.Resolve(id, w.kind)
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return w.warmRemote(ctx, id, path)
	}
	return w.warmLocal(ctx, id, path)
}

func (w *Warmer) warmLocal(ctx context.Context, id domain.MediaID, path string) (Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Asset{}, &domain.LoadError{Media: id, Path: path, Reason: domain.FailureNotFound, Err: err}
	}
	defer f.Close()

	n, err := io.Copy(io.Discard, &ctxReader{ctx: ctx, r: f})
	if err != nil {
		return Asset{}, &domain.LoadError{Media: id, Path: path, Reason: domain.FailureInterrupted, Err: err}
	}

	w.logger.Debug("Asset warmed", zap.String("path", path), zap.Int64("bytes", n))
	return Asset{Path: path, Bytes: n}, nil
}

func (w *Warmer) warmRemote(ctx context.Context, id domain.MediaID, url string) (Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "wozplayer/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return Asset{}, &domain.LoadError{Media: id, Path: url, Reason: domain.FailureNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Asset{}, &domain.LoadError{
			Media:  id,
			Path:   url,
			Reason: domain.FailureNotFound,
			Err:    fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}

	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "video/") && !strings.HasPrefix(ct, "audio/") && ct != "application/octet-stream" {
		return Asset{}, &domain.LoadError{
			Media:  id,
			Path:   url,
			Reason: domain.FailureNotFound,
			Err:    fmt.Errorf("url is not a media file: %s", ct),
		}
	}

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return Asset{}, &domain.LoadError{Media: id, Path: url, Reason: domain.FailureNetwork, Err: err}
	}

	w.logger.Debug("Remote asset warmed", zap.String("url", url), zap.Int64("bytes", n))
	return Asset{Path: url, Bytes: n}, nil
}

// ctxReader stops a local copy once the context is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
