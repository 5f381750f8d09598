//go:build !windows
// +build !windows

package mpv

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

const dialRetryDelay = 50 * time.Millisecond

// dial connects to the IPC socket, retrying until mpv has created it
func dial(ctx context.Context, logger *zap.Logger, socketPath string) (*Client, error) {
	var d net.Dialer
	var lastErr error

	for {
		conn, err := d.DialContext(ctx, "unix", socketPath)
		if err == nil {
			return NewClient(logger, conn), nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("mpv socket %s not ready: %w", socketPath, lastErr)
		case <-time.After(dialRetryDelay):
		}
	}
}
