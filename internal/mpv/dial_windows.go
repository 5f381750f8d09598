//go:build windows
// +build windows

package mpv

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// dial is not implemented: mpv exposes named pipes on Windows
func dial(ctx context.Context, logger *zap.Logger, socketPath string) (*Client, error) {
	return nil, fmt.Errorf("mpv IPC over named pipes not yet implemented for Windows")
}
