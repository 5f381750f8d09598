package mpv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/genricoloni/wozplayer/internal/domain"
	"go.uber.org/zap"
)

const openTimeout = 5 * time.Second

// Launcher spawns the mpv instances backing the participant display
type Launcher struct {
	logger     *zap.Logger
	binary     string
	runtimeDir string
	frameRate  int
	display    domain.Display

	// processes outlive the start context and end with Close
	ctx    context.Context
	cancel context.CancelFunc
}

// NewLauncher creates a launcher targeting the given display
func NewLauncher(logger *zap.Logger, cfg domain.Config, display domain.Display) *Launcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Launcher{
		logger:     logger,
		binary:     cfg.GetMpvBinary(),
		runtimeDir: cfg.GetRuntimeDir(),
		frameRate:  cfg.GetFrameRate(),
		display:    display,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// OpenSurface starts an idle fullscreen mpv window and connects to it
func (l *Launcher) OpenSurface(ctx context.Context, name string) (*Surface, error) {
	socket, err := l.socketPath(name)
	if err != nil {
		return nil, err
	}

	proc, err := startProcess(l.ctx, l.logger, l.binary, l.surfaceArgs(socket), false)
	if err != nil {
		return nil, err
	}

	client, err := l.connect(ctx, socket, proc)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Video surface ready", zap.String("surface", name), zap.String("socket", socket))
	return NewSurface(l.logger, name, client, proc), nil
}

// OpenCanvas starts an mpv window reading raw RGBA frames from stdin
func (l *Launcher) OpenCanvas(ctx context.Context, name string, size domain.ScreenResolution) (*Canvas, error) {
	socket, err := l.socketPath(name)
	if err != nil {
		return nil, err
	}

	proc, err := startProcess(l.ctx, l.logger, l.binary, l.canvasArgs(socket, size), true)
	if err != nil {
		return nil, err
	}

	client, err := l.connect(ctx, socket, proc)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Canvas ready",
		zap.String("canvas", name),
		zap.Int("width", size.Width),
		zap.Int("height", size.Height))
	return NewCanvas(l.logger, name, client, proc.Stdin(), size, proc), nil
}

// Close terminates every process still attached to the launcher
func (l *Launcher) Close() {
	l.cancel()
}

func (l *Launcher) connect(ctx context.Context, socket string, proc *Process) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, openTimeout)
	defer cancel()

	client, err := dial(dialCtx, l.logger, socket)
	if err != nil {
		_ = proc.Stop()
		return nil, err
	}
	return client, nil
}

func (l *Launcher) socketPath(name string) (string, error) {
	if err := os.MkdirAll(l.runtimeDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create runtime dir: %w", err)
	}
	socket := filepath.Join(l.runtimeDir, name+".sock")
	_ = os.Remove(socket)
	return socket, nil
}

func (l *Launcher) windowArgs(socket string) []string {
	return []string{
		"--idle=yes",
		"--force-window=yes",
		"--input-ipc-server=" + socket,
		"--fs",
		"--fs-screen=" + strconv.Itoa(l.display.Index),
		"--screen=" + strconv.Itoa(l.display.Index),
		"--no-osc",
		"--no-input-default-bindings",
		"--no-terminal",
		"--background=color",
		"--background-color=#000000",
	}
}

func (l *Launcher) surfaceArgs(socket string) []string {
	return append(l.windowArgs(socket), "--pause", "--keep-open=no")
}

func (l *Launcher) canvasArgs(socket string, size domain.ScreenResolution) []string {
	return append(l.windowArgs(socket),
		"--demuxer=rawvideo",
		"--demuxer-rawvideo-w="+strconv.Itoa(size.Width),
		"--demuxer-rawvideo-h="+strconv.Itoa(size.Height),
		"--demuxer-rawvideo-mp-format=rgba",
		"--demuxer-rawvideo-fps="+strconv.Itoa(l.frameRate),
		"--untimed",
		"-",
	)
}
