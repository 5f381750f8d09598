package mpv

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

const stopGrace = 2 * time.Second

// Process is a running mpv instance
type Process struct {
	logger *zap.Logger
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	done   chan struct{}
}

// startProcess launches binary with args. When withStdin is set the
// process reads its input from a pipe returned by Stdin.
func startProcess(ctx context.Context, logger *zap.Logger, binary string, args []string, withStdin bool) (*Process, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	p := &Process{
		logger: logger,
		cmd:    cmd,
		done:   make(chan struct{}),
	}

	if withStdin {
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("failed to open stdin pipe: %w", err)
		}
		p.stdin = stdin
	}

	logger.Debug("Starting mpv", zap.String("binary", binary), zap.Strings("args", args))

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", binary, err)
	}

	go func() {
		err := cmd.Wait()
		logger.Debug("mpv exited", zap.String("binary", binary), zap.Error(err))
		close(p.done)
	}()

	return p, nil
}

// Stdin returns the raw input pipe, nil unless requested at start
func (p *Process) Stdin() io.WriteCloser {
	return p.stdin
}

// Done is closed once the process has exited
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Stop asks mpv to exit and kills it after a grace period
func (p *Process) Stop() error {
	select {
	case <-p.done:
		return nil
	default:
	}

	if p.stdin != nil {
		_ = p.stdin.Close()
	}
	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		p.logger.Debug("Interrupt failed, killing mpv", zap.Error(err))
		_ = p.cmd.Process.Kill()
	}

	select {
	case <-p.done:
	case <-time.After(stopGrace):
		p.logger.Warn("mpv did not exit in time, killing it")
		_ = p.cmd.Process.Kill()
		<-p.done
	}
	return nil
}
