package mpv

import (
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/genricoloni/wozplayer/internal/domain"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Canvas is an mpv window showing raw RGBA frames written to its input
type Canvas struct {
	logger *zap.Logger
	name   string
	conn   Conn
	proc   *Process
	size   domain.ScreenResolution

	mu sync.Mutex
	w  io.WriteCloser

	wg sync.WaitGroup
}

// NewCanvas creates a canvas writing frames of the given size to w
func NewCanvas(logger *zap.Logger, name string, conn Conn, w io.WriteCloser, size domain.ScreenResolution, proc *Process) *Canvas {
	c := &Canvas{
		logger: logger.With(zap.String("canvas", name)),
		name:   name,
		conn:   conn,
		proc:   proc,
		size:   size,
		w:      w,
	}

	// nothing is loaded through IPC; events are drained so the reader never stalls
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for range conn.Events() {
		}
	}()

	return c
}

// WriteFrame sends one frame; its bounds must match the canvas size
func (c *Canvas) WriteFrame(frame *image.RGBA) error {
	b := frame.Bounds()
	if b.Dx() != c.size.Width || b.Dy() != c.size.Height {
		return fmt.Errorf("frame is %dx%d, canvas expects %dx%d", b.Dx(), b.Dy(), c.size.Width, c.size.Height)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.w == nil {
		return ErrClosed
	}

	row := 4 * b.Dx()
	if frame.Stride == row {
		_, err := c.w.Write(frame.Pix[:row*b.Dy()])
		return err
	}
	for y := 0; y < b.Dy(); y++ {
		off := y * frame.Stride
		if _, err := c.w.Write(frame.Pix[off : off+row]); err != nil {
			return err
		}
	}
	return nil
}

// Size returns the frame size accepted by WriteFrame
func (c *Canvas) Size() domain.ScreenResolution {
	return c.size
}

// SetVisible brings the canvas window to the front or sends it back
func (c *Canvas) SetVisible(visible bool) error {
	ctx, cancel := contextWithCommandTimeout()
	defer cancel()
	_, err := c.conn.Command(ctx, "set_property", "ontop", visible)
	return err
}

// Close closes the frame pipe, the IPC connection and the process
func (c *Canvas) Close() error {
	c.mu.Lock()
	var err error
	if c.w != nil {
		err = c.w.Close()
		c.w = nil
	}
	c.mu.Unlock()

	err = multierr.Append(err, c.conn.Close())
	c.wg.Wait()
	if c.proc != nil {
		err = multierr.Append(err, c.proc.Stop())
	}
	return err
}
