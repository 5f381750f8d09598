package mpv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/genricoloni/wozplayer/internal/domain"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// commandTimeout bounds property changes and other quick IPC round trips
const commandTimeout = 2 * time.Second

// persistentText keeps an OSD message until it is replaced
const persistentText = 24 * time.Hour

var errLoadInterrupted = errors.New("load interrupted by clear")

// fileError is the file_error mpv attaches to an end-file error
type fileError string

func (e fileError) Error() string {
	return "playback failed: " + string(e)
}

// Surface is a fullscreen mpv window used as a video output.
// Opacity maps to brightness and visibility to the ontop flag.
type Surface struct {
	logger *zap.Logger
	name   string
	conn   Conn
	proc   *Process

	events chan domain.SurfaceEvent

	mu     sync.Mutex
	source string
	waiter chan error

	wg sync.WaitGroup
}

// NewSurface drives an mpv instance over conn. proc may be nil when the
// process is owned elsewhere.
func NewSurface(logger *zap.Logger, name string, conn Conn, proc *Process) *Surface {
	s := &Surface{
		logger: logger.With(zap.String("surface", name)),
		name:   name,
		conn:   conn,
		proc:   proc,
		events: make(chan domain.SurfaceEvent, 4),
	}
	s.wg.Add(1)
	go s.watch()
	return s
}

// Name returns the surface name used in logs
func (s *Surface) Name() string {
	return s.name
}

// Load issues loadfile and blocks until mpv reports the file as loaded
func (s *Surface) Load(ctx context.Context, path string) error {
	w := make(chan error, 1)
	s.mu.Lock()
	s.waiter = w
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.waiter == w {
			s.waiter = nil
		}
		s.mu.Unlock()
	}()

	if _, err := s.conn.Command(ctx, "loadfile", path, "replace"); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.LoadError{Path: path, Reason: domain.FailureDecode, Err: err}
	}

	select {
	case err := <-w:
		if errors.Is(err, errLoadInterrupted) {
			return &domain.LoadError{Path: path, Reason: domain.FailureInterrupted, Err: err}
		}
		if err != nil {
			return &domain.LoadError{Path: path, Reason: loadFailure(path, err), Err: err}
		}
	case <-ctx.Done():
		// abandon the half-loaded file so it cannot start later
		_ = s.command("stop")
		return ctx.Err()
	}

	s.mu.Lock()
	s.source = path
	s.mu.Unlock()
	return nil
}

// Source returns the path currently bound, empty when cleared
func (s *Surface) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Play unpauses. mpv never refuses audible playback.
func (s *Surface) Play(ctx context.Context) error {
	_, err := s.conn.Command(ctx, "set_property", "pause", false)
	return err
}

// Pause pauses playback
func (s *Surface) Pause() error {
	return s.setProperty("pause", true)
}

// Rewind seeks the bound file to its start
func (s *Surface) Rewind() error {
	if s.Source() == "" {
		return nil
	}
	return s.command("seek", 0, "absolute")
}

// Clear unbinds the source and interrupts a pending Load
func (s *Surface) Clear() error {
	s.mu.Lock()
	s.source = ""
	s.mu.Unlock()
	s.resolveLoad(errLoadInterrupted)
	return s.command("stop")
}

// SetLoop toggles infinite looping of the current file
func (s *Surface) SetLoop(loop bool) error {
	v := "no"
	if loop {
		v = "inf"
	}
	return s.setProperty("loop-file", v)
}

// SetMuted toggles mute
func (s *Surface) SetMuted(muted bool) error {
	return s.setProperty("mute", muted)
}

// SetVolume sets the volume from a [0, 1] gain
func (s *Surface) SetVolume(volume float64) error {
	return s.setProperty("volume", clamp(volume, 0, 1)*100)
}

// SetOpacity dims the window through brightness
func (s *Surface) SetOpacity(opacity float64) error {
	return s.setProperty("brightness", brightness(opacity))
}

// SetVisible raises the window above the other surfaces
func (s *Surface) SetVisible(visible bool) error {
	return s.setProperty("ontop", visible)
}

// ShowText draws an OSD message; d of zero keeps it until replaced
func (s *Surface) ShowText(text string, d time.Duration) error {
	if d <= 0 {
		d = persistentText
	}
	return s.command("show-text", text, d.Milliseconds())
}

// Events delivers end and runtime error notifications
func (s *Surface) Events() <-chan domain.SurfaceEvent {
	return s.events
}

// Close closes the IPC connection and stops the mpv process
func (s *Surface) Close() error {
	err := s.conn.Close()
	s.wg.Wait()
	if s.proc != nil {
		err = multierr.Append(err, s.proc.Stop())
	}
	return err
}

// watch translates mpv events into load completions and surface events
func (s *Surface) watch() {
	defer s.wg.Done()
	defer close(s.events)

	for ev := range s.conn.Events() {
		switch ev.Name {
		case "file-loaded":
			s.resolveLoad(nil)

		case "end-file":
			switch ev.Reason {
			case "eof":
				s.emit(domain.SurfaceEvent{Kind: domain.SurfaceEnded})
			case "error":
				err := fileError(ev.FileError)
				if !s.resolveLoad(err) {
					s.emit(domain.SurfaceEvent{Kind: domain.SurfaceError, Err: err})
				}
			default:
				// stop, quit and redirect are caused by our own commands
				s.logger.Debug("File ended", zap.String("reason", ev.Reason))
			}
		}
	}
}

// resolveLoad completes a pending Load and reports whether there was one
func (s *Surface) resolveLoad(err error) bool {
	s.mu.Lock()
	w := s.waiter
	s.waiter = nil
	s.mu.Unlock()

	if w == nil {
		return false
	}
	w <- err
	return true
}

func (s *Surface) emit(ev domain.SurfaceEvent) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("Surface event dropped, channel full")
	}
}

func (s *Surface) setProperty(name string, value any) error {
	return s.command("set_property", name, value)
}

func (s *Surface) command(args ...any) error {
	ctx, cancel := contextWithCommandTimeout()
	defer cancel()

	if _, err := s.conn.Command(ctx, args...); err != nil {
		if errors.Is(err, ErrClosed) {
			return err
		}
		return fmt.Errorf("%s: %v: %w", s.name, args[0], err)
	}
	return nil
}

func contextWithCommandTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), commandTimeout)
}

// loadFailure maps an mpv end-file error onto a load failure category.
// mpv reports a missing local file and an unreachable URL alike as
// "loading failed"; the path tells them apart.
func loadFailure(path string, err error) domain.LoadFailure {
	var fe fileError
	if !errors.As(err, &fe) {
		return domain.FailureDecode
	}
	switch string(fe) {
	case "loading failed":
		if isRemote(path) {
			return domain.FailureNetwork
		}
		return domain.FailureNotFound
	case "unrecognized file format", "not implemented":
		return domain.FailureNotFound
	default:
		return domain.FailureDecode
	}
}

func isRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// brightness maps an opacity in [0, 1] onto mpv's brightness in [-100, 0]
func brightness(opacity float64) int {
	return int((clamp(opacity, 0, 1) - 1) * 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
