package dbusapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/genricoloni/wozplayer/internal/domain"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"go.uber.org/zap"
)

const (
	// BusName is the well-known name claimed on the session bus
	BusName = "org.wozplayer.Participant"
	// ObjectPath is where the participant object lives
	ObjectPath = dbus.ObjectPath("/org/wozplayer/Participant")
	// Interface carries the command methods and event signals
	Interface = "org.wozplayer.Participant1"

	errInvalidCondition = Interface + ".Error.InvalidCondition"
)

// Service exposes the participant command stream on D-Bus and emits
// mediaEnded/mediaError as signals.
type Service struct {
	logger *zap.Logger
	ctrl   domain.Controller
	res    domain.Resolver
	dial   func() (Bus, error)

	mu  sync.Mutex
	bus Bus
}

// NewService creates a D-Bus service over the given controller
func NewService(logger *zap.Logger, ctrl domain.Controller, res domain.Resolver) *Service {
	return &Service{
		logger: logger,
		ctrl:   ctrl,
		res:    res,
		dial:   NewStdBus,
	}
}

// Start connects to the session bus, claims the name and exports the object
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bus != nil {
		return nil
	}

	bus, err := s.dial()
	if err != nil {
		return fmt.Errorf("session bus connection failed: %w", err)
	}

	if err := s.export(bus); err != nil {
		if cerr := bus.Close(); cerr != nil {
			s.logger.Warn("Failed to close D-Bus connection", zap.Error(cerr))
		}
		return err
	}

	s.bus = bus
	s.logger.Info("D-Bus service started",
		zap.String("name", BusName),
		zap.String("path", string(ObjectPath)))
	return nil
}

func (s *Service) export(bus Bus) error {
	reply, err := bus.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", BusName)
	}

	m := &methods{s: s}
	if err := bus.Export(m, ObjectPath, Interface); err != nil {
		return fmt.Errorf("failed to export methods: %w", err)
	}

	node := &introspect.Node{
		Name: string(ObjectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    Interface,
				Methods: introspect.Methods(m),
				Signals: []introspect.Signal{
					{Name: "MediaEnded", Args: []introspect.Arg{{Name: "mediaId", Type: "s"}}},
					{Name: "MediaError", Args: []introspect.Arg{{Name: "message", Type: "s"}}},
				},
			},
		},
	}
	if err := bus.Export(introspect.NewIntrospectable(node), ObjectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspection: %w", err)
	}
	return nil
}

// Stop closes the bus connection
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bus == nil {
		return nil
	}
	err := s.bus.Close()
	s.bus = nil
	if err != nil {
		s.logger.Warn("Failed to close D-Bus connection", zap.Error(err))
	}
	s.logger.Info("D-Bus service stopped")
	return nil
}

// MediaEnded emits the MediaEnded signal
func (s *Service) MediaEnded(id domain.MediaID) {
	s.emit("MediaEnded", string(id))
}

// MediaError emits the MediaError signal
func (s *Service) MediaError(message string) {
	s.emit("MediaError", message)
}

func (s *Service) emit(member string, value string) {
	s.mu.Lock()
	bus := s.bus
	s.mu.Unlock()

	if bus == nil {
		return
	}
	if err := bus.Emit(ObjectPath, Interface+"."+member, value); err != nil {
		s.logger.Warn("Failed to emit signal", zap.String("signal", member), zap.Error(err))
	}
}

// methods is the exported D-Bus object. Every method returns a *dbus.Error
// as godbus requires.
type methods struct {
	s *Service
}

func (m *methods) PlayMedia(mediaID string, loop bool) *dbus.Error {
	m.s.logger.Debug("PlayMedia over D-Bus", zap.String("media", mediaID), zap.Bool("loop", loop))
	m.s.ctrl.PlayMedia(domain.MediaCommand{Media: domain.MediaID(mediaID), Loop: loop})
	return nil
}

func (m *methods) StopMedia() *dbus.Error {
	m.s.ctrl.StopMedia()
	return nil
}

func (m *methods) PreloadMedia(ids []string) *dbus.Error {
	media := make([]domain.MediaID, len(ids))
	for i, id := range ids {
		media[i] = domain.MediaID(id)
	}
	m.s.ctrl.PreloadMedia(media)
	return nil
}

func (m *methods) ChangeCondition(condition string) *dbus.Error {
	c := domain.Condition(condition)
	if !c.Valid() {
		return dbus.NewError(errInvalidCondition, []any{"Invalid condition: " + condition})
	}
	m.s.ctrl.ChangeCondition(c)
	return nil
}

func (m *methods) SetVolume(volume float64) *dbus.Error {
	m.s.ctrl.SetVolume(domain.ClampVolume(volume))
	return nil
}

func (m *methods) SetFadeSpeed(millis int32) *dbus.Error {
	m.s.ctrl.SetFadeSpeed(domain.ClampFadeSpeed(time.Duration(millis) * time.Millisecond))
	return nil
}

func (m *methods) AssetsPath() (string, *dbus.Error) {
	return m.s.res.AssetsRoot(), nil
}
