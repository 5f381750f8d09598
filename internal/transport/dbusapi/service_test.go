package dbusapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/genricoloni/wozplayer/internal/domain"
	"github.com/genricoloni/wozplayer/internal/resolver"
	"github.com/genricoloni/wozplayer/internal/transport/dbusapi/mocks"
	"github.com/godbus/dbus/v5"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

// fakeController records the commands it receives
type fakeController struct {
	played     []domain.MediaCommand
	stops      int
	preloaded  []domain.MediaID
	conditions []domain.Condition
	volume     float64
	fade       time.Duration
}

func (c *fakeController) PlayMedia(cmd domain.MediaCommand)     { c.played = append(c.played, cmd) }
func (c *fakeController) StopMedia()                            { c.stops++ }
func (c *fakeController) PreloadMedia(ids []domain.MediaID)     { c.preloaded = append(c.preloaded, ids...) }
func (c *fakeController) ChangeCondition(cond domain.Condition) { c.conditions = append(c.conditions, cond) }
func (c *fakeController) SetVolume(v float64)                   { c.volume = v }
func (c *fakeController) SetFadeSpeed(d time.Duration)          { c.fade = d }
func (c *fakeController) Snapshot() domain.PlaybackState        { return domain.PlaybackState{} }

func newTestService(bus Bus, dialErr error) (*Service, *fakeController) {
	ctrl := &fakeController{}
	s := NewService(zap.NewNop(), ctrl, resolver.New("/srv/assets", "WAV"))
	s.dial = func() (Bus, error) {
		if dialErr != nil {
			return nil, dialErr
		}
		return bus, nil
	}
	return s, ctrl
}

func TestService_Start(t *testing.T) {
	tests := []struct {
		name        string
		dialErr     error
		setupMock   func(*mocks.MockBus)
		expectError bool
	}{
		{
			name: "Success - Name claimed and object exported",
			setupMock: func(m *mocks.MockBus) {
				m.EXPECT().RequestName(BusName, dbus.NameFlagDoNotQueue).
					Return(dbus.RequestNameReplyPrimaryOwner, nil)
				m.EXPECT().Export(gomock.Any(), ObjectPath, Interface).Return(nil)
				m.EXPECT().Export(gomock.Any(), ObjectPath, "org.freedesktop.DBus.Introspectable").Return(nil)
			},
		},
		{
			name: "Name taken - Connection closed",
			setupMock: func(m *mocks.MockBus) {
				m.EXPECT().RequestName(BusName, dbus.NameFlagDoNotQueue).
					Return(dbus.RequestNameReplyExists, nil)
				m.EXPECT().Close().Return(nil)
			},
			expectError: true,
		},
		{
			name: "Export fails - Connection closed",
			setupMock: func(m *mocks.MockBus) {
				m.EXPECT().RequestName(BusName, dbus.NameFlagDoNotQueue).
					Return(dbus.RequestNameReplyPrimaryOwner, nil)
				m.EXPECT().Export(gomock.Any(), ObjectPath, Interface).Return(errors.New("bad signature"))
				m.EXPECT().Close().Return(nil)
			},
			expectError: true,
		},
		{
			name:        "No session bus",
			dialErr:     errors.New("no DBUS_SESSION_BUS_ADDRESS"),
			setupMock:   func(m *mocks.MockBus) {},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			bus := mocks.NewMockBus(ctrl)
			tt.setupMock(bus)

			s, _ := newTestService(bus, tt.dialErr)
			err := s.Start(context.Background())

			if tt.expectError && err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
		})
	}
}

func TestService_Methods(t *testing.T) {
	tests := []struct {
		name        string
		call        func(m *methods) *dbus.Error
		check       func(t *testing.T, c *fakeController)
		expectError bool
	}{
		{
			name: "PlayMedia forwards the command",
			call: func(m *methods) *dbus.Error { return m.PlayMedia("q2", false) },
			check: func(t *testing.T, c *fakeController) {
				if len(c.played) != 1 || c.played[0] != (domain.MediaCommand{Media: domain.MediaQ2}) {
					t.Errorf("unexpected commands: %+v", c.played)
				}
			},
		},
		{
			name: "StopMedia",
			call: func(m *methods) *dbus.Error { return m.StopMedia() },
			check: func(t *testing.T, c *fakeController) {
				if c.stops != 1 {
					t.Errorf("expected one stop, got %d", c.stops)
				}
			},
		},
		{
			name: "PreloadMedia converts ids",
			call: func(m *methods) *dbus.Error { return m.PreloadMedia([]string{"q1", "closing"}) },
			check: func(t *testing.T, c *fakeController) {
				if len(c.preloaded) != 2 || c.preloaded[1] != domain.MediaClosing {
					t.Errorf("unexpected preload: %v", c.preloaded)
				}
			},
		},
		{
			name: "ChangeCondition valid",
			call: func(m *methods) *dbus.Error { return m.ChangeCondition("abstract") },
			check: func(t *testing.T, c *fakeController) {
				if len(c.conditions) != 1 || c.conditions[0] != domain.ConditionAbstract {
					t.Errorf("unexpected conditions: %v", c.conditions)
				}
			},
		},
		{
			name: "ChangeCondition invalid is rejected",
			call: func(m *methods) *dbus.Error { return m.ChangeCondition("robot") },
			check: func(t *testing.T, c *fakeController) {
				if len(c.conditions) != 0 {
					t.Errorf("invalid condition must not reach the controller: %v", c.conditions)
				}
			},
			expectError: true,
		},
		{
			name: "SetVolume clamps high values",
			call: func(m *methods) *dbus.Error { return m.SetVolume(1.7) },
			check: func(t *testing.T, c *fakeController) {
				if c.volume != 1 {
					t.Errorf("want 1, got %v", c.volume)
				}
			},
		},
		{
			name: "SetFadeSpeed clamps short fades",
			call: func(m *methods) *dbus.Error { return m.SetFadeSpeed(20) },
			check: func(t *testing.T, c *fakeController) {
				if c.fade != 100*time.Millisecond {
					t.Errorf("want 100ms, got %v", c.fade)
				}
			},
		},
		{
			name: "SetFadeSpeed clamps long fades",
			call: func(m *methods) *dbus.Error { return m.SetFadeSpeed(9000) },
			check: func(t *testing.T, c *fakeController) {
				if c.fade != 2*time.Second {
					t.Errorf("want 2s, got %v", c.fade)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ctrl := newTestService(nil, nil)
			err := tt.call(&methods{s: s})

			if tt.expectError && err == nil {
				t.Fatal("Expected D-Bus error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Fatalf("Unexpected D-Bus error: %v", err)
			}
			tt.check(t, ctrl)
		})
	}
}

func TestService_AssetsPath(t *testing.T) {
	s, _ := newTestService(nil, nil)
	path, err := (&methods{s: s}).AssetsPath()
	if err != nil || path != "/srv/assets" {
		t.Errorf("want /srv/assets, got %q (%v)", path, err)
	}
}

func TestService_Signals(t *testing.T) {
	ctrl := gomock.NewController(t)
	bus := mocks.NewMockBus(ctrl)
	s, _ := newTestService(bus, nil)

	// not started: signals are dropped without touching the bus
	s.MediaEnded(domain.MediaQ1)

	bus.EXPECT().RequestName(BusName, dbus.NameFlagDoNotQueue).Return(dbus.RequestNameReplyPrimaryOwner, nil)
	bus.EXPECT().Export(gomock.Any(), ObjectPath, gomock.Any()).Return(nil).Times(2)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	gomock.InOrder(
		bus.EXPECT().Emit(ObjectPath, Interface+".MediaEnded", "welcome").Return(nil),
		bus.EXPECT().Emit(ObjectPath, Interface+".MediaError", "Vidéo: boom").Return(errors.New("bus gone")),
	)
	s.MediaEnded(domain.MediaWelcome)
	s.MediaError("Vidéo: boom")

	bus.EXPECT().Close().Return(nil)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	// stopped twice is a no-op
	if err := s.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}
