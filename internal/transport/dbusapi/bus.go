package dbusapi

import (
	"github.com/godbus/dbus/v5"
)

// Bus defines the D-Bus operations the service needs.
// This abstraction allows us to mock D-Bus interactions in tests.
//
//go:generate mockgen -destination=mocks/bus_mock.go -package=mocks github.com/genricoloni/wozplayer/internal/transport/dbusapi Bus
type Bus interface {
	// Close closes the D-Bus connection
	Close() error

	// RequestName claims a well-known bus name
	RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error)

	// Export publishes the methods of v on path under iface
	Export(v any, path dbus.ObjectPath, iface string) error

	// Emit sends a signal; name is the interface-qualified member
	Emit(path dbus.ObjectPath, name string, values ...any) error
}

// StdBus is the real implementation using godbus
type StdBus struct {
	conn *dbus.Conn
}

// NewStdBus opens a private connection to the session bus
func NewStdBus() (Bus, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, err
	}
	return &StdBus{conn: conn}, nil
}

// Close closes the D-Bus connection
func (b *StdBus) Close() error {
	return b.conn.Close()
}

// RequestName claims a well-known bus name
func (b *StdBus) RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error) {
	return b.conn.RequestName(name, flags)
}

// Export publishes the methods of v on path under iface
func (b *StdBus) Export(v any, path dbus.ObjectPath, iface string) error {
	return b.conn.Export(v, path, iface)
}

// Emit sends a signal
func (b *StdBus) Emit(path dbus.ObjectPath, name string, values ...any) error {
	return b.conn.Emit(path, name, values...)
}
