package monitor

import (
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherDeliversOnlyToRegisteredPath(t *testing.T) {
	d := &Dispatcher{handlers: make(map[string]Handler)}

	got := make(chan Event, 1)
	d.Register("/org/vfsfabric/backend/1/monitor/1", func(ev Event) { got <- ev })

	d.deliver(&dbus.Signal{
		Path: "/org/vfsfabric/backend/1/monitor/1",
		Name: monitorInterface + ".Changed",
		Body: []any{int32(Created), "sftp", map[string]dbus.Variant{}, "/a", "", map[string]dbus.Variant{}, ""},
	})

	select {
	case ev := <-got:
		assert.Equal(t, Created, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("handler was never called")
	}

	// A signal for an unregistered path must not panic or block.
	d.deliver(&dbus.Signal{
		Path: "/org/vfsfabric/backend/1/monitor/99",
		Name: monitorInterface + ".Changed",
		Body: []any{int32(Created), "sftp", map[string]dbus.Variant{}, "/a", "", map[string]dbus.Variant{}, ""},
	})
}

func TestDispatcherUnregisterStopsDelivery(t *testing.T) {
	d := &Dispatcher{handlers: make(map[string]Handler)}
	called := false
	d.Register("/p/1", func(ev Event) { called = true })
	d.Unregister("/p/1")

	d.deliver(&dbus.Signal{Path: "/p/1", Name: monitorInterface + ".Changed",
		Body: []any{int32(Changed), "sftp", map[string]dbus.Variant{}, "/a", "", map[string]dbus.Variant{}, ""}})

	require.False(t, called)
}
