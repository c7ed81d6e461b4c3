package monitor

import (
	"strconv"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/vfsfabric/corevfs/mount"
)

// Handler receives events for one monitor, in delivery order.
type Handler func(Event)

// Dispatcher is the client side of one peer connection: it installs a
// single signal filter and fans Changed signals out to per-object-path
// handlers, so callers that created several monitors on the same
// connection don't each need their own bus subscription.
type Dispatcher struct {
	conn *dbus.Conn

	mu       sync.RWMutex
	handlers map[string]Handler

	sigCh chan *dbus.Signal
}

// NewDispatcher installs a signal filter on conn and returns a
// Dispatcher ready to register handlers by object path.
func NewDispatcher(conn *dbus.Conn) *Dispatcher {
	d := &Dispatcher{conn: conn, handlers: make(map[string]Handler)}
	d.sigCh = make(chan *dbus.Signal, 32)
	conn.Signal(d.sigCh)
	go d.run()
	return d
}

// Register associates objectPath with handler. Only one handler may be
// registered per path at a time; registering again replaces it.
func (d *Dispatcher) Register(objectPath string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[objectPath] = handler
}

// Unregister removes objectPath's handler, e.g. once the client has
// destroyed that monitor.
func (d *Dispatcher) Unregister(objectPath string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, objectPath)
}

// Close stops the dispatcher's signal loop.
func (d *Dispatcher) Close() {
	d.conn.RemoveSignal(d.sigCh)
}

func (d *Dispatcher) run() {
	for sig := range d.sigCh {
		if sig == nil || sig.Name != monitorInterface+".Changed" {
			continue
		}
		d.deliver(sig)
	}
}

func (d *Dispatcher) deliver(sig *dbus.Signal) {
	d.mu.RLock()
	handler, ok := d.handlers[string(sig.Path)]
	d.mu.RUnlock()
	if !ok {
		return
	}
	ev, ok := decodeChanged(sig.Body)
	if !ok {
		return
	}
	handler(ev)
}

func decodeChanged(body []any) (Event, bool) {
	if len(body) != 7 {
		return Event{}, false
	}
	rawType, ok := body[0].(int32)
	if !ok {
		return Event{}, false
	}
	specType, _ := body[1].(string)
	specItems, _ := body[2].(map[string]dbus.Variant)
	path, _ := body[3].(string)
	spec2Type, _ := body[4].(string)
	spec2Items, _ := body[5].(map[string]dbus.Variant)
	path2, _ := body[6].(string)

	ev := Event{Type: EventType(rawType), Path: path, Path2: path2}
	if specType != "" {
		if spec, _, err := mount.FromWire(mount.WireSpec{Type: specType, Items: specItems}); err == nil {
			ev.Spec = spec
		}
	}
	if spec2Type != "" {
		if spec2, _, err := mount.FromWire(mount.WireSpec{Type: spec2Type, Items: spec2Items}); err == nil {
			ev.Spec2 = spec2
		}
	}
	return ev, true
}

// monitorPathSuffix extracts the numeric monitor id assigned by
// Server.Create, for callers that want to log or key on it without
// parsing the whole object path themselves.
func monitorPathSuffix(objectPath string) (uint64, bool) {
	i := len(objectPath) - 1
	for i >= 0 && objectPath[i] != '/' {
		i--
	}
	if i < 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(objectPath[i+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
