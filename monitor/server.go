package monitor

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/godbus/dbus/v5"

	"github.com/vfsfabric/corevfs/mount"
	"github.com/vfsfabric/corevfs/vfserr"
)

// Server assigns monitor object paths on a backend's peer connection
// and emits Changed signals for them. One Server is owned by one
// backend process.
type Server struct {
	bus    *dbus.Conn
	prefix string // object path prefix this backend's monitors live under

	counter uint64

	mu     sync.RWMutex
	active map[string]struct{} // live monitor object paths
}

// NewServer builds a Server that assigns object paths under prefix
// (e.g. "/org/vfsfabric/backend/1/monitor") on bus.
func NewServer(bus *dbus.Conn, prefix string) *Server {
	return &Server{bus: bus, prefix: prefix, active: make(map[string]struct{})}
}

// Create assigns a fresh monitor object path from a monotonic counter,
// matching its "backend assigns a unique local path
// (monotonic counter)".
func (s *Server) Create() string {
	id := atomic.AddUint64(&s.counter, 1)
	objectPath := fmt.Sprintf("%s/%d", s.prefix, id)
	s.mu.Lock()
	s.active[objectPath] = struct{}{}
	s.mu.Unlock()
	return objectPath
}

// Destroy retires a monitor; subsequent Emit calls for it are no-ops.
func (s *Server) Destroy(objectPath string) {
	s.mu.Lock()
	delete(s.active, objectPath)
	s.mu.Unlock()
}

// Emit sends a Changed signal for objectPath. It is a no-op (returning
// an error) if the monitor was already destroyed, so a racing backend
// callback can't resurrect a torn-down monitor's signal stream.
func (s *Server) Emit(objectPath string, ev Event) error {
	s.mu.RLock()
	_, live := s.active[objectPath]
	s.mu.RUnlock()
	if !live {
		return vfserr.New(vfserr.Closed, "monitor %s already destroyed", objectPath)
	}

	return s.bus.Emit(dbus.ObjectPath(objectPath), monitorInterface+".Changed", encodeChangedBody(ev)...)
}

// encodeChangedBody flattens ev into the signal body decodeChanged
// expects, carrying each Spec's full Items/MountPrefix through
// mount.ToWire rather than just its Type string — a signal argument
// can't be a Go struct (only Call.Store's type-directed decoding gets
// that), so the wire Spec is flattened to a (type, items) pair instead
// of passed as a mount.WireSpec value.
func encodeChangedBody(ev Event) []any {
	specType, specItems := wireSpecFields(ev.Spec)
	spec2Type, spec2Items := wireSpecFields(ev.Spec2)
	return []any{int32(ev.Type), specType, specItems, ev.Path, spec2Type, spec2Items, ev.Path2}
}

func wireSpecFields(spec *mount.Spec) (string, map[string]dbus.Variant) {
	if spec == nil {
		return "", map[string]dbus.Variant{}
	}
	w := mount.ToWire(spec, "")
	return w.Type, w.Items
}

const monitorInterface = "org.vfsfabric.Monitor"
