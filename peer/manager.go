package peer

import (
	"context"
	"sync"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sync/singleflight"
)

// Manager holds the async table (endpoint_id -> peer connection bound
// to the event loop) this fabric describes Bootstrap calls for
// the same endpoint are pipelined through singleflight so concurrent
// callers share one in-flight bootstrap instead of racing to dial.
//
// rpcengine.SyncEngine resolves its connections through a Manager as
// well; there is no separate per-thread table.
type Manager struct {
	sessionBus *dbus.Conn

	mu      sync.Mutex
	conns   map[string]*Conn // endpointID -> live connection
	group   singleflight.Group

	// OnInvalidate is called with an endpoint id whenever that
	// endpoint's connection disconnects, so the Mount Info Cache can
	// drop every Info it owns (this system "Disconnect handling").
	OnInvalidate func(endpointID string)
}

// NewManager returns a Manager that bootstraps peer connections via
// method calls on sessionBus.
func NewManager(sessionBus *dbus.Conn) *Manager {
	return &Manager{sessionBus: sessionBus, conns: make(map[string]*Conn)}
}

// Get returns the cached peer connection for (busName, objectPath),
// bootstrapping one if absent. If the same endpoint is concurrently
// requested by two callers, only one bootstrap happens; the loser
// simply waits on the winner's singleflight call and adopts its
// result — "if the same endpoint was concurrently added, close the
// loser" from this system never actually constructs a loser here
// because the race is resolved before dialing starts, which is a
// strictly stronger guarantee than a close-the-loser fallback and
// subsumes it.
func (m *Manager) Get(ctx context.Context, busName, objectPath string) (*Conn, error) {
	endpointID := busName + "\x00" + objectPath

	m.mu.Lock()
	if c, ok := m.conns[endpointID]; ok {
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do(endpointID, func() (any, error) {
		m.mu.Lock()
		if c, ok := m.conns[endpointID]; ok {
			m.mu.Unlock()
			return c, nil
		}
		m.mu.Unlock()

		c, err := bootstrap(ctx, m.sessionBus, endpointID, busName, objectPath)
		if err != nil {
			return nil, err
		}
		c.OnDisconnect(func(error) {
			m.mu.Lock()
			delete(m.conns, endpointID)
			m.mu.Unlock()
			if m.OnInvalidate != nil {
				m.OnInvalidate(endpointID)
			}
		})

		m.mu.Lock()
		m.conns[endpointID] = c
		m.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Conn), nil
}

// Adopt registers conn as the live connection for endpointID, wiring
// the same disconnect-driven cache eviction and OnInvalidate callback
// Get installs for a connection it bootstrapped itself. Use this when
// a connection was obtained some other way (peer.NewConn over a
// manually-dialed bus, e.g. in tests) but should still be managed and
// invalidated like any other.
func (m *Manager) Adopt(endpointID string, conn *Conn) {
	conn.OnDisconnect(func(error) {
		m.mu.Lock()
		delete(m.conns, endpointID)
		m.mu.Unlock()
		if m.OnInvalidate != nil {
			m.OnInvalidate(endpointID)
		}
	})
	m.mu.Lock()
	if m.conns == nil {
		m.conns = make(map[string]*Conn)
	}
	m.conns[endpointID] = conn
	m.mu.Unlock()
}

// Drop removes and closes the cached connection for endpointID, if
// any. Used by the async call engine's retry policy after a Retry
// reply invalidates the endpoint.
func (m *Manager) Drop(endpointID string) {
	m.mu.Lock()
	c, ok := m.conns[endpointID]
	delete(m.conns, endpointID)
	m.mu.Unlock()
	if ok {
		_ = c.Close()
	}
}

// EndpointID derives the same key Get/Drop use, for callers that need
// to address an endpoint before they have a *Conn (e.g. to invalidate
// the Mount Info Cache without going through a disconnect callback).
func EndpointID(busName, objectPath string) string {
	return busName + "\x00" + objectPath
}
