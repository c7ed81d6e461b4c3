// Package peer implements the Peer Connection Manager (component C):
// it bootstraps, per backend endpoint, a dedicated peer bus connection
// plus the fd side-channel socket, and tears both down together when
// the backend disconnects.
package peer

import (
	"context"
	"net"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/vfsfabric/corevfs/internal/fds"
	"github.com/vfsfabric/corevfs/vfserr"
)

// Conn is a live peer connection to one backend: the D-Bus peer-to-peer
// connection carrying method calls and signals, plus the side socket
// used to pass file descriptors out of band.
type Conn struct {
	EndpointID string

	bus *dbus.Conn
	fd  *fds.Channel

	mu        sync.Mutex
	onDisconnect []func(err error)
	sigCh     chan *dbus.Signal
	closed    bool
}

// NewConn wraps an already-established peer bus connection (e.g. one
// dialed outside the normal GetConnection bootstrap, or in a test) the
// same way bootstrap's own result is shaped, with disconnect watching
// installed. Most callers go through Manager.Get instead; this exists
// for callers that have their own way of obtaining a peer connection
// but still want Manager to own its lifecycle.
func NewConn(endpointID string, bus *dbus.Conn) *Conn {
	c := &Conn{EndpointID: endpointID, bus: bus}
	c.watchDisconnect()
	return c
}

// Bus returns the underlying peer D-Bus connection, for issuing method
// calls against a specific object path and interface.
func (c *Conn) Bus() *dbus.Conn { return c.bus }

// FDs returns the fd side-channel paired with this connection.
func (c *Conn) FDs() *fds.Channel { return c.fd }

// OnDisconnect registers a callback invoked exactly once, when the
// peer connection's local "Disconnected" signal fires. This is where
// the Mount Info Cache gets invalidated and in-flight calls get
// failed.
func (c *Conn) OnDisconnect(f func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		go f(vfserr.New(vfserr.Failed, "peer connection already disconnected"))
		return
	}
	c.onDisconnect = append(c.onDisconnect, f)
}

// watchDisconnect installs the signal channel godbus uses to deliver
// its synthetic "org.freedesktop.DBus.Local.Disconnected" signal on
// connection loss, and fans that out to every registered callback.
func (c *Conn) watchDisconnect() {
	c.sigCh = make(chan *dbus.Signal, 8)
	c.bus.Signal(c.sigCh)
	go func() {
		for sig := range c.sigCh {
			if sig == nil {
				continue
			}
			if sig.Name == "org.freedesktop.DBus.Local.Disconnected" {
				c.fireDisconnect(vfserr.New(vfserr.Failed, "peer connection to %s disconnected", c.EndpointID))
				return
			}
		}
	}()
}

func (c *Conn) fireDisconnect(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	callbacks := c.onDisconnect
	c.onDisconnect = nil
	c.mu.Unlock()

	if c.fd != nil {
		_ = c.fd.Close()
	}
	for _, f := range callbacks {
		f(err)
	}
}

// Close tears down the bus connection and the side channel. It is
// idempotent and fires the disconnect callbacks exactly as a real
// network disconnect would, so callers don't need a separate code path
// for "I hung up" versus "they hung up".
func (c *Conn) Close() error {
	c.fireDisconnect(vfserr.New(vfserr.Failed, "peer connection to %s closed locally", c.EndpointID))
	if c.sigCh != nil {
		c.bus.RemoveSignal(c.sigCh)
	}
	return c.bus.Close()
}

// dialPeer opens a private (non-bus) D-Bus connection to address,
// authenticating but deliberately skipping Hello — peer connections
// have no bus daemon to register a unique name with.
func dialPeer(address string) (*dbus.Conn, error) {
	conn, err := dbus.Dial(address)
	if err != nil {
		return nil, vfserr.Wrap(vfserr.Failed, err, "dial peer address %q", address)
	}
	if err := conn.Auth(nil); err != nil {
		_ = conn.Close()
		return nil, vfserr.Wrap(vfserr.Failed, err, "authenticate peer connection to %q", address)
	}
	return conn, nil
}

// dialSideSocket opens the fd-passing Unix socket described by
// sideAddr, a "unix:path=/run/..." address in the same style as the
// peer bus address.
func dialSideSocket(sideAddr string) (*net.UnixConn, error) {
	path, err := unixPathFromAddress(sideAddr)
	if err != nil {
		return nil, err
	}
	raddr := &net.UnixAddr{Name: path, Net: "unix"}
	conn, err := net.DialUnix("unix", nil, raddr)
	if err != nil {
		return nil, vfserr.Wrap(vfserr.Failed, err, "dial side socket at %q", path)
	}
	return conn, nil
}

// unixPathFromAddress extracts the path= component of a D-Bus style
// "unix:path=/foo,guid=..." address string.
func unixPathFromAddress(address string) (string, error) {
	transport, rest, ok := strings.Cut(address, ":")
	if !ok || transport != "unix" {
		return "", vfserr.New(vfserr.InvalidArgument, "not a unix address: %q", address)
	}
	for _, kv := range strings.Split(rest, ",") {
		if k, v, ok := strings.Cut(kv, "="); ok && k == "path" {
			return v, nil
		}
	}
	return "", vfserr.New(vfserr.InvalidArgument, "no path= in address %q", address)
}

// bootstrap performs the four-step handshake of this system for one
// endpoint: call GetConnection, dial the side socket, dial the peer
// bus connection, and wire up disconnect watching.
func bootstrap(ctx context.Context, sessionBus *dbus.Conn, endpointID, busName, objectPath string) (*Conn, error) {
	var peerAddr, sideAddr string
	call := sessionBus.Object(busName, dbus.ObjectPath(objectPath)).
		CallWithContext(ctx, backendInterface+".GetConnection", 0)
	if call.Err != nil {
		return nil, vfserr.Wrap(vfserr.Failed, call.Err, "GetConnection on %s", endpointID)
	}
	if err := call.Store(&peerAddr, &sideAddr); err != nil {
		return nil, vfserr.Wrap(vfserr.Failed, err, "decode GetConnection reply from %s", endpointID)
	}

	sideConn, err := dialSideSocket(sideAddr)
	if err != nil {
		return nil, err
	}

	peerConn, err := dialPeer(peerAddr)
	if err != nil {
		_ = sideConn.Close()
		return nil, err
	}

	c := &Conn{
		EndpointID: endpointID,
		bus:        peerConn,
		fd:         fds.NewChannel(sideConn),
	}
	c.watchDisconnect()
	return c, nil
}

// backendInterface is the D-Bus interface every backend exposes its
// peer method table  and GetConnection bootstrap method
// under.
const backendInterface = "org.vfsfabric.Backend"
