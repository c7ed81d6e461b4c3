package peer

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/godbus/dbus/v5"

	"github.com/vfsfabric/corevfs/internal/fds"
	"github.com/vfsfabric/corevfs/vfserr"
)

// Listener is the server side of the bootstrap protocol Conn's
// bootstrap performs from the caller's end: a backend process exports
// it (via GetConnection) on its session bus connection, and every call
// spins up a fresh, one-shot pair of Unix sockets — one for the
// private peer D-Bus connection, one for fd side-channel passing — and
// hands their addresses back for the caller to dial, matching "the
// Peer Connection Manager opens a dedicated peer connection and fd
// side channel per backend endpoint".
//
// A one-shot listener per call (rather than one long-lived pair
// shared by every caller) keeps concurrent bootstraps from racing each
// other over which side connection belongs to which peer connection.
type Listener struct {
	baseDir  string
	onAccept func(bus *dbus.Conn, fd *fds.Channel)
	nextID   uint64
}

// NewListener builds a Listener that places its per-call socket pairs
// under baseDir (created if missing) and hands each freshly accepted
// peer connection to onAccept once both halves are connected — the
// callback is expected to Export the backend's vtable onto bus and
// retain fd for handle-passing, then install its own disconnect
// handling the way Conn.watchDisconnect does on the client side.
func NewListener(baseDir string, onAccept func(bus *dbus.Conn, fd *fds.Channel)) *Listener {
	return &Listener{baseDir: baseDir, onAccept: onAccept}
}

// GetConnection implements the bus method Conn.bootstrap calls —
// backendInterface+".GetConnection" — and is meant to be exported
// alongside a backend's well-known object path on the session bus. It
// returns (peerAddress, sideAddress), both dialable by Conn's
// dialPeer/dialSideSocket.
func (l *Listener) GetConnection() (string, string, *dbus.Error) {
	if err := os.MkdirAll(l.baseDir, 0o700); err != nil {
		return "", "", dbus.MakeFailedError(vfserr.Wrap(vfserr.Failed, err, "create peer socket dir %q", l.baseDir))
	}

	id := atomic.AddUint64(&l.nextID, 1)
	peerPath := filepath.Join(l.baseDir, fmt.Sprintf("peer-%d-%d.sock", os.Getpid(), id))
	sidePath := filepath.Join(l.baseDir, fmt.Sprintf("side-%d-%d.sock", os.Getpid(), id))

	_ = os.Remove(peerPath)
	_ = os.Remove(sidePath)

	peerLn, err := net.Listen("unix", peerPath)
	if err != nil {
		return "", "", dbus.MakeFailedError(vfserr.Wrap(vfserr.Failed, err, "listen on %q", peerPath))
	}
	sideLn, err := net.Listen("unix", sidePath)
	if err != nil {
		_ = peerLn.Close()
		return "", "", dbus.MakeFailedError(vfserr.Wrap(vfserr.Failed, err, "listen on %q", sidePath))
	}

	guid := dbus.GenerateUUID()
	go l.acceptOnce(peerLn, sideLn, guid)

	peerAddr := fmt.Sprintf("unix:path=%s,guid=%s", peerPath, guid)
	sideAddr := fmt.Sprintf("unix:path=%s", sidePath)
	return peerAddr, sideAddr, nil
}

// acceptOnce waits for exactly one connection on each listener, wires
// the peer connection up as a D-Bus server connection sharing guid with
// the address GetConnection handed out, and hands both to onAccept.
// Either listener is closed once its one connection (or its failure)
// is resolved, so a bootstrap that never completes doesn't leak a
// listening socket forever.
func (l *Listener) acceptOnce(peerLn, sideLn net.Listener, guid string) {
	defer peerLn.Close()
	defer sideLn.Close()

	rawPeer, err := peerLn.Accept()
	if err != nil {
		return
	}
	rawSide, err := sideLn.Accept()
	if err != nil {
		_ = rawPeer.Close()
		return
	}

	sideUnix, ok := rawSide.(*net.UnixConn)
	if !ok {
		_ = rawPeer.Close()
		_ = rawSide.Close()
		return
	}

	srv, err := dbus.NewConn(rawPeer, dbus.WithServer(guid))
	if err != nil {
		_ = rawPeer.Close()
		_ = rawSide.Close()
		return
	}

	fd := fds.NewChannel(sideUnix)
	watchDisconnect(srv, fd)

	l.onAccept(srv, fd)
}

// watchDisconnect closes fd once srv's local "Disconnected" signal
// fires, the server-side mirror of what Conn.watchDisconnect does for
// the client half of the same peer connection — the fd side channel's
// lifetime is tied to the bus connection's, not to whatever onAccept
// does with it.
func watchDisconnect(srv *dbus.Conn, fd *fds.Channel) {
	sigCh := make(chan *dbus.Signal, 8)
	srv.Signal(sigCh)
	go func() {
		for sig := range sigCh {
			if sig != nil && sig.Name == "org.freedesktop.DBus.Local.Disconnected" {
				_ = fd.Close()
				return
			}
		}
	}()
}
