package peer

import (
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/require"

	"github.com/vfsfabric/corevfs/internal/fds"
)

// echoExport is a tiny method table a test server connection can
// export so the client half of a bootstrapped peer connection has
// something real to call.
type echoExport struct{}

func (echoExport) Echo(s string) (string, *dbus.Error) { return s, nil }

// TestListenerGetConnectionRoundTrips drives the exact sequence
// Conn.bootstrap performs against a real Listener: call GetConnection,
// dial both addresses back, and confirm the server side that
// Listener.onAccept receives is a live, callable peer connection with a
// working fd side channel.
func TestListenerGetConnectionRoundTrips(t *testing.T) {
	dir := t.TempDir()

	accepted := make(chan struct {
		bus *dbus.Conn
		fd  *fds.Channel
	}, 1)

	l := NewListener(dir, func(bus *dbus.Conn, fd *fds.Channel) {
		require.NoError(t, bus.Export(echoExport{}, "/echo", "org.vfsfabric.Echo"))
		accepted <- struct {
			bus *dbus.Conn
			fd  *fds.Channel
		}{bus, fd}
	})

	peerAddr, sideAddr, derr := l.GetConnection()
	require.Nil(t, derr)
	require.NotEmpty(t, peerAddr)
	require.NotEmpty(t, sideAddr)

	sideConn, err := dialSideSocket(sideAddr)
	require.NoError(t, err)
	defer sideConn.Close()

	clientConn, err := dialPeer(peerAddr)
	require.NoError(t, err)
	defer clientConn.Close()

	select {
	case srv := <-accepted:
		defer srv.bus.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("listener never accepted the bootstrapped connection")
	}

	var reply string
	call := clientConn.Object("", "/echo").Call("org.vfsfabric.Echo.Echo", 0, "hi")
	require.NoError(t, call.Err)
	require.NoError(t, call.Store(&reply))
	require.Equal(t, "hi", reply)
}
