package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/require"

	"github.com/vfsfabric/corevfs/internal/wire"
	"github.com/vfsfabric/corevfs/mount"
	"github.com/vfsfabric/corevfs/peer"
)

// fakeBackend answers the handful of Host methods Remote exercises,
// standing in for cmd/vfsbackend's Host without needing a real backend
// process.
type fakeBackend struct{}

func (fakeBackend) QueryInfo(serial uint64, path, attrs string) (map[string]dbus.Variant, *dbus.Error) {
	return wire.VariantMap(map[string]any{"standard::name": path}), nil
}

func (fakeBackend) OpenForRead(serial uint64, path string) (uint64, *dbus.Error) {
	return 7, nil
}

func (fakeBackend) Read(serial, handleID uint64, count int32) ([]byte, *dbus.Error) {
	return []byte("hello"), nil
}

func (fakeBackend) Close(serial, handleID uint64) *dbus.Error {
	return nil
}

type fakeTrackerClient struct {
	info *mount.Info
}

func (f fakeTrackerClient) LookupMount(ctx context.Context, spec *mount.Spec, path string) (*mount.Info, error) {
	return f.info, nil
}

func (f fakeTrackerClient) LookupMountByFusePath(ctx context.Context, path string) (*mount.Info, string, error) {
	return f.info, "", nil
}

// TestRemoteQueryInfoAndReadRoundTrip drives Remote over a real
// in-process peer D-Bus connection (a net.Pipe standing in for the
// Unix socket peer.Listener would normally hand out), exercising the
// Cache -> Manager -> SyncEngine path end to end against a fake
// backend exporting the same method shapes cmd/vfsbackend's Host does.
func TestRemoteQueryInfoAndReadRoundTrip(t *testing.T) {
	clientRaw, serverRaw := net.Pipe()
	guid := dbus.GenerateUUID()

	srv, err := dbus.NewConn(serverRaw, dbus.WithServer(guid))
	require.NoError(t, err)
	require.NoError(t, srv.Export(fakeBackend{}, "/org/vfsfabric/Backend", backendInterface))
	defer srv.Close()

	cli, err := dbus.NewConn(clientRaw)
	require.NoError(t, err)
	require.NoError(t, cli.Auth(nil))
	defer cli.Close()

	info := mount.NewInfo("peer.test", "/org/vfsfabric/Backend", mount.New("fake"))

	cache := mount.NewCache(fakeTrackerClient{info: info})

	mgr := peer.NewManager(nil)
	mgr.Adopt(peer.EndpointID(info.EndpointBusName, info.ObjectPath), peer.NewConn(info.EndpointID(), cli))

	remote := NewRemote(cache, mgr)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	attrs, err := remote.QueryInfo(ctx, info.Spec, "/a/b", "standard::name")
	require.NoError(t, err)
	require.Equal(t, "/a/b", attrs["standard::name"])

	h, err := remote.OpenForRead(ctx, info.Spec, "/a/b")
	require.NoError(t, err)
	data, err := remote.Read(ctx, h, 5)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
	require.NoError(t, remote.Close(ctx, h))
}
