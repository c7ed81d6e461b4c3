package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfsfabric/corevfs/mount"
	"github.com/vfsfabric/corevfs/vfserr"
)

func TestCreateAssignsMonotonicPaths(t *testing.T) {
	s := NewServer(nil, "/org/vfsfabric/backend/1/monitor")
	a := s.Create()
	b := s.Create()
	assert.NotEqual(t, a, b)
	assert.Equal(t, "/org/vfsfabric/backend/1/monitor/1", a)
	assert.Equal(t, "/org/vfsfabric/backend/1/monitor/2", b)
}

func TestEmitAfterDestroyIsRejected(t *testing.T) {
	s := NewServer(nil, "/org/vfsfabric/backend/1/monitor")
	p := s.Create()
	s.Destroy(p)

	err := s.Emit(p, Event{Type: Changed, Path: "/a"})
	require.Error(t, err)
	assert.Equal(t, vfserr.Closed, vfserr.KindOf(err))
}

func TestEmitUnknownPathIsRejected(t *testing.T) {
	s := NewServer(nil, "/prefix")
	err := s.Emit("/prefix/999", Event{Type: Changed, Path: "/a"})
	require.Error(t, err)
}

// TestChangedBodyRoundTripsSpecItemsAndPrefix guards against Emit going
// back to sending only a bare Type string: encoding then decoding a
// Spec with real items and a non-default MountPrefix must reproduce
// both, not a stub Spec.
func TestChangedBodyRoundTripsSpecItemsAndPrefix(t *testing.T) {
	spec := mount.New("sftp")
	spec.Set("host", "example.com")
	spec.Set("user", "alice")
	spec.SetMountPrefix("/remote/sftp")

	ev := Event{Type: Created, Spec: spec, Path: "/a"}

	body := encodeChangedBody(ev)
	require.Len(t, body, 7)

	decoded, ok := decodeChanged(body)
	require.True(t, ok)
	require.NotNil(t, decoded.Spec)
	assert.Equal(t, "sftp", decoded.Spec.Type)
	assert.Equal(t, "/remote/sftp", decoded.Spec.MountPrefix)
	host, ok := decoded.Spec.Get("host")
	require.True(t, ok)
	assert.Equal(t, "example.com", host)
	user, ok := decoded.Spec.Get("user")
	require.True(t, ok)
	assert.Equal(t, "alice", user)
}
