package mount

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTracker is a TrackerClient that counts how many times each
// method was actually invoked, so tests can assert on dedup behaviour.
type mockTracker struct {
	mu      sync.Mutex
	calls   int32
	infoFor func(path string) *Info
}

func (m *mockTracker) LookupMount(ctx context.Context, spec *Spec, path string) (*Info, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.infoFor(path), nil
}

func (m *mockTracker) LookupMountByFusePath(ctx context.Context, path string) (*Info, string, error) {
	atomic.AddInt32(&m.calls, 1)
	info := m.infoFor(path)
	return info, "remainder", nil
}

func TestLookupSyncCachesResult(t *testing.T) {
	spec := New("sftp")
	spec.Set("host", "h")

	tr := &mockTracker{infoFor: func(path string) *Info {
		return NewInfo("org.vfsfabric.Backend.1", "/org/vfsfabric/backend/1", spec)
	}}
	c := NewCache(tr)

	assert.Equal(t, 0, c.Entries())

	info, err := c.LookupSync(context.Background(), spec, "/home/alice")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, 1, c.Entries())
	assert.EqualValues(t, 1, tr.calls)

	info2, err := c.LookupSync(context.Background(), spec, "/home/alice")
	require.NoError(t, err)
	assert.Same(t, info, info2)
	assert.EqualValues(t, 1, tr.calls, "second lookup must be served from cache")
}

func TestLookupSyncDedupsConcurrentMisses(t *testing.T) {
	spec := New("sftp")
	tr := &mockTracker{infoFor: func(path string) *Info {
		return NewInfo("org.vfsfabric.Backend.1", "/org/vfsfabric/backend/1", spec)
	}}
	c := NewCache(tr)

	const n = 20
	var wg sync.WaitGroup
	results := make([]*Info, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			info, err := c.LookupSync(context.Background(), spec, "/same/path")
			require.NoError(t, err)
			results[i] = info
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i])
	}
	assert.EqualValues(t, 1, tr.calls, "racing lookups for the same key issue exactly one RPC")
}

func TestInvalidateRemovesAllEntriesForEndpoint(t *testing.T) {
	specA := New("sftp")
	specA.Set("host", "a")
	specB := New("sftp")
	specB.Set("host", "b")

	info := NewInfo("org.vfsfabric.Backend.1", "/org/vfsfabric/backend/1", specA)
	tr := &mockTracker{infoFor: func(path string) *Info { return info }}
	c := NewCache(tr)

	_, err := c.LookupSync(context.Background(), specA, "/p1")
	require.NoError(t, err)
	_, err = c.LookupSync(context.Background(), specB, "/p2")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Entries())

	c.Invalidate(info.EndpointID())
	assert.Equal(t, 0, c.Entries())
}

func TestLookupByFusePathLongestPrefixWins(t *testing.T) {
	spec := New("fuse")
	tr := &mockTracker{infoFor: func(path string) *Info { return nil }}
	c := NewCache(tr)

	shallow := NewInfo("org.vfsfabric.Backend.1", "/b/1", spec)
	shallow.FuseMountpoint = "/run/user/1000/gvfs"
	deep := NewInfo("org.vfsfabric.Backend.2", "/b/2", spec)
	deep.FuseMountpoint = "/run/user/1000/gvfs/sftp-host"

	c.mu.Lock()
	c.install(keyFor(spec, shallow.FuseMountpoint), shallow)
	c.install(keyFor(spec, deep.FuseMountpoint), deep)
	c.mu.Unlock()

	got, remainder, err := c.LookupByFusePath(context.Background(), "/run/user/1000/gvfs/sftp-host/docs/file.txt")
	require.NoError(t, err)
	assert.Same(t, deep, got)
	assert.Equal(t, "docs/file.txt", remainder)
}
