package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfsfabric/corevfs/mount"
	"github.com/vfsfabric/corevfs/vfserr"
)

func newTestBackend(t *testing.T) (*Backend, string) {
	t.Helper()
	dir := t.TempDir()
	spec := mount.New("local")
	spec.Set("path", dir)
	b, err := NewBackend(spec)
	require.NoError(t, err)
	return b.(*Backend), dir
}

func TestWriteReadRoundTrip(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	h, err := b.OpenForWrite(ctx, "/a.txt", "replace")
	require.NoError(t, err)
	n, err := b.Write(ctx, h, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, b.Close(ctx, h))

	rh, err := b.OpenForRead(ctx, "/a.txt")
	require.NoError(t, err)
	data, err := b.Read(ctx, rh, 1024)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	require.NoError(t, b.Close(ctx, rh))
}

func TestQueryInfoNotFound(t *testing.T) {
	b, _ := newTestBackend(t)
	_, err := b.QueryInfo(context.Background(), "/missing", "*")
	require.Error(t, err)
	assert.Equal(t, vfserr.NotFound, vfserr.KindOf(err))
}

func TestEnumerateIsSortedByName(t *testing.T) {
	b, dir := newTestBackend(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644))

	entries, err := b.Enumerate(context.Background(), "/", "*")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[0]["standard::name"])
	assert.Equal(t, "b.txt", entries[1]["standard::name"])
}

func TestMoveRefusesOverwriteWithoutFlag(t *testing.T) {
	b, dir := newTestBackend(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dst.txt"), []byte("y"), 0o644))

	err := b.Move(context.Background(), "/src.txt", "/dst.txt", 0)
	require.Error(t, err)
	assert.Equal(t, vfserr.Exists, vfserr.KindOf(err))
}

func TestMoveOverwriteFlagAllowsClobber(t *testing.T) {
	b, dir := newTestBackend(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dst.txt"), []byte("y"), 0o644))

	err := b.Move(context.Background(), "/src.txt", "/dst.txt", CopyOverwrite)
	require.NoError(t, err)
}

func TestResolveRefusesEscapeFromRoot(t *testing.T) {
	b, dir := newTestBackend(t)
	assert.Equal(t, filepath.Join(dir, "etc"), b.resolve("/../../etc"))
}
