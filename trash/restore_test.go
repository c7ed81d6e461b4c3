package trash

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfsfabric/corevfs/vfserr"
)

func newTrashedItem(t *testing.T, trashDir, basename, content string) *Item {
	t.Helper()
	filesDir := filepath.Join(trashDir, "files")
	infoDir := filepath.Join(trashDir, "info")
	require.NoError(t, os.MkdirAll(filesDir, 0o700))
	require.NoError(t, os.MkdirAll(infoDir, 0o700))

	filesPath := filepath.Join(filesDir, basename)
	require.NoError(t, os.WriteFile(filesPath, []byte(content), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(infoDir, basename+".trashinfo"), []byte(
		"[Trash Info]\nPath=/orig/"+basename+"\nDeletionDate=2026-01-01T00:00:00\n"), 0o644))

	return newItem(filesPath, true, int64(len(content)), trashDir)
}

func TestDeleteMovesIntoExpungedAndRemovesFromRoot(t *testing.T) {
	trashDir := t.TempDir()
	root := NewRoot()
	item := newTrashedItem(t, trashDir, "a.txt", "hello")
	root.Add(item)

	require.NoError(t, item.Delete(root))

	_, ok := root.Lookup(item.EscapedName)
	assert.False(t, ok)
	_, err := os.Stat(item.FilesPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(item.InfoPath())
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(filepath.Join(trashDir, "expunged"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRestoreFailsWhenDestinationExistsWithoutOverwrite(t *testing.T) {
	trashDir := t.TempDir()
	destDir := t.TempDir()
	root := NewRoot()
	item := newTrashedItem(t, trashDir, "a.txt", "hello")
	root.Add(item)

	dest := filepath.Join(destDir, "a.txt")
	require.NoError(t, os.WriteFile(dest, []byte("existing"), 0o644))

	err := item.Restore(root, dest, 0)
	require.Error(t, err)
	assert.Equal(t, vfserr.Exists, vfserr.KindOf(err))
}

func TestRestoreOverwriteAllowsClobberAndRemovesFromRoot(t *testing.T) {
	trashDir := t.TempDir()
	destDir := t.TempDir()
	root := NewRoot()
	item := newTrashedItem(t, trashDir, "a.txt", "hello")
	root.Add(item)

	dest := filepath.Join(destDir, "a.txt")
	require.NoError(t, os.WriteFile(dest, []byte("existing"), 0o644))

	require.NoError(t, item.Restore(root, dest, RestoreOverwrite))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, ok := root.Lookup(item.EscapedName)
	assert.False(t, ok)
}

func TestTrashMovesFileAndWritesSidecar(t *testing.T) {
	topdir := t.TempDir()
	trashDir := filepath.Join(topdir, ".Trash-1000")
	src := filepath.Join(topdir, "doc.txt")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	dest, err := Trash(src, trashDir, false, topdir)
	require.NoError(t, err)

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	infoPath := filepath.Join(trashDir, "info", filepath.Base(dest)+".trashinfo")
	_, err = os.Stat(infoPath)
	require.NoError(t, err)
}

func TestTrashDeduplicatesNameCollision(t *testing.T) {
	topdir := t.TempDir()
	trashDir := filepath.Join(topdir, ".Trash-1000")

	src1 := filepath.Join(topdir, "doc.txt")
	require.NoError(t, os.WriteFile(src1, []byte("one"), 0o644))
	dest1, err := Trash(src1, trashDir, false, topdir)
	require.NoError(t, err)

	src2 := filepath.Join(topdir, "doc.txt")
	require.NoError(t, os.WriteFile(src2, []byte("two"), 0o644))
	dest2, err := Trash(src2, trashDir, false, topdir)
	require.NoError(t, err)

	assert.NotEqual(t, dest1, dest2)
}
