package trash

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeNameHomedirPlain(t *testing.T) {
	assert.Equal(t, "foo.txt", escapeName("foo.txt", "/home/u/.local/share/Trash/files/foo.txt", true))
}

func TestEscapeNameHomedirLeadingBackslashEscaped(t *testing.T) {
	name := escapeName(`\weird`, "/anything", true)
	assert.Equal(t, "`\\weird", name)
}

func TestEscapeNameHomedirLeadingBacktickEscaped(t *testing.T) {
	name := escapeName("`tick", "/anything", true)
	assert.Equal(t, "``tick", name)
}

func TestEscapeNameNonHomedirUsesFullPath(t *testing.T) {
	name := escapeName("foo.txt", "/mnt/disk/.Trash/1000/files/foo.txt", false)
	assert.Equal(t, `\mnt\disk\.Trash\1000\files\foo.txt`, name)
	assert.True(t, name[0] == escapeSlash)
}

func TestEscapeNameNonHomedirEscapesBackslashAndBacktick(t *testing.T) {
	name := escapeName("x", "/a/b`c\\d", false)
	assert.Equal(t, "\\a\\b``c`\\d", name)
}

func TestNewItemReadsTrashInfo(t *testing.T) {
	dir := t.TempDir()
	filesDir := filepath.Join(dir, "files")
	infoDir := filepath.Join(dir, "info")
	require.NoError(t, os.MkdirAll(filesDir, 0o700))
	require.NoError(t, os.MkdirAll(infoDir, 0o700))

	filesPath := filepath.Join(filesDir, "doc.txt")
	require.NoError(t, os.WriteFile(filesPath, []byte("hello"), 0o644))

	when := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	require.NoError(t, writeTrashInfo(filepath.Join(infoDir, "doc.txt.trashinfo"), "/home/u/doc.txt", dir, true, when))

	item := newItem(filesPath, true, 5, dir)
	assert.Equal(t, "doc.txt", item.EscapedName)
	assert.Equal(t, "/home/u/doc.txt", item.OriginalPath)
	require.True(t, item.HasDate)
	assert.Equal(t, when, item.DeletionDate)
}

func TestNewItemMissingTrashInfoIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	filesPath := filepath.Join(dir, "files", "doc.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(filesPath), 0o700))
	require.NoError(t, os.WriteFile(filesPath, nil, 0o644))

	item := newItem(filesPath, true, 0, dir)
	assert.Empty(t, item.OriginalPath)
	assert.False(t, item.HasDate)
}

func TestWriteTrashInfoRelativePathForNonHomedir(t *testing.T) {
	topdir := t.TempDir()
	trashDir := filepath.Join(topdir, ".Trash", "1000")
	infoDir := filepath.Join(trashDir, "info")
	require.NoError(t, os.MkdirAll(infoDir, 0o700))

	original := filepath.Join(topdir, "sub", "doc.txt")
	infoPath := filepath.Join(infoDir, "doc.txt.trashinfo")
	require.NoError(t, writeTrashInfo(infoPath, original, topdir, false, time.Now()))

	it := &Item{FilesPath: filepath.Join(trashDir, "files", "doc.txt"), Topdir: topdir}
	readTrashInfo(it)
	assert.Equal(t, original, it.OriginalPath)
}
