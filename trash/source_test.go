package trash

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewSourcePicksUpFilesThatAlreadyExist covers the common restart
// case: a topdir whose files/ directory was created and populated by an
// earlier process (NewSource's caller is never the first thing to ever
// write into files/) must show up in Root as soon as the Source is
// constructed, not only after something changes afterward.
func TestNewSourcePicksUpFilesThatAlreadyExist(t *testing.T) {
	topdir := t.TempDir()
	trashDir := filepath.Join(topdir, ".Trash-1000")
	filesDir := filepath.Join(trashDir, "files")
	infoDir := filepath.Join(trashDir, "info")
	require.NoError(t, os.MkdirAll(filesDir, 0o700))
	require.NoError(t, os.MkdirAll(infoDir, 0o700))

	require.NoError(t, os.WriteFile(filepath.Join(filesDir, "leftover.txt"), []byte("x"), 0o600))

	root := NewRoot()
	src, err := NewSource(root, topdir, trashDir, false, Trusted, nil)
	require.NoError(t, err)
	defer src.Close()

	items := root.List()
	require.Len(t, items, 1)
	assert.Equal(t, "leftover.txt", items[0].EscapedName)
}

// TestNewSourceOnEmptyFilesDirStartsEmpty guards the other half of the
// same path: a files/ directory that exists but is empty must not
// spuriously populate Root.
func TestNewSourceOnEmptyFilesDirStartsEmpty(t *testing.T) {
	topdir := t.TempDir()
	trashDir := filepath.Join(topdir, ".Trash-1000")
	require.NoError(t, os.MkdirAll(filepath.Join(trashDir, "files"), 0o700))

	root := NewRoot()
	src, err := NewSource(root, topdir, trashDir, false, Trusted, nil)
	require.NoError(t, err)
	defer src.Close()

	assert.Empty(t, root.List())
}

// TestNewSourceOnMissingFilesDirStartsEmpty covers the case files/
// doesn't exist yet (only trashDir itself does, the contract every
// caller — NewAggregator and Rescan — already upholds before calling
// NewSource): Source must not fail and must start with an empty Root
// until the chain observes files/'s creation.
func TestNewSourceOnMissingFilesDirStartsEmpty(t *testing.T) {
	topdir := t.TempDir()
	trashDir := filepath.Join(topdir, ".Trash-1000")
	require.NoError(t, os.MkdirAll(trashDir, 0o700))

	root := NewRoot()
	src, err := NewSource(root, topdir, trashDir, false, Trusted, nil)
	require.NoError(t, err)
	defer src.Close()

	assert.Empty(t, root.List())
	assert.False(t, src.chain.Leaf().Present())
}
