package trash

import (
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vfsfabric/corevfs/vfserr"
)

// RestoreFlags controls Item.Restore's destination-collision behavior.
// Unset bits mean "fail if destination exists", matching
// trash_item_restore's no-fallback move; the bits themselves are an
// open design choice (see DESIGN.md).
type RestoreFlags uint32

const (
	// RestoreOverwrite allows Restore to clobber an existing file at
	// the destination instead of failing with Exists.
	RestoreOverwrite RestoreFlags = 1 << iota
	// RestoreNoFollowSymlinks refuses to restore over a destination
	// path that is itself a symlink, even with RestoreOverwrite set.
	RestoreNoFollowSymlinks
)

const maxExpungeRenameAttempts = 1000

// Delete performs trash_item_delete: relocate the item's files/<name>
// into the sibling expunged/ directory under a random numeric name
// (retrying on collision), drop its .trashinfo sidecar, remove it from
// root, and schedule the now-orphaned expunged subtree for background
// deletion.
func (it *Item) Delete(root *Root) error {
	trashDir := filepath.Dir(filepath.Dir(it.FilesPath))
	expungedDir := filepath.Join(trashDir, "expunged")
	if err := os.MkdirAll(expungedDir, 0o700); err != nil {
		return vfserr.Wrap(vfserr.Failed, err, "trash: create expunged dir")
	}

	dest, err := renameIntoExpunged(it.FilesPath, expungedDir)
	if err != nil {
		return err
	}

	os.Remove(it.InfoPath())
	root.Remove(it.EscapedName)
	Expunge(dest)
	return nil
}

// renameIntoExpunged picks a random 32-bit numeric name inside
// expungedDir and atomically renames src onto it, retrying with a
// fresh name on EEXIST up to maxExpungeRenameAttempts times.
func renameIntoExpunged(src, expungedDir string) (string, error) {
	for i := 0; i < maxExpungeRenameAttempts; i++ {
		name := strconv.FormatUint(uint64(rand.Uint32()), 10)
		dest := filepath.Join(expungedDir, name)
		if err := os.Rename(src, dest); err == nil {
			return dest, nil
		} else if !os.IsExist(err) {
			return "", vfserr.Wrap(vfserr.Failed, err, "trash: rename %s into expunged", src)
		}
	}
	return "", vfserr.New(vfserr.Failed, "trash: exhausted %d expunge name attempts for %s",
		maxExpungeRenameAttempts, src)
}

// Restore performs trash_item_restore: move files/<name> to dest with
// no fallback, honoring flags' collision policy, then on success drop
// the .trashinfo sidecar and remove the item from root.
func (it *Item) Restore(root *Root, dest string, flags RestoreFlags) error {
	if fi, err := os.Lstat(dest); err == nil {
		if flags&RestoreNoFollowSymlinks != 0 && fi.Mode()&os.ModeSymlink != 0 {
			return vfserr.New(vfserr.Exists, "trash: restore destination %s is a symlink", dest)
		}
		if flags&RestoreOverwrite == 0 {
			return vfserr.New(vfserr.Exists, "trash: restore destination %s exists", dest)
		}
		if err := os.Remove(dest); err != nil {
			return vfserr.Wrap(vfserr.Failed, err, "trash: clear restore destination %s", dest)
		}
	}

	if err := os.Rename(it.FilesPath, dest); err != nil {
		return vfserr.Wrap(vfserr.Failed, err, "trash: restore %s to %s", it.FilesPath, dest)
	}

	os.Remove(it.InfoPath())
	root.Remove(it.EscapedName)
	return nil
}

// Trash moves srcPath (an absolute original-location path) into
// trashDir's files/ subdirectory and writes its .trashinfo sidecar,
// the counterpart operation backend/local's Trash vtable method
// drives for ordinary delete-to-trash requests.
func Trash(srcPath, trashDir string, isHomedir bool, topdir string) (string, error) {
	filesDir := filepath.Join(trashDir, "files")
	infoDir := filepath.Join(trashDir, "info")
	if err := os.MkdirAll(filesDir, 0o700); err != nil {
		return "", vfserr.Wrap(vfserr.Failed, err, "trash: create files dir")
	}
	if err := os.MkdirAll(infoDir, 0o700); err != nil {
		return "", vfserr.Wrap(vfserr.Failed, err, "trash: create info dir")
	}

	basename := filepath.Base(srcPath)
	dest := uniqueDestination(filesDir, basename)

	if err := os.Rename(srcPath, dest); err != nil {
		return "", vfserr.Wrap(vfserr.Failed, err, "trash: move %s to trash", srcPath)
	}

	infoPath := filepath.Join(infoDir, filepath.Base(dest)+".trashinfo")
	if err := writeTrashInfo(infoPath, srcPath, topdir, isHomedir, time.Now()); err != nil {
		return dest, err
	}
	return dest, nil
}

// uniqueDestination appends " (N)" before the extension until it finds
// a files/ name that doesn't already exist, matching the usual trash
// spec convention of de-duplicating by suffix rather than failing the
// trash operation outright.
func uniqueDestination(filesDir, basename string) string {
	dest := filepath.Join(filesDir, basename)
	if _, err := os.Lstat(dest); os.IsNotExist(err) {
		return dest
	}

	ext := filepath.Ext(basename)
	stem := basename[:len(basename)-len(ext)]
	for n := 2; ; n++ {
		candidate := filepath.Join(filesDir, stem+" ("+strconv.Itoa(n)+")"+ext)
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
