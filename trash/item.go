// Package trash implements the Trash Core (component I): an aggregated
// trash:// view assembled from the homedir trash plus one source per
// other eligible mounted filesystem.
package trash

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/vfsfabric/corevfs/vfserr"
)

const (
	escapeSlash = '\\'
	escapeTick  = '`'
)

// Item is one entry in the aggregated trash view: the escaped name it
// is keyed under, its on-disk location (files/<basename>), whether it
// came from the homedir source, and the metadata recovered from its
// sibling .trashinfo file.
type Item struct {
	EscapedName string
	FilesPath   string // files/<basename>, absolute
	IsHomedir   bool
	// Topdir is the mount point (or home directory) this item's trash
	// dir lives under; relative Path= values in .trashinfo are resolved
	// against it rather than against FilesPath's immediate parent,
	// since the trash dir itself can be one or two levels below Topdir
	// (".Trash-<uid>" vs ".Trash/<uid>").
	Topdir string

	OriginalPath string // decoded Path= value, absolute
	DeletionDate time.Time
	HasDate      bool

	Size int64
}

// InfoPath returns the sibling info/<basename>.trashinfo path for this
// item, derived from FilesPath the same way trashitem.c's
// trash_item_get_trashinfo does: walk up to the trash dir, then back
// down into info/.
func (it *Item) InfoPath() string {
	trashDir := filepath.Dir(filepath.Dir(it.FilesPath))
	return filepath.Join(trashDir, "info", filepath.Base(it.FilesPath)+".trashinfo")
}

// escapeName assigns an item its unique aggregated-view key, per
// this system ("Escaped-name uniqueness"), grounded on
// trash_item_escape_name in trashitem.c:
//
//   - homedir items use their basename; a leading '\' or '`' is
//     prefixed with a '`' so homedir names never start with '\'.
//   - everything else uses the absolute path with every '/' turned
//     into '\', every pre-existing '\' escaped to "`\" and every '`'
//     escaped to "``", so non-homedir names always start with '\'.
func escapeName(basename, absPath string, isHomedir bool) string {
	if isHomedir {
		if len(basename) > 0 && (basename[0] == escapeSlash || basename[0] == escapeTick) {
			return string(escapeTick) + basename
		}
		return basename
	}

	var b strings.Builder
	b.Grow(len(absPath) + 8)
	for _, r := range absPath {
		switch r {
		case escapeSlash, escapeTick:
			b.WriteRune(escapeTick)
			b.WriteRune(r)
		case '/':
			b.WriteRune(escapeSlash)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// newItem builds an Item for filesPath, computing its escaped name and
// reading its .trashinfo sidecar if present. A missing or unparsable
// .trashinfo is not an error: the item is still tracked, just without
// original-path/date metadata (mirrors trash_item_get_trashinfo
// swallowing a load failure).
func newItem(filesPath string, isHomedir bool, size int64, topdir string) *Item {
	basename := filepath.Base(filesPath)
	it := &Item{
		FilesPath:   filesPath,
		IsHomedir:   isHomedir,
		Topdir:      topdir,
		EscapedName: escapeName(basename, filesPath, isHomedir),
		Size:        size,
	}
	readTrashInfo(it)
	return it
}

// readTrashInfo loads it.InfoPath() into it.OriginalPath/DeletionDate,
// decoding the URI-escaped Path= value the way g_uri_unescape_string
// does in the original. A relative Path= is resolved against it.Topdir.
func readTrashInfo(it *Item) {
	cfg, err := ini.Load(it.InfoPath())
	if err != nil {
		return
	}
	section := cfg.Section("Trash Info")

	if raw := section.Key("Path").String(); raw != "" {
		if decoded, err := url.PathUnescape(raw); err == nil {
			if path.IsAbs(decoded) {
				it.OriginalPath = decoded
			} else if it.Topdir != "" {
				it.OriginalPath = filepath.Join(it.Topdir, decoded)
			}
		}
	}

	if raw := section.Key("DeletionDate").String(); raw != "" {
		if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
			it.DeletionDate = t
			it.HasDate = true
		}
	}
}

// writeTrashInfo creates the .trashinfo sidecar for a freshly trashed
// file, matching the on-disk layout this describes: a
// "[Trash Info]" key-file group with a URI-escaped Path (relative to
// topdir when the item isn't in the homedir trash) and an ISO-8601
// DeletionDate.
func writeTrashInfo(infoPath, originalPath, topdir string, isHomedir bool, when time.Time) error {
	cfg := ini.Empty()
	section, err := cfg.NewSection("Trash Info")
	if err != nil {
		return vfserr.Wrap(vfserr.Failed, err, "trash: create trashinfo section")
	}

	pathValue := originalPath
	if !isHomedir {
		if rel, err := filepath.Rel(topdir, originalPath); err == nil && !strings.HasPrefix(rel, "..") {
			pathValue = rel
		}
	}
	section.Key("Path").SetValue(url.PathEscape(pathValue))
	section.Key("DeletionDate").SetValue(when.Format("2006-01-02T15:04:05"))

	if err := cfg.SaveTo(infoPath); err != nil {
		return vfserr.Wrap(vfserr.Failed, err, "trash: write %s", infoPath)
	}
	return nil
}

func init() {
	// url.PathEscape escapes '/' as %2F, which is what the key-file Path
	// value needs for a relative path containing separators; guard that
	// assumption stays true across the one import we lean on it for.
	if escaped := url.PathEscape("a/b"); escaped != "a%2Fb" {
		panic(fmt.Sprintf("trash: unexpected url.PathEscape behavior: %q", escaped))
	}
}
