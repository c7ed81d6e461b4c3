package trash

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/fsnotify/fsnotify"

	"github.com/sirupsen/logrus"
)

// Dir is one trash source's files/ directory: it reconciles its
// contents into a shared Root, either via a rescan-and-diff (Reconcile)
// or by applying individually delivered fsnotify events directly.
//
// Dir owns the existence Chain that decides when files/ comes into and
// goes out of existence (Created/Deleted of the directory itself) and,
// once present, a direct fsnotify watch on the directory's own
// contents (Created/Deleted of files inside it), matching trashdir.c's
// split between the DirWatch-driven lifecycle and the plain
// GFileMonitor on the directory once it exists.
type Dir struct {
	root      *Root
	directory string
	isHomedir bool
	topdir    string
	log       *logrus.Entry

	children []string // sorted basenames last seen present

	watcher *fsnotify.Watcher // watches directory's own contents, nil when absent
	done    chan struct{}

	warnedUnsupported bool
}

// NewDir returns a Dir that will reconcile directory's contents into
// root, tagging every item with isHomedir and resolving relative
// .trashinfo Path= values against topdir.
func NewDir(root *Root, directory string, isHomedir bool, topdir string, log *logrus.Entry) *Dir {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dir{root: root, directory: directory, isHomedir: isHomedir, topdir: topdir, log: log}
}

// OnCreate is wired to the leaf DirWatch's OnCreate: the directory now
// exists, so start watching its contents directly and enumerate it.
func (d *Dir) OnCreate() {
	if d.watcher != nil {
		return
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		d.log.WithError(err).Warn("trash: failed to watch trash directory contents")
		return
	}
	if err := w.Add(d.directory); err != nil {
		d.log.WithError(err).Warn("trash: failed to add trash directory watch")
		w.Close()
		return
	}
	d.watcher = w
	d.done = make(chan struct{})
	go d.run()
	d.Reconcile()
}

// OnDestroy is wired to the leaf DirWatch's OnDestroy: the directory no
// longer exists, so stop watching it and empty it out of Root.
func (d *Dir) OnDestroy() {
	d.stopWatcher()
	d.setChildren(nil)
}

// OnCheck is wired to the leaf DirWatch's OnCheck (directory still
// present, but a rescan was requested e.g. for a Watch-policy source).
func (d *Dir) OnCheck() {
	d.Reconcile()
}

func (d *Dir) stopWatcher() {
	if d.watcher == nil {
		return
	}
	close(d.done)
	d.watcher.Close()
	d.watcher = nil
}

func (d *Dir) run() {
	for {
		select {
		case <-d.done:
			return
		case ev, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			d.handleEvent(ev)
		case <-d.watcher.Errors:
		}
	}
}

func (d *Dir) handleEvent(ev fsnotify.Event) {
	oldSize := d.root.Size()
	switch {
	case ev.Op&fsnotify.Create != 0:
		item := newItem(ev.Name, d.isHomedir, fileSize(ev.Name), d.topdir)
		d.root.Add(item)
		d.insertChild(filepath.Base(ev.Name))
	case ev.Op&fsnotify.Remove != 0 || ev.Op&fsnotify.Rename != 0:
		name := escapeName(filepath.Base(ev.Name), ev.Name, d.isHomedir)
		d.root.Remove(name)
		d.removeChild(filepath.Base(ev.Name))
	default:
		if !d.warnedUnsupported {
			d.warnedUnsupported = true
			d.log.Warn("trash: unsupported operation detected on trash directory; " +
				"a files/ directory should only see links and unlinks")
		}
	}
	d.root.Thaw(oldSize)
}

// Reconcile enumerates the directory, sorts by basename, and diffs
// against the previously seen children: insertions call Root.Add,
// deletions call Root.Remove, matches are no-ops. This is
// trash_dir_set_files's merge-of-two-sorted-lists, run whenever the
// directory is (re)discovered or a Watch-policy source is rescanned.
func (d *Dir) Reconcile() {
	entries, err := os.ReadDir(d.directory)
	if err != nil {
		d.setChildren(nil)
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	d.setChildren(names)
}

// setChildren diffs names (already sorted) against d.children and
// applies the delta to Root, then replaces d.children.
func (d *Dir) setChildren(names []string) {
	oldSize := d.root.Size()

	i, j := 0, 0
	for i < len(names) || j < len(d.children) {
		switch {
		case j >= len(d.children) || (i < len(names) && names[i] < d.children[j]):
			full := filepath.Join(d.directory, names[i])
			d.root.Add(newItem(full, d.isHomedir, fileSize(full), d.topdir))
			i++
		case i >= len(names) || names[i] > d.children[j]:
			full := filepath.Join(d.directory, d.children[j])
			d.root.Remove(escapeName(d.children[j], full, d.isHomedir))
			j++
		default:
			i++
			j++
		}
	}

	d.children = names
	d.root.Thaw(oldSize)
}

func (d *Dir) insertChild(name string) {
	i := sort.SearchStrings(d.children, name)
	if i < len(d.children) && d.children[i] == name {
		return
	}
	d.children = append(d.children, "")
	copy(d.children[i+1:], d.children[i:])
	d.children[i] = name
}

func (d *Dir) removeChild(name string) {
	i := sort.SearchStrings(d.children, name)
	if i >= len(d.children) || d.children[i] != name {
		return
	}
	d.children = append(d.children[:i], d.children[i+1:]...)
}

func fileSize(path string) int64 {
	fi, err := os.Lstat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
