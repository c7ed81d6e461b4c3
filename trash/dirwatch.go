package trash

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DirWatch tracks the existence of one directory D: it installs its
// fsnotify watch on
// D's parent (never on D itself, so the watch survives D's removal),
// fires Create/Destroy as D comes into and goes out of existence, and
// supports an explicit Check for watch policies that don't trust
// notifications alone.
type DirWatch struct {
	directory string
	isTopdir  bool

	mu      sync.Mutex
	present bool

	OnCreate  func()
	OnDestroy func()
	OnCheck   func()
}

// Chain is the three-or-more-deep sequence of DirWatches this system
// describes for monitoring <topdir>/a/b/files/: one DirWatch per path
// segment from topdir down to the leaf, sharing a single fsnotify
// watcher across every distinct parent directory in the chain.
type Chain struct {
	topdir  string
	watcher *fsnotify.Watcher
	nodes   []*DirWatch // ordered topdir -> leaf
	byDir   map[string]*DirWatch

	done chan struct{}
}

// NewChain builds and starts watching the existence chain from topdir
// down through each of segments (e.g. []string{"a", "b", "files"}).
// The topdir DirWatch's Create fires immediately, matching "[t]opdir
// DirWatches are always present".
func NewChain(topdir string, segments []string) (*Chain, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	c := &Chain{
		topdir:  topdir,
		watcher: watcher,
		byDir:   make(map[string]*DirWatch),
		done:    make(chan struct{}),
	}

	top := &DirWatch{directory: topdir, isTopdir: true, present: true}
	c.nodes = append(c.nodes, top)
	c.byDir[topdir] = top

	dir := topdir
	for _, seg := range segments {
		dir = filepath.Join(dir, seg)
		dw := &DirWatch{directory: dir}
		c.nodes = append(c.nodes, dw)
		c.byDir[dir] = dw
	}

	// Install a parent watch for every node except the topdir, whose
	// existence is assumed rather than monitored.
	watchedParents := make(map[string]bool)
	for _, dw := range c.nodes[1:] {
		parent := filepath.Dir(dw.directory)
		if !watchedParents[parent] {
			if err := watcher.Add(parent); err != nil {
				watcher.Close()
				return nil, err
			}
			watchedParents[parent] = true
		}
	}

	go c.run()

	return c, nil
}

// CatchUp runs the initial reconciling Check pass over every node below
// topdir, root to leaf so each level's parent state is current before
// its child is evaluated. Callers must finish wiring every node's
// OnCreate/OnDestroy/OnCheck before calling this: Check fires those
// callbacks synchronously, so calling it first would silently miss any
// chain member that already existed at construction time.
func (c *Chain) CatchUp() {
	for _, dw := range c.nodes[1:] {
		dw.Check()
	}
}

// Leaf returns the DirWatch for the deepest segment (the actual trash
// files/ directory this chain was built to monitor).
func (c *Chain) Leaf() *DirWatch {
	return c.nodes[len(c.nodes)-1]
}

// Close stops the chain's fsnotify watcher.
func (c *Chain) Close() error {
	close(c.done)
	return c.watcher.Close()
}

func (c *Chain) run() {
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			c.handle(ev)
		case <-c.watcher.Errors:
			// A watcher-level error (e.g. the parent itself vanished)
			// doesn't identify a specific child; the next explicit Check
			// call will reconcile state.
		}
	}
}

func (c *Chain) handle(ev fsnotify.Event) {
	dw, ok := c.byDir[ev.Name]
	if !ok {
		return
	}
	switch {
	case ev.Op&fsnotify.Create != 0:
		dw.onCreated()
	case ev.Op&fsnotify.Remove != 0 || ev.Op&fsnotify.Rename != 0:
		dw.onDeleted()
	}
}

// onCreated handles a Created event whose child is this DirWatch's
// directory: lstat it, and if it is a real directory, fire Create and
// transition to present.
func (dw *DirWatch) onCreated() {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.present {
		return
	}
	if dirExists(dw.directory) {
		dw.present = true
		if dw.OnCreate != nil {
			dw.OnCreate()
		}
	}
}

// onDeleted handles a Deleted event whose child is this DirWatch's
// directory: fire Destroy iff it was previously present.
func (dw *DirWatch) onDeleted() {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if !dw.present {
		return
	}
	dw.present = false
	if dw.OnDestroy != nil {
		dw.OnDestroy()
	}
}

// Check lstats the directory explicitly (for NoWatch/Watch policies
// that periodically reconcile rather than trust notifications), firing
// Create, Destroy, or Check according to the previous state.
func (dw *DirWatch) Check() {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	exists := dirExists(dw.directory)
	switch {
	case dw.present && exists:
		if dw.OnCheck != nil {
			dw.OnCheck()
		}
	case !dw.present && exists:
		dw.present = true
		if dw.OnCreate != nil {
			dw.OnCreate()
		}
	case dw.present && !exists:
		dw.present = false
		if dw.OnDestroy != nil {
			dw.OnDestroy()
		}
	}
}

// Present reports whether the directory is currently believed to
// exist.
func (dw *DirWatch) Present() bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return dw.present
}

// dirExists reports whether path is a real directory (not a symlink),
// mirroring dir_exists()'s lstat-based check in the original.
func dirExists(path string) bool {
	fi, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return fi.IsDir()
}
