package trash

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// rescanInterval is the periodic-rescan cadence for Watch-policy
// sources, compensating for remote changes notifications can't see.
const rescanInterval = 30 * time.Second

// Source is one contributor to the aggregated trash:// view: either
// the homedir trash, or a <topdir>/.Trash(-<uid>)?/ variant on another
// mounted filesystem.
type Source struct {
	Topdir    string
	TrashDir  string // .../Trash/<uid> or .../.Trash-<uid>, peer of files/info/expunged
	IsHomedir bool
	Policy    Policy

	chain *Chain
	dir   *Dir

	stop chan struct{}
}

// HomedirTrashDir returns the fixed per-spec location of the homedir
// trash, "~/.local/share/Trash".
func HomedirTrashDir(home string) string {
	return filepath.Join(home, ".local", "share", "Trash")
}

// TopdirTrashCandidates returns the two layouts this allows for
// a non-homedir mount: "<topdir>/.Trash/<uid>" and
// "<topdir>/.Trash-<uid>".
func TopdirTrashCandidates(topdir string, uid int) []string {
	u := strconv.Itoa(uid)
	return []string{
		filepath.Join(topdir, ".Trash", u),
		filepath.Join(topdir, ".Trash-"+u),
	}
}

// NewSource builds a Source over trashDir's files/ subdirectory
// (which need not exist yet; NewSource does not create it) and wires
// its existence Chain to a reconciling Dir feeding root.
func NewSource(root *Root, topdir, trashDir string, isHomedir bool, policy Policy, log *logrus.Entry) (*Source, error) {
	filesDir := filepath.Join(trashDir, "files")

	rel, err := filepath.Rel(topdir, filesDir)
	if err != nil {
		return nil, err
	}
	segments := splitPath(rel)

	s := &Source{Topdir: topdir, TrashDir: trashDir, IsHomedir: isHomedir, Policy: policy}
	s.dir = NewDir(root, filesDir, isHomedir, topdir, log)

	chain, err := NewChain(topdir, segments)
	if err != nil {
		return nil, err
	}
	s.chain = chain

	leaf := chain.Leaf()
	leaf.OnCreate = s.dir.OnCreate
	leaf.OnDestroy = s.dir.OnDestroy
	leaf.OnCheck = s.dir.OnCheck

	// Only now that the leaf's callbacks are wired is it safe to run the
	// chain's catch-up Check pass: it fires OnCreate synchronously for
	// any node (including the leaf) that already existed at
	// construction time, which for a mount that has ever had anything
	// trashed on it is the common case, not the exception.
	chain.CatchUp()

	if policy == Watch {
		s.stop = make(chan struct{})
		go s.rescanLoop()
	}

	return s, nil
}

func (s *Source) rescanLoop() {
	ticker := time.NewTicker(rescanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.chain.Leaf().Check()
		}
	}
}

// Close stops the source's watchers.
func (s *Source) Close() error {
	if s.stop != nil {
		close(s.stop)
	}
	return s.chain.Close()
}

func splitPath(rel string) []string {
	if rel == "." || rel == "" {
		return nil
	}
	var out []string
	for _, seg := range strings.Split(rel, string(filepath.Separator)) {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
