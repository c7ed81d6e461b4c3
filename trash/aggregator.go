package trash

import (
	"os"

	"github.com/moby/sys/mountinfo"
	"github.com/sirupsen/logrus"

	"github.com/vfsfabric/corevfs/vfserr"
)

// Aggregator assembles the trash:// view's Root from the homedir
// source plus one source per other eligible mount.
type Aggregator struct {
	Root *Root

	log     *logrus.Entry
	sources []*Source
}

// NewAggregator builds an Aggregator with an empty Root and starts the
// homedir source immediately; call Rescan to pick up other mounts.
func NewAggregator(log *logrus.Entry) (*Aggregator, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	a := &Aggregator{Root: NewRoot(), log: log}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, vfserr.Wrap(vfserr.Failed, err, "trash: resolve home directory")
	}
	trashDir := HomedirTrashDir(home)
	if err := os.MkdirAll(trashDir, 0o700); err != nil {
		return nil, vfserr.Wrap(vfserr.Failed, err, "trash: create homedir trash")
	}

	// "The home trash directory's filesystem not being found in the
	// mount table is treated as Trusted."
	src, err := NewSource(a.Root, home, trashDir, true, Trusted, log)
	if err != nil {
		return nil, err
	}
	a.sources = append(a.sources, src)

	return a, nil
}

// Rescan walks the mount table and starts a Source for every eligible,
// not-already-tracked mount, per its opt-in/opt-out rules.
func (a *Aggregator) Rescan() error {
	mounts, err := mountinfo.GetMounts(nil)
	if err != nil {
		return vfserr.Wrap(vfserr.Failed, err, "trash: enumerate mounts")
	}

	uid := os.Getuid()
	tracked := make(map[string]bool, len(a.sources))
	for _, s := range a.sources {
		tracked[s.TrashDir] = true
	}

	for _, m := range mounts {
		if m.Mountpoint == "/" || m.Mountpoint == "" {
			continue
		}
		if NoTrashOption(m.VFSOptions) {
			continue
		}
		if !HasTrashOption(m.VFSOptions) && !mountUserVisible(m) {
			continue
		}

		policy := PolicyForMount(m.Mountpoint, false)
		if policy == NoWatch {
			continue
		}

		for _, candidate := range TopdirTrashCandidates(m.Mountpoint, uid) {
			if tracked[candidate] {
				continue
			}
			if fi, err := os.Stat(candidate); err != nil || !fi.IsDir() {
				continue
			}

			src, err := NewSource(a.Root, m.Mountpoint, candidate, false, policy, a.log)
			if err != nil {
				a.log.WithError(err).WithField("trashdir", candidate).
					Warn("trash: failed to start source")
				continue
			}
			a.sources = append(a.sources, src)
			tracked[candidate] = true
		}
	}

	return nil
}

// mountUserVisible is a conservative stand-in for GIO's notion of a
// "user visible" mount: real block/network filesystems the current
// user could plausibly have written trash onto, excluding virtual and
// pseudo filesystems.
func mountUserVisible(m *mountinfo.Info) bool {
	switch m.FSType {
	case "proc", "sysfs", "devtmpfs", "devpts", "tmpfs", "cgroup", "cgroup2",
		"overlay", "squashfs", "autofs", "mqueue", "debugfs", "tracefs", "securityfs":
		return false
	}
	return true
}

// Sources returns every currently tracked source, for callers (the
// volume aggregation layer) that surface each trash-bearing mount as a
// volume in its own right.
func (a *Aggregator) Sources() []*Source {
	out := make([]*Source, len(a.sources))
	copy(out, a.sources)
	return out
}

// Close stops every source's watchers.
func (a *Aggregator) Close() {
	for _, s := range a.sources {
		if err := s.Close(); err != nil {
			a.log.WithError(err).Debug("trash: error closing source")
		}
	}
}
