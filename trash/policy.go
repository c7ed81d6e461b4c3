package trash

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/moby/sys/mountinfo"
)

// Policy is a source's watching policy, chosen from
// {Trusted, Watch, NoWatch}.
type Policy int

const (
	// Trusted: change-notification is reliable; only the initial scan
	// plus delivered events matter.
	Trusted Policy = iota
	// Watch: notifications are reliable for local changes only; a
	// periodic rescan compensates for remote-side changes.
	Watch
	// NoWatch: never monitor; rescan only on explicit request.
	NoWatch
)

func (p Policy) String() string {
	switch p {
	case Trusted:
		return "Trusted"
	case Watch:
		return "Watch"
	case NoWatch:
		return "NoWatch"
	default:
		return "Unknown"
	}
}

// remoteFSTypes are watched but not trusted: their notifications only
// cover changes made through this host, so a periodic rescan is needed
// to pick up changes from other clients of the same server.
var remoteFSTypes = map[string]bool{
	"nfs":  true,
	"nfs4": true,
	"cifs": true,
}

// PolicyForMount decides the watching policy for the filesystem backing
// path, Trusted for local filesystems, Watch for
// nfs/nfs4/cifs, NoWatch when path is unreadable. isHomedirTrash
// forces Trusted when the mount table lookup itself fails, matching
// "[t]he home trash directory's filesystem not being found in the
// mount table is treated as Trusted."
func PolicyForMount(path string, isHomedirTrash bool) Policy {
	if !isReadable(path) {
		return NoWatch
	}

	fsType, found := mountFSType(path)
	if !found {
		if isHomedirTrash {
			return Trusted
		}
		return Trusted
	}

	if remoteFSTypes[strings.ToLower(fsType)] {
		return Watch
	}
	return Trusted
}

// mountFSType looks up the filesystem type of the mount that owns
// path, by finding the mount entry with the longest Mountpoint prefix
// of path, consulting github.com/moby/sys/mountinfo.
func mountFSType(path string) (string, bool) {
	mounts, err := mountinfo.GetMounts(nil)
	if err != nil {
		return "", false
	}

	var best *mountinfo.Info
	for _, m := range mounts {
		if !strings.HasPrefix(path, m.Mountpoint) {
			continue
		}
		if best == nil || len(m.Mountpoint) > len(best.Mountpoint) {
			best = m
		}
	}
	if best == nil {
		return "", false
	}
	return best.FSType, true
}

// NoTrashOption reports whether a mount's options opt it out of (or
// into) trash aggregation "x-gvfs-notrash excludes;
// x-gvfs-trash includes a system-internal mount".
func NoTrashOption(vfsOptions string) bool {
	for _, opt := range strings.Split(vfsOptions, ",") {
		if strings.TrimSpace(opt) == "x-gvfs-notrash" {
			return true
		}
	}
	return false
}

// HasTrashOption reports the opt-in counterpart of NoTrashOption.
func HasTrashOption(vfsOptions string) bool {
	for _, opt := range strings.Split(vfsOptions, ",") {
		if strings.TrimSpace(opt) == "x-gvfs-trash" {
			return true
		}
	}
	return false
}

// isReadable reports whether dir can currently be listed, the same
// check that decides whether a source falls back to NoWatch.
func isReadable(dir string) bool {
	f, err := os.Open(dir)
	if err != nil {
		return false
	}
	defer f.Close()
	_, err = f.Readdirnames(1)
	return err == nil || errors.Is(err, io.EOF)
}
