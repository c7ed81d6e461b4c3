// Package local implements the reference filesystem backend: it serves
// an aggregated Backend vtable (backend.Backend) directly off the local
// disk, adapted from rclone's local disk backend but targeting the
// peer method table instead of fs.Fs.
package local

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/vfsfabric/corevfs/backend"
	"github.com/vfsfabric/corevfs/monitor"
	"github.com/vfsfabric/corevfs/mount"
	"github.com/vfsfabric/corevfs/vfserr"
)

func init() {
	backend.Register("local", NewBackend)
}

// Backend serves one mounted directory tree off the local filesystem.
// Its handle type is *os.File directly — callers never need to look
// handles up by id, so there is no map to guard with a mutex.
type Backend struct {
	root string

	monitors *monitor.Server
}

// SetMonitorServer wires s in for CreateDirMonitor/CreateFileMonitor.
// The host process calls this after construction, once it has a peer
// bus connection to assign monitor object paths on; a Backend built
// without one simply reports CreateDirMonitor/CreateFileMonitor as
// unsupported.
func (b *Backend) SetMonitorServer(s *monitor.Server) {
	b.monitors = s
}

// NewBackend resolves spec's "path" item to an absolute root and
// returns a Backend rooted there. This is the Constructor the registry
// calls for mount specs of type "local".
func NewBackend(spec *mount.Spec) (backend.Backend, error) {
	root, _ := spec.Get("path")
	if root == "" {
		root = "/"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, vfserr.Wrap(vfserr.InvalidArgument, err, "resolve local backend root %q", root)
	}
	return &Backend{root: abs}, nil
}

func (b *Backend) Name() string { return "local" }

// resolve maps a peer-protocol path (always absolute from the mount's
// point of view) onto a real filesystem path under b.root, refusing to
// let ".." escape the root.
func (b *Backend) resolve(p string) string {
	clean := filepath.Clean("/" + p)
	return filepath.Join(b.root, clean)
}

func (b *Backend) OpenForRead(ctx context.Context, path string) (any, error) {
	f, err := os.Open(b.resolve(path))
	if err != nil {
		return nil, classifyOSErr(err)
	}
	return f, nil
}

func (b *Backend) OpenForWrite(ctx context.Context, path, mode string) (any, error) {
	flags := os.O_WRONLY | os.O_CREATE
	switch mode {
	case "append":
		flags |= os.O_APPEND
	case "replace":
		flags |= os.O_TRUNC
	default:
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(b.resolve(path), flags, 0o666)
	if err != nil {
		return nil, classifyOSErr(err)
	}
	return f, nil
}

func (b *Backend) Read(ctx context.Context, handle any, count int) ([]byte, error) {
	f, err := asFile(handle)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, count)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return nil, classifyOSErr(err)
	}
	return buf[:n], nil
}

func (b *Backend) Write(ctx context.Context, handle any, data []byte) (int, error) {
	f, err := asFile(handle)
	if err != nil {
		return 0, err
	}
	n, err := f.Write(data)
	if err != nil {
		return n, classifyOSErr(err)
	}
	return n, nil
}

func (b *Backend) Seek(ctx context.Context, handle any, offset int64, whence int) (int64, error) {
	f, err := asFile(handle)
	if err != nil {
		return 0, err
	}
	pos, err := f.Seek(offset, whence)
	if err != nil {
		return 0, classifyOSErr(err)
	}
	return pos, nil
}

func (b *Backend) Close(ctx context.Context, handle any) error {
	f, err := asFile(handle)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return classifyOSErr(err)
	}
	return nil
}

func (b *Backend) QueryInfo(ctx context.Context, path, attrs string) (map[string]any, error) {
	fi, err := os.Lstat(b.resolve(path))
	if err != nil {
		return nil, classifyOSErr(err)
	}
	return infoFromFileInfo(path, fi), nil
}

func (b *Backend) QueryFsInfo(ctx context.Context, path, attrs string) (map[string]any, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(b.resolve(path), &stat); err != nil {
		return nil, classifyOSErr(err)
	}
	blockSize := uint64(stat.Bsize)
	return map[string]any{
		"fs.free": stat.Bfree * blockSize,
		"fs.size": stat.Blocks * blockSize,
		"fs.type": "local",
	}, nil
}

func (b *Backend) Enumerate(ctx context.Context, path, attrs string) ([]map[string]any, error) {
	entries, err := os.ReadDir(b.resolve(path))
	if err != nil {
		return nil, classifyOSErr(err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, infoFromFileInfo(e.Name(), fi))
	}
	return out, nil
}

func (b *Backend) SetDisplayName(ctx context.Context, path, displayName string) (string, error) {
	newPath := filepath.Join(filepath.Dir(path), displayName)
	if err := os.Rename(b.resolve(path), b.resolve(newPath)); err != nil {
		return "", classifyOSErr(err)
	}
	return newPath, nil
}

func (b *Backend) Delete(ctx context.Context, path string) error {
	if err := os.Remove(b.resolve(path)); err != nil {
		return classifyOSErr(err)
	}
	return nil
}

// Trash is intentionally unsupported here: moving an item into the
// aggregated trash view is backend/trashd's job, not the local
// filesystem backend's — a real deployment registers both and routes
// trash:// through backend/trashd instead.
func (b *Backend) Trash(ctx context.Context, path string) error {
	return vfserr.New(vfserr.NotSupported, "local backend does not implement Trash directly")
}

func (b *Backend) MakeDirectory(ctx context.Context, path string) error {
	if err := os.Mkdir(b.resolve(path), 0o777); err != nil {
		return classifyOSErr(err)
	}
	return nil
}

func (b *Backend) MakeSymlink(ctx context.Context, path, target string) error {
	if err := os.Symlink(target, b.resolve(path)); err != nil {
		return classifyOSErr(err)
	}
	return nil
}

func (b *Backend) Copy(ctx context.Context, src, dst string, flags int) error {
	in, err := os.Open(b.resolve(src))
	if err != nil {
		return classifyOSErr(err)
	}
	defer in.Close()

	openFlags := os.O_WRONLY | os.O_CREATE
	if flags&CopyOverwrite == 0 {
		openFlags |= os.O_EXCL
	} else {
		openFlags |= os.O_TRUNC
	}
	out, err := os.OpenFile(b.resolve(dst), openFlags, 0o666)
	if err != nil {
		return classifyOSErr(err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return classifyOSErr(err)
	}
	return nil
}

func (b *Backend) Move(ctx context.Context, src, dst string, flags int) error {
	if flags&CopyOverwrite == 0 {
		if _, err := os.Lstat(b.resolve(dst)); err == nil {
			return vfserr.New(vfserr.Exists, "move destination %q exists", dst)
		}
	}
	if err := os.Rename(b.resolve(src), b.resolve(dst)); err != nil {
		return classifyOSErr(err)
	}
	return nil
}

// Push/Pull only make sense for backends fronting a remote store;
// the local backend is already local on both ends, so both degrade to
// Copy.
func (b *Backend) Push(ctx context.Context, localPath, remotePath string, flags int) error {
	return b.Copy(ctx, localPath, remotePath, flags)
}

func (b *Backend) Pull(ctx context.Context, remotePath, localPath string, flags int) error {
	return b.Copy(ctx, remotePath, localPath, flags)
}

func (b *Backend) SetAttribute(ctx context.Context, path, attr string, value any) error {
	switch attr {
	case "unix::mode":
		mode, ok := value.(uint32)
		if !ok {
			return vfserr.New(vfserr.InvalidArgument, "unix::mode expects a uint32")
		}
		if err := os.Chmod(b.resolve(path), os.FileMode(mode)); err != nil {
			return classifyOSErr(err)
		}
		return nil
	case "time::modified":
		mtime, ok := value.(time.Time)
		if !ok {
			return vfserr.New(vfserr.InvalidArgument, "time::modified expects a time.Time")
		}
		if err := os.Chtimes(b.resolve(path), mtime, mtime); err != nil {
			return classifyOSErr(err)
		}
		return nil
	default:
		return vfserr.New(vfserr.NotSupported, "unsettable attribute %q", attr)
	}
}

func (b *Backend) QuerySettableAttributes(ctx context.Context, path string) ([]string, error) {
	return []string{"unix::mode", "time::modified"}, nil
}

func (b *Backend) QueryWritableNamespaces(ctx context.Context, path string) ([]string, error) {
	return []string{"unix", "time"}, nil
}

// CreateDirMonitor/CreateFileMonitor hand off object-path assignment to
// the monitor package; the local backend just forwards the request.
func (b *Backend) CreateDirMonitor(ctx context.Context, path string) (string, error) {
	if b.monitors == nil {
		return "", vfserr.New(vfserr.NotSupported, "no monitor.Server wired into this backend")
	}
	return b.monitors.Create(), nil
}

func (b *Backend) CreateFileMonitor(ctx context.Context, path string) (string, error) {
	if b.monitors == nil {
		return "", vfserr.New(vfserr.NotSupported, "no monitor.Server wired into this backend")
	}
	return b.monitors.Create(), nil
}

// The local backend never represents a mountable (ejectable) device
// itself — those calls are for backends fronting removable media.
func (b *Backend) MountMountable(ctx context.Context, path string) error {
	return vfserr.New(vfserr.NotSupported, "local backend has no mountables")
}
func (b *Backend) UnmountMountable(ctx context.Context, path string, flags int) error {
	return vfserr.New(vfserr.NotSupported, "local backend has no mountables")
}
func (b *Backend) StartMountable(ctx context.Context, path string) error {
	return vfserr.New(vfserr.NotSupported, "local backend has no mountables")
}
func (b *Backend) StopMountable(ctx context.Context, path string, flags int) error {
	return vfserr.New(vfserr.NotSupported, "local backend has no mountables")
}
func (b *Backend) PollMountable(ctx context.Context, path string) error {
	return vfserr.New(vfserr.NotSupported, "local backend has no mountables")
}

func (b *Backend) OpenIconForRead(ctx context.Context, iconID string) (any, error) {
	return nil, vfserr.New(vfserr.NotSupported, "local backend has no themed icons")
}

func (b *Backend) Unmount(ctx context.Context, flags int) error {
	return nil
}

// CopyOverwrite is a Copy/Move flags bit: when unset, Copy/Move must
// fail rather than clobber an existing destination.
const CopyOverwrite = 1 << 0

func asFile(handle any) (*os.File, error) {
	f, ok := handle.(*os.File)
	if !ok {
		return nil, vfserr.New(vfserr.InvalidArgument, "handle is not a local file handle")
	}
	return f, nil
}

func infoFromFileInfo(name string, fi fs.FileInfo) map[string]any {
	info := map[string]any{
		"standard::name":     name,
		"standard::size":     fi.Size(),
		"standard::type":     fileType(fi),
		"time::modified":     fi.ModTime(),
		"unix::mode":         uint32(fi.Mode().Perm()),
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		info["standard::is-symlink"] = true
	}
	return info
}

func fileType(fi fs.FileInfo) string {
	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		return "symbolic-link"
	case fi.IsDir():
		return "directory"
	case fi.Mode().IsRegular():
		return "regular"
	default:
		return "special"
	}
}

// classifyOSErr maps a stdlib os/syscall error to the shared taxonomy,
// the same role rclone's fs/fserrors package plays for rclone
// backends.
func classifyOSErr(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return vfserr.Wrap(vfserr.NotFound, err, "not found")
	case errors.Is(err, fs.ErrExist):
		return vfserr.Wrap(vfserr.Exists, err, "already exists")
	case errors.Is(err, fs.ErrPermission):
		return vfserr.Wrap(vfserr.PermissionDenied, err, "permission denied")
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENOTDIR:
			return vfserr.Wrap(vfserr.NotDirectory, err, "not a directory")
		case syscall.EISDIR:
			return vfserr.Wrap(vfserr.IsDirectory, err, "is a directory")
		case syscall.ENOTEMPTY:
			return vfserr.Wrap(vfserr.NotEmpty, err, "directory not empty")
		case syscall.ENOSPC:
			return vfserr.Wrap(vfserr.NoSpace, err, "no space left")
		case syscall.ENAMETOOLONG:
			return vfserr.Wrap(vfserr.FilenameTooLong, err, "filename too long")
		case syscall.EMLINK:
			return vfserr.Wrap(vfserr.TooManyLinks, err, "too many links")
		case syscall.EROFS:
			return vfserr.Wrap(vfserr.ReadOnly, err, "read-only filesystem")
		case syscall.EBUSY:
			return vfserr.Wrap(vfserr.Busy, err, "resource busy")
		case syscall.EAGAIN:
			return vfserr.Wrap(vfserr.WouldBlock, err, "would block")
		}
	}
	return vfserr.Wrap(vfserr.Failed, err, "local filesystem operation")
}
