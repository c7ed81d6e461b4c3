// Package trashd serves the aggregated trash:// view (component I) as
// a backend.Backend, so an ordinary peer connection can Enumerate,
// QueryInfo, OpenForRead and Delete/restore trashed items the same way
// any other mounted path works, instead of needing a bespoke client
// protocol just for the trash can.
package trashd

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vfsfabric/corevfs/backend"
	"github.com/vfsfabric/corevfs/monitor"
	"github.com/vfsfabric/corevfs/mount"
	"github.com/vfsfabric/corevfs/trash"
	"github.com/vfsfabric/corevfs/vfserr"
)

func init() {
	backend.Register("trash", NewBackend)
}

// Backend fronts one Aggregator. A mounted path of "/" lists every
// tracked item; "/<escaped-name>" addresses one item directly.
type Backend struct {
	agg      *trash.Aggregator
	monitors *monitor.Server
}

// SetMonitorServer wires s in for CreateDirMonitor/CreateFileMonitor,
// mirroring backend/local's hook of the same name.
func (b *Backend) SetMonitorServer(s *monitor.Server) {
	b.monitors = s
}

// NewBackend builds the Aggregator (homedir source plus an initial
// mount rescan) and returns a Backend over it. This is the Constructor
// the registry calls for mount specs of type "trash".
func NewBackend(spec *mount.Spec) (backend.Backend, error) {
	log := logrus.WithField("backend", "trash")
	agg, err := trash.NewAggregator(log)
	if err != nil {
		return nil, err
	}
	if err := agg.Rescan(); err != nil {
		log.WithError(err).Warn("trash: initial mount rescan failed")
	}
	return &Backend{agg: agg}, nil
}

func (b *Backend) Name() string { return "trash" }

func (b *Backend) itemFor(path string) (*trash.Item, error) {
	name := strings.TrimPrefix(path, "/")
	item, ok := b.agg.Root.Lookup(name)
	if !ok {
		return nil, vfserr.New(vfserr.NotFound, "no trashed item %q", path)
	}
	return item, nil
}

func (b *Backend) OpenForRead(ctx context.Context, path string) (any, error) {
	item, err := b.itemFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(item.FilesPath)
	if err != nil {
		return nil, vfserr.Wrap(vfserr.NotFound, err, "open trashed item")
	}
	return f, nil
}

func (b *Backend) OpenForWrite(ctx context.Context, path, mode string) (any, error) {
	return nil, vfserr.New(vfserr.NotSupported, "trash items are read-only except via restore")
}

func (b *Backend) Read(ctx context.Context, handle any, count int) ([]byte, error) {
	f, ok := handle.(*os.File)
	if !ok {
		return nil, vfserr.New(vfserr.InvalidArgument, "handle is not a trash file handle")
	}
	buf := make([]byte, count)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return nil, vfserr.Wrap(vfserr.Failed, err, "read trashed item")
	}
	return buf[:n], nil
}

func (b *Backend) Write(ctx context.Context, handle any, data []byte) (int, error) {
	return 0, vfserr.New(vfserr.ReadOnly, "trash items are read-only")
}

func (b *Backend) Seek(ctx context.Context, handle any, offset int64, whence int) (int64, error) {
	f, ok := handle.(*os.File)
	if !ok {
		return 0, vfserr.New(vfserr.InvalidArgument, "handle is not a trash file handle")
	}
	pos, err := f.Seek(offset, whence)
	if err != nil {
		return 0, vfserr.Wrap(vfserr.Failed, err, "seek trashed item")
	}
	return pos, nil
}

func (b *Backend) Close(ctx context.Context, handle any) error {
	f, ok := handle.(*os.File)
	if !ok {
		return vfserr.New(vfserr.InvalidArgument, "handle is not a trash file handle")
	}
	return f.Close()
}

func (b *Backend) QueryInfo(ctx context.Context, path, attrs string) (map[string]any, error) {
	if path == "/" || path == "" {
		return map[string]any{"standard::name": "/", "standard::type": "directory"}, nil
	}
	item, err := b.itemFor(path)
	if err != nil {
		return nil, err
	}
	return infoFromItem(item), nil
}

func (b *Backend) QueryFsInfo(ctx context.Context, path, attrs string) (map[string]any, error) {
	return map[string]any{
		"fs.free": uint64(0),
		"fs.size": uint64(b.agg.Root.Size()),
		"fs.type": "trash",
	}, nil
}

func (b *Backend) Enumerate(ctx context.Context, path, attrs string) ([]map[string]any, error) {
	items := b.agg.Root.List()
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, infoFromItem(item))
	}
	return out, nil
}

func infoFromItem(item *trash.Item) map[string]any {
	info := map[string]any{
		"standard::name":    item.EscapedName,
		"standard::size":    item.Size,
		"standard::type":    "regular",
		"trash::orig-path":  item.OriginalPath,
		"trash::item-count": int64(0),
	}
	if item.HasDate {
		info["trash::deletion-date"] = item.DeletionDate
	}
	return info
}

func (b *Backend) SetDisplayName(ctx context.Context, path, displayName string) (string, error) {
	return "", vfserr.New(vfserr.NotSupported, "trash items cannot be renamed in place")
}

// Delete permanently empties an item: the trash:// equivalent of
// "delete forever" rather than moving it again.
func (b *Backend) Delete(ctx context.Context, path string) error {
	item, err := b.itemFor(path)
	if err != nil {
		return err
	}
	return item.Delete(b.agg.Root)
}

func (b *Backend) Trash(ctx context.Context, path string) error {
	return vfserr.New(vfserr.NotSupported, "an item already in trash:// cannot be trashed again")
}

func (b *Backend) MakeDirectory(ctx context.Context, path string) error {
	return vfserr.New(vfserr.NotSupported, "trash:// has no directories to create")
}

func (b *Backend) MakeSymlink(ctx context.Context, path, target string) error {
	return vfserr.New(vfserr.NotSupported, "trash:// does not support symlinks")
}

func (b *Backend) Copy(ctx context.Context, src, dst string, flags int) error {
	return vfserr.New(vfserr.NotSupported, "use Move to restore a trashed item")
}

// Move restores a trashed item to dst, which must be a local absolute
// path outside trash:// (RestoreOverwrite iff flags requests it).
func (b *Backend) Move(ctx context.Context, src, dst string, flags int) error {
	item, err := b.itemFor(src)
	if err != nil {
		return err
	}
	var restoreFlags trash.RestoreFlags
	if flags&MoveOverwrite != 0 {
		restoreFlags |= trash.RestoreOverwrite
	}
	return item.Restore(b.agg.Root, dst, restoreFlags)
}

// MoveOverwrite mirrors backend/local's CopyOverwrite bit for Move's
// flags parameter.
const MoveOverwrite = 1 << 0

func (b *Backend) Push(ctx context.Context, localPath, remotePath string, flags int) error {
	return vfserr.New(vfserr.NotSupported, "trash:// is not a push/pull target")
}

func (b *Backend) Pull(ctx context.Context, remotePath, localPath string, flags int) error {
	return vfserr.New(vfserr.NotSupported, "trash:// is not a push/pull target")
}

func (b *Backend) SetAttribute(ctx context.Context, path, attr string, value any) error {
	return vfserr.New(vfserr.NotSupported, "trash:// items have no settable attributes")
}

func (b *Backend) QuerySettableAttributes(ctx context.Context, path string) ([]string, error) {
	return nil, nil
}

func (b *Backend) QueryWritableNamespaces(ctx context.Context, path string) ([]string, error) {
	return nil, nil
}

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

func (b *Backend) MountMountable(ctx context.Context, path string) error {
	return vfserr.New(vfserr.NotSupported, "trash backend has no mountables")
}
func (b *Backend) UnmountMountable(ctx context.Context, path string, flags int) error {
	return vfserr.New(vfserr.NotSupported, "trash backend has no mountables")
}
func (b *Backend) StartMountable(ctx context.Context, path string) error {
	return vfserr.New(vfserr.NotSupported, "trash backend has no mountables")
}
func (b *Backend) StopMountable(ctx context.Context, path string, flags int) error {
	return vfserr.New(vfserr.NotSupported, "trash backend has no mountables")
}
func (b *Backend) PollMountable(ctx context.Context, path string) error {
	return vfserr.New(vfserr.NotSupported, "trash backend has no mountables")
}

func (b *Backend) OpenIconForRead(ctx context.Context, iconID string) (any, error) {
	return nil, vfserr.New(vfserr.NotSupported, "trash backend has no themed icons")
}

func (b *Backend) Unmount(ctx context.Context, flags int) error {
	b.agg.Close()
	return nil
}
