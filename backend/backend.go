// Package backend defines the protocol-backend vtable 
// and the global name -> constructor registry backends register
// themselves into, the way rclone's fs.Register lets a protocol
// implementation plug into fs.NewFs by name.
package backend

import "context"

// Backend is the vtable a protocol implementation provides. Every
// method corresponds to one entry of the peer method table; a backend
// that doesn't support an operation returns a
// vfserr.NotSupported error rather than omitting the method, mirroring
// rclone's optional-but-always-present vtable hooks
// (fs.Fs's optional interfaces collapsed into one interface here since
// the peer protocol, unlike fs.Fs, is a fixed closed set).
type Backend interface {
	// Name is the registered protocol name (e.g. "local", "trash").
	Name() string

	OpenForRead(ctx context.Context, path string) (handle any, err error)
	OpenForWrite(ctx context.Context, path, mode string) (handle any, err error)
	Read(ctx context.Context, handle any, count int) ([]byte, error)
	Write(ctx context.Context, handle any, data []byte) (n int, err error)
	Seek(ctx context.Context, handle any, offset int64, whence int) (int64, error)
	Close(ctx context.Context, handle any) error

	QueryInfo(ctx context.Context, path, attrs string) (map[string]any, error)
	QueryFsInfo(ctx context.Context, path, attrs string) (map[string]any, error)
	Enumerate(ctx context.Context, path, attrs string) ([]map[string]any, error)

	SetDisplayName(ctx context.Context, path, displayName string) (newPath string, err error)
	Delete(ctx context.Context, path string) error
	Trash(ctx context.Context, path string) error
	MakeDirectory(ctx context.Context, path string) error
	MakeSymlink(ctx context.Context, path, target string) error
	Copy(ctx context.Context, src, dst string, flags int) error
	Move(ctx context.Context, src, dst string, flags int) error
	Push(ctx context.Context, localPath, remotePath string, flags int, removeSource bool) error
	Pull(ctx context.Context, remotePath, localPath string, flags int, removeSource bool) error

	SetAttribute(ctx context.Context, path, attr string, value any) error
	QuerySettableAttributes(ctx context.Context, path string) ([]string, error)
	QueryWritableNamespaces(ctx context.Context, path string) ([]string, error)

	CreateDirMonitor(ctx context.Context, path string) (objectPath string, err error)
	CreateFileMonitor(ctx context.Context, path string) (objectPath string, err error)

	MountMountable(ctx context.Context, path string) error
	UnmountMountable(ctx context.Context, path string, flags int) error
	StartMountable(ctx context.Context, path string) error
	StopMountable(ctx context.Context, path string, flags int) error
	PollMountable(ctx context.Context, path string) error

	OpenIconForRead(ctx context.Context, iconID string) (handle any, err error)

	Unmount(ctx context.Context, flags int) error
}
