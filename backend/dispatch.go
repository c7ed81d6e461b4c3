package backend

import (
	"context"

	"github.com/vfsfabric/corevfs/jobs"
	"github.com/vfsfabric/corevfs/vfserr"
)

// memberToKind is the (interface, member) -> Kind table this system
// describes as a static lookup built once, not re-derived per call.
// Every backend shares the same peer interface and member names, so
// the table is keyed on member name alone.
var memberToKind = map[string]jobs.Kind{
	"OpenForRead":             jobs.OpenForRead,
	"OpenForWrite":            jobs.OpenForWrite,
	"Read":                    jobs.Read,
	"Write":                   jobs.Write,
	"Seek":                    jobs.Seek,
	"Close":                   jobs.CloseHandle,
	"QueryInfo":               jobs.QueryInfo,
	"QueryFsInfo":             jobs.QueryFsInfo,
	"Enumerate":               jobs.Enumerate,
	"SetDisplayName":          jobs.SetDisplayName,
	"Delete":                  jobs.Delete,
	"Trash":                   jobs.Trash,
	"MakeDirectory":           jobs.MakeDirectory,
	"MakeSymlink":             jobs.MakeSymlink,
	"Copy":                    jobs.Copy,
	"Move":                    jobs.Move,
	"Push":                    jobs.Push,
	"Pull":                    jobs.Pull,
	"SetAttribute":            jobs.SetAttribute,
	"QuerySettableAttributes": jobs.QuerySettableAttributes,
	"QueryWritableNamespaces": jobs.QueryWritableNamespaces,
	"CreateDirMonitor":        jobs.CreateDirMonitor,
	"CreateFileMonitor":       jobs.CreateFileMonitor,
	"MountMountable":          jobs.MountMountable,
	"UnmountMountable":        jobs.UnmountMountable,
	"StartMountable":          jobs.StartMountable,
	"StopMountable":           jobs.StopMountable,
	"PollMountable":           jobs.PollMountable,
	"OpenIconForRead":         jobs.OpenIconForRead,
	"Unmount":                 jobs.Unmount,
}

// KindForMember resolves a D-Bus member name to its Kind, for the
// dispatcher's incoming-call router.
func KindForMember(member string) (jobs.Kind, bool) {
	k, ok := memberToKind[member]
	return k, ok
}

// BuildJob materializes the typed Job for one incoming call: it binds
// b's corresponding vtable method into the job's Run closure (Try is
// left nil throughout — none of these operations has a fast path that
// doesn't need the backend's blocking implementation, unlike e.g. a
// cache-backed QueryInfo a smarter backend might supply instead by
// wrapping BuildJob's result).
func BuildJob(b Backend, kind jobs.Kind, serial uint64, args []any) (*jobs.Job, error) {
	switch kind {
	case jobs.OpenForRead:
		path := argString(args, 0)
		return jobs.NewOpenForRead(serial, path, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			h, err := b.OpenForRead(ctx, path)
			return []any{h}, err
		}), nil

	case jobs.OpenForWrite:
		path, mode := argString(args, 0), argString(args, 1)
		return jobs.NewOpenForWrite(serial, path, mode, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			h, err := b.OpenForWrite(ctx, path, mode)
			return []any{h}, err
		}), nil

	case jobs.Read:
		handle, count := args[0], argInt(args, 1)
		return jobs.NewRead(serial, handle, count, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			data, err := b.Read(ctx, handle, count)
			return []any{data}, err
		}), nil

	case jobs.Write:
		handle, data := args[0], argBytes(args, 1)
		return jobs.NewWrite(serial, handle, data, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			n, err := b.Write(ctx, handle, data)
			return []any{n}, err
		}), nil

	case jobs.Seek:
		handle, offset, whence := args[0], argInt64(args, 1), argInt(args, 2)
		return jobs.NewSeek(serial, handle, offset, whence, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			pos, err := b.Seek(ctx, handle, offset, whence)
			return []any{pos}, err
		}), nil

	case jobs.CloseHandle:
		handle := args[0]
		return jobs.NewClose(serial, handle, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			return nil, b.Close(ctx, handle)
		}), nil

	case jobs.QueryInfo:
		path, attrs := argString(args, 0), argString(args, 1)
		return jobs.NewQueryInfo(serial, path, attrs, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			info, err := b.QueryInfo(ctx, path, attrs)
			return []any{info}, err
		}), nil

	case jobs.QueryFsInfo:
		path, attrs := argString(args, 0), argString(args, 1)
		return jobs.NewQueryFsInfo(serial, path, attrs, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			info, err := b.QueryFsInfo(ctx, path, attrs)
			return []any{info}, err
		}), nil

	case jobs.Enumerate:
		path, attrs := argString(args, 0), argString(args, 1)
		return jobs.NewEnumerate(serial, path, attrs, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			entries, err := b.Enumerate(ctx, path, attrs)
			return []any{entries}, err
		}), nil

	case jobs.SetDisplayName:
		path, name := argString(args, 0), argString(args, 1)
		return jobs.NewSetDisplayName(serial, path, name, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			newPath, err := b.SetDisplayName(ctx, path, name)
			return []any{newPath}, err
		}), nil

	case jobs.Delete:
		path := argString(args, 0)
		return jobs.NewDelete(serial, path, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			return nil, b.Delete(ctx, path)
		}), nil

	case jobs.Trash:
		path := argString(args, 0)
		return jobs.NewTrash(serial, path, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			return nil, b.Trash(ctx, path)
		}), nil

	case jobs.MakeDirectory:
		path := argString(args, 0)
		return jobs.NewMakeDirectory(serial, path, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			return nil, b.MakeDirectory(ctx, path)
		}), nil

	case jobs.MakeSymlink:
		path, target := argString(args, 0), argString(args, 1)
		return jobs.NewMakeSymlink(serial, path, target, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			return nil, b.MakeSymlink(ctx, path, target)
		}), nil

	case jobs.Copy:
		src, dst, flags := argString(args, 0), argString(args, 1), argInt(args, 2)
		return jobs.NewCopy(serial, src, dst, flags, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			return nil, b.Copy(ctx, src, dst, flags)
		}), nil

	case jobs.Move:
		src, dst, flags := argString(args, 0), argString(args, 1), argInt(args, 2)
		return jobs.NewMove(serial, src, dst, flags, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			return nil, b.Move(ctx, src, dst, flags)
		}), nil

	case jobs.Push:
		local, remote, flags := argString(args, 0), argString(args, 1), argInt(args, 2)
		return jobs.NewPush(serial, local, remote, flags, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			return nil, b.Push(ctx, local, remote, flags)
		}), nil

	case jobs.Pull:
		remote, local, flags := argString(args, 0), argString(args, 1), argInt(args, 2)
		return jobs.NewPull(serial, remote, local, flags, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			return nil, b.Pull(ctx, remote, local, flags)
		}), nil

	case jobs.SetAttribute:
		path, attr, value := argString(args, 0), argString(args, 1), args[2]
		return jobs.NewSetAttribute(serial, path, attr, value, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			return nil, b.SetAttribute(ctx, path, attr, value)
		}), nil

	case jobs.QuerySettableAttributes:
		path := argString(args, 0)
		return jobs.NewQuerySettableAttributes(serial, path, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			names, err := b.QuerySettableAttributes(ctx, path)
			return []any{names}, err
		}), nil

	case jobs.QueryWritableNamespaces:
		path := argString(args, 0)
		return jobs.NewQueryWritableNamespaces(serial, path, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			names, err := b.QueryWritableNamespaces(ctx, path)
			return []any{names}, err
		}), nil

	case jobs.CreateDirMonitor:
		path := argString(args, 0)
		return jobs.NewCreateDirMonitor(serial, path, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			objPath, err := b.CreateDirMonitor(ctx, path)
			return []any{objPath}, err
		}), nil

	case jobs.CreateFileMonitor:
		path := argString(args, 0)
		return jobs.NewCreateFileMonitor(serial, path, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			objPath, err := b.CreateFileMonitor(ctx, path)
			return []any{objPath}, err
		}), nil

	case jobs.MountMountable:
		path := argString(args, 0)
		return jobs.NewMountMountable(serial, path, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			return nil, b.MountMountable(ctx, path)
		}), nil

	case jobs.UnmountMountable:
		path, flags := argString(args, 0), argInt(args, 1)
		return jobs.NewUnmountMountable(serial, path, flags, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			return nil, b.UnmountMountable(ctx, path, flags)
		}), nil

	case jobs.StartMountable:
		path := argString(args, 0)
		return jobs.NewStartMountable(serial, path, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			return nil, b.StartMountable(ctx, path)
		}), nil

	case jobs.StopMountable:
		path, flags := argString(args, 0), argInt(args, 1)
		return jobs.NewStopMountable(serial, path, flags, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			return nil, b.StopMountable(ctx, path, flags)
		}), nil

	case jobs.PollMountable:
		path := argString(args, 0)
		return jobs.NewPollMountable(serial, path, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			return nil, b.PollMountable(ctx, path)
		}), nil

	case jobs.OpenIconForRead:
		iconID := argString(args, 0)
		return jobs.NewOpenIconForRead(serial, iconID, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			h, err := b.OpenIconForRead(ctx, iconID)
			return []any{h}, err
		}), nil

	case jobs.Unmount:
		flags := argInt(args, 0)
		return jobs.NewUnmount(serial, flags, nil, func(ctx context.Context, j *jobs.Job) ([]any, error) {
			return nil, b.Unmount(ctx, flags)
		}), nil
	}
	return nil, vfserr.New(vfserr.NotSupported, "unknown job kind %s", kind)
}

func argString(args []any, i int) string {
	if i >= len(args) {
		return ""
	}
	s, _ := args[i].(string)
	return s
}

func argInt(args []any, i int) int {
	if i >= len(args) {
		return 0
	}
	switch v := args[i].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint32:
		return int(v)
	default:
		return 0
	}
}

func argInt64(args []any, i int) int64 {
	if i >= len(args) {
		return 0
	}
	switch v := args[i].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	default:
		return 0
	}
}

func argBytes(args []any, i int) []byte {
	if i >= len(args) {
		return nil
	}
	b, _ := args[i].([]byte)
	return b
}
