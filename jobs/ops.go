package jobs

// Each constructor below builds a Job of its named Kind with the
// operation's positional wire arguments, exactly as the dispatcher
// decodes them off the incoming method call. They exist so
// backend.BuildJob's per-Kind switch reads as a typed table rather than
// a pile of New(Kind, ...) call sites repeating the same Kind by hand.

func NewOpenForRead(serial uint64, path string, try TryFunc, run RunFunc) *Job {
	return New(OpenForRead, serial, []any{path}, try, run)
}

func NewOpenForWrite(serial uint64, path string, mode string, try TryFunc, run RunFunc) *Job {
	return New(OpenForWrite, serial, []any{path, mode}, try, run)
}

func NewRead(serial uint64, handle any, count int, try TryFunc, run RunFunc) *Job {
	return New(Read, serial, []any{handle, count}, try, run)
}

func NewWrite(serial uint64, handle any, data []byte, try TryFunc, run RunFunc) *Job {
	return New(Write, serial, []any{handle, data}, try, run)
}

func NewSeek(serial uint64, handle any, offset int64, whence int, try TryFunc, run RunFunc) *Job {
	return New(Seek, serial, []any{handle, offset, whence}, try, run)
}

func NewClose(serial uint64, handle any, try TryFunc, run RunFunc) *Job {
	return New(CloseHandle, serial, []any{handle}, try, run)
}

func NewQueryInfo(serial uint64, path string, attrs string, try TryFunc, run RunFunc) *Job {
	return New(QueryInfo, serial, []any{path, attrs}, try, run)
}

func NewQueryFsInfo(serial uint64, path string, attrs string, try TryFunc, run RunFunc) *Job {
	return New(QueryFsInfo, serial, []any{path, attrs}, try, run)
}

func NewEnumerate(serial uint64, path string, attrs string, try TryFunc, run RunFunc) *Job {
	return New(Enumerate, serial, []any{path, attrs}, try, run)
}

func NewSetDisplayName(serial uint64, path string, displayName string, try TryFunc, run RunFunc) *Job {
	return New(SetDisplayName, serial, []any{path, displayName}, try, run)
}

func NewDelete(serial uint64, path string, try TryFunc, run RunFunc) *Job {
	return New(Delete, serial, []any{path}, try, run)
}

func NewTrash(serial uint64, path string, try TryFunc, run RunFunc) *Job {
	return New(Trash, serial, []any{path}, try, run)
}

func NewMakeDirectory(serial uint64, path string, try TryFunc, run RunFunc) *Job {
	return New(MakeDirectory, serial, []any{path}, try, run)
}

func NewMakeSymlink(serial uint64, path string, target string, try TryFunc, run RunFunc) *Job {
	return New(MakeSymlink, serial, []any{path, target}, try, run)
}

func NewCopy(serial uint64, src, dst string, flags int, try TryFunc, run RunFunc) *Job {
	return New(Copy, serial, []any{src, dst, flags}, try, run)
}

func NewMove(serial uint64, src, dst string, flags int, try TryFunc, run RunFunc) *Job {
	return New(Move, serial, []any{src, dst, flags}, try, run)
}

func NewPush(serial uint64, localPath, remotePath string, flags int, try TryFunc, run RunFunc) *Job {
	return New(Push, serial, []any{localPath, remotePath, flags}, try, run)
}

func NewPull(serial uint64, remotePath, localPath string, flags int, try TryFunc, run RunFunc) *Job {
	return New(Pull, serial, []any{remotePath, localPath, flags}, try, run)
}

func NewSetAttribute(serial uint64, path, attr string, value any, try TryFunc, run RunFunc) *Job {
	return New(SetAttribute, serial, []any{path, attr, value}, try, run)
}

func NewQuerySettableAttributes(serial uint64, path string, try TryFunc, run RunFunc) *Job {
	return New(QuerySettableAttributes, serial, []any{path}, try, run)
}

func NewQueryWritableNamespaces(serial uint64, path string, try TryFunc, run RunFunc) *Job {
	return New(QueryWritableNamespaces, serial, []any{path}, try, run)
}

func NewCreateDirMonitor(serial uint64, path string, try TryFunc, run RunFunc) *Job {
	return New(CreateDirMonitor, serial, []any{path}, try, run)
}

func NewCreateFileMonitor(serial uint64, path string, try TryFunc, run RunFunc) *Job {
	return New(CreateFileMonitor, serial, []any{path}, try, run)
}

func NewMountMountable(serial uint64, path string, try TryFunc, run RunFunc) *Job {
	return New(MountMountable, serial, []any{path}, try, run)
}

func NewUnmountMountable(serial uint64, path string, flags int, try TryFunc, run RunFunc) *Job {
	return New(UnmountMountable, serial, []any{path, flags}, try, run)
}

func NewStartMountable(serial uint64, path string, try TryFunc, run RunFunc) *Job {
	return New(StartMountable, serial, []any{path}, try, run)
}

func NewStopMountable(serial uint64, path string, flags int, try TryFunc, run RunFunc) *Job {
	return New(StopMountable, serial, []any{path, flags}, try, run)
}

func NewPollMountable(serial uint64, path string, try TryFunc, run RunFunc) *Job {
	return New(PollMountable, serial, []any{path}, try, run)
}

func NewOpenIconForRead(serial uint64, iconID string, try TryFunc, run RunFunc) *Job {
	return New(OpenIconForRead, serial, []any{iconID}, try, run)
}

func NewUnmount(serial uint64, flags int, try TryFunc, run RunFunc) *Job {
	return New(Unmount, serial, []any{flags}, try, run)
}
