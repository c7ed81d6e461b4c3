package main

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/godbus/dbus/v5"

	"github.com/vfsfabric/corevfs/backend"
	"github.com/vfsfabric/corevfs/internal/wire"
	"github.com/vfsfabric/corevfs/jobs"
)

// Host exports one backend.Backend's vtable over the bus, the way a
// backend process answers the peer method table the tracker and the
// Mount Info Cache dial into. Every exported method below builds and
// runs exactly the Job backend.BuildJob would build for the same
// (member, args) pair off a real incoming call.
//
// Every call carries the correlation serial rpcengine minted for it as
// its first wire argument (see rpcengine/serial.go): Host tags the Job
// it builds with that exact value and tracks it in running for the
// lifetime of the call, so a later Cancel(serial) from the same caller
// can find and cancel the right Job instead of guessing.
//
// Opaque handles (backend.Backend.OpenForRead/OpenForWrite returns)
// don't have a D-Bus wire representation of their own, so Host keeps a
// side table mapping a uint64 handed back over the wire to the real
// handle value.
type Host struct {
	ctx  context.Context
	be   backend.Backend
	pool *jobs.Pool

	handles sync.Map // uint64 -> any
	nextID  uint64

	runningMu sync.Mutex
	running   map[uint64]*jobs.Job // serial -> in-flight Job
}

// NewHost wraps be for export under ctx, which bounds every dispatched
// job (cancelled on daemon shutdown). pool is the worker pool Run
// executes on; dispatch never runs a Job's blocking Run method on the
// calling goroutine itself, so one slow Push/Pull never stalls every
// other call this backend answers.
func NewHost(ctx context.Context, be backend.Backend, pool *jobs.Pool) *Host {
	return &Host{
		ctx:     ctx,
		be:      be,
		pool:    pool,
		running: make(map[uint64]*jobs.Job),
	}
}

func (h *Host) storeHandle(v any) uint64 {
	id := atomic.AddUint64(&h.nextID, 1)
	h.handles.Store(id, v)
	return id
}

func (h *Host) loadHandle(id uint64) any {
	v, _ := h.handles.Load(id)
	return v
}

func (h *Host) dropHandle(id uint64) {
	h.handles.Delete(id)
}

// dispatch builds kind's Job tagged with serial, runs Try on the
// calling goroutine (cheap, non-blocking per jobs.Job's contract), and
// — when Try declines — hands Run to the worker pool, blocking this
// call until it finishes. serial is tracked in running for exactly that
// window, so a concurrent Cancel(serial) call can reach it.
func (h *Host) dispatch(serial uint64, kind jobs.Kind, args []any) ([]any, *dbus.Error) {
	job, err := backend.BuildJob(h.be, kind, serial, args)
	if err != nil {
		return nil, wire.DBusError(err)
	}

	if !job.Try() {
		h.runningMu.Lock()
		h.running[serial] = job
		h.runningMu.Unlock()

		h.pool.RunSync(func() {
			_ = job.Run(h.ctx)
		})

		h.runningMu.Lock()
		delete(h.running, serial)
		h.runningMu.Unlock()
	}

	reply, err := job.CreateReply()
	job.Finalize()
	if err != nil {
		return nil, wire.DBusError(err)
	}
	return reply, nil
}

// Cancel implements the server side of the Cancel(serial) protocol
// rpcengine's Async and Sync engines send a best-effort call to:
// cancellation only asks the matching in-flight Job to stop at its next
// checkpoint, it does not guarantee the call returns early.
func (h *Host) Cancel(serial uint64) *dbus.Error {
	h.runningMu.Lock()
	job := h.running[serial]
	h.runningMu.Unlock()
	if job != nil {
		job.Cancel()
	}
	return nil
}

func (h *Host) OpenForRead(serial uint64, path string) (uint64, *dbus.Error) {
	reply, derr := h.dispatch(serial, jobs.OpenForRead, []any{path})
	if derr != nil {
		return 0, derr
	}
	return h.storeHandle(reply[0]), nil
}

func (h *Host) OpenForWrite(serial uint64, path, mode string) (uint64, *dbus.Error) {
	reply, derr := h.dispatch(serial, jobs.OpenForWrite, []any{path, mode})
	if derr != nil {
		return 0, derr
	}
	return h.storeHandle(reply[0]), nil
}

func (h *Host) Read(serial, handleID uint64, count int32) ([]byte, *dbus.Error) {
	reply, derr := h.dispatch(serial, jobs.Read, []any{h.loadHandle(handleID), int(count)})
	if derr != nil {
		return nil, derr
	}
	data, _ := reply[0].([]byte)
	return data, nil
}

func (h *Host) Write(serial, handleID uint64, data []byte) (int32, *dbus.Error) {
	reply, derr := h.dispatch(serial, jobs.Write, []any{h.loadHandle(handleID), data})
	if derr != nil {
		return 0, derr
	}
	n, _ := reply[0].(int)
	return int32(n), nil
}

func (h *Host) Seek(serial, handleID uint64, offset int64, whence int32) (int64, *dbus.Error) {
	reply, derr := h.dispatch(serial, jobs.Seek, []any{h.loadHandle(handleID), offset, int(whence)})
	if derr != nil {
		return 0, derr
	}
	pos, _ := reply[0].(int64)
	return pos, nil
}

func (h *Host) Close(serial, handleID uint64) *dbus.Error {
	_, derr := h.dispatch(serial, jobs.CloseHandle, []any{h.loadHandle(handleID)})
	h.dropHandle(handleID)
	return derr
}

func (h *Host) QueryInfo(serial uint64, path, attrs string) (map[string]dbus.Variant, *dbus.Error) {
	reply, derr := h.dispatch(serial, jobs.QueryInfo, []any{path, attrs})
	if derr != nil {
		return nil, derr
	}
	return wire.VariantMap(asMap(reply[0])), nil
}

func (h *Host) QueryFsInfo(serial uint64, path, attrs string) (map[string]dbus.Variant, *dbus.Error) {
	reply, derr := h.dispatch(serial, jobs.QueryFsInfo, []any{path, attrs})
	if derr != nil {
		return nil, derr
	}
	return wire.VariantMap(asMap(reply[0])), nil
}

func (h *Host) Enumerate(serial uint64, path, attrs string) ([]map[string]dbus.Variant, *dbus.Error) {
	reply, derr := h.dispatch(serial, jobs.Enumerate, []any{path, attrs})
	if derr != nil {
		return nil, derr
	}
	entries, _ := reply[0].([]map[string]any)
	out := make([]map[string]dbus.Variant, 0, len(entries))
	for _, e := range entries {
		out = append(out, wire.VariantMap(e))
	}
	return out, nil
}

func (h *Host) SetDisplayName(serial uint64, path, displayName string) (string, *dbus.Error) {
	reply, derr := h.dispatch(serial, jobs.SetDisplayName, []any{path, displayName})
	if derr != nil {
		return "", derr
	}
	newPath, _ := reply[0].(string)
	return newPath, nil
}

func (h *Host) Delete(serial uint64, path string) *dbus.Error {
	_, derr := h.dispatch(serial, jobs.Delete, []any{path})
	return derr
}

func (h *Host) Trash(serial uint64, path string) *dbus.Error {
	_, derr := h.dispatch(serial, jobs.Trash, []any{path})
	return derr
}

func (h *Host) MakeDirectory(serial uint64, path string) *dbus.Error {
	_, derr := h.dispatch(serial, jobs.MakeDirectory, []any{path})
	return derr
}

func (h *Host) MakeSymlink(serial uint64, path, target string) *dbus.Error {
	_, derr := h.dispatch(serial, jobs.MakeSymlink, []any{path, target})
	return derr
}

func (h *Host) Copy(serial uint64, src, dst string, flags int32) *dbus.Error {
	_, derr := h.dispatch(serial, jobs.Copy, []any{src, dst, int(flags)})
	return derr
}

func (h *Host) Move(serial uint64, src, dst string, flags int32) *dbus.Error {
	_, derr := h.dispatch(serial, jobs.Move, []any{src, dst, int(flags)})
	return derr
}

func (h *Host) Push(serial uint64, localPath, remotePath string, flags int32) *dbus.Error {
	_, derr := h.dispatch(serial, jobs.Push, []any{localPath, remotePath, int(flags)})
	return derr
}

func (h *Host) Pull(serial uint64, remotePath, localPath string, flags int32) *dbus.Error {
	_, derr := h.dispatch(serial, jobs.Pull, []any{remotePath, localPath, int(flags)})
	return derr
}

func (h *Host) SetAttribute(serial uint64, path, attr string, value dbus.Variant) *dbus.Error {
	_, derr := h.dispatch(serial, jobs.SetAttribute, []any{path, attr, value.Value()})
	return derr
}

func (h *Host) QuerySettableAttributes(serial uint64, path string) ([]string, *dbus.Error) {
	reply, derr := h.dispatch(serial, jobs.QuerySettableAttributes, []any{path})
	if derr != nil {
		return nil, derr
	}
	attrs, _ := reply[0].([]string)
	return attrs, nil
}

func (h *Host) QueryWritableNamespaces(serial uint64, path string) ([]string, *dbus.Error) {
	reply, derr := h.dispatch(serial, jobs.QueryWritableNamespaces, []any{path})
	if derr != nil {
		return nil, derr
	}
	ns, _ := reply[0].([]string)
	return ns, nil
}

func (h *Host) CreateDirMonitor(serial uint64, path string) (dbus.ObjectPath, *dbus.Error) {
	reply, derr := h.dispatch(serial, jobs.CreateDirMonitor, []any{path})
	if derr != nil {
		return "", derr
	}
	op, _ := reply[0].(string)
	return dbus.ObjectPath(op), nil
}

func (h *Host) CreateFileMonitor(serial uint64, path string) (dbus.ObjectPath, *dbus.Error) {
	reply, derr := h.dispatch(serial, jobs.CreateFileMonitor, []any{path})
	if derr != nil {
		return "", derr
	}
	op, _ := reply[0].(string)
	return dbus.ObjectPath(op), nil
}

func (h *Host) MountMountable(serial uint64, path string) *dbus.Error {
	_, derr := h.dispatch(serial, jobs.MountMountable, []any{path})
	return derr
}

func (h *Host) UnmountMountable(serial uint64, path string, flags int32) *dbus.Error {
	_, derr := h.dispatch(serial, jobs.UnmountMountable, []any{path, int(flags)})
	return derr
}

func (h *Host) StartMountable(serial uint64, path string) *dbus.Error {
	_, derr := h.dispatch(serial, jobs.StartMountable, []any{path})
	return derr
}

func (h *Host) StopMountable(serial uint64, path string, flags int32) *dbus.Error {
	_, derr := h.dispatch(serial, jobs.StopMountable, []any{path, int(flags)})
	return derr
}

func (h *Host) PollMountable(serial uint64, path string) *dbus.Error {
	_, derr := h.dispatch(serial, jobs.PollMountable, []any{path})
	return derr
}

func (h *Host) OpenIconForRead(serial uint64, iconID string) (uint64, *dbus.Error) {
	reply, derr := h.dispatch(serial, jobs.OpenIconForRead, []any{iconID})
	if derr != nil {
		return 0, derr
	}
	return h.storeHandle(reply[0]), nil
}

func (h *Host) Unmount(serial uint64, flags int32) *dbus.Error {
	_, derr := h.dispatch(serial, jobs.Unmount, []any{int(flags)})
	return derr
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
