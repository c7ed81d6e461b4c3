package rpcengine

import (
	"context"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/vfsfabric/corevfs/peer"
	"github.com/vfsfabric/corevfs/vfserr"
)

// AsyncEngine is the Async Call Engine (component D): it turns a
// Message plus an optional CancelToken into exactly one completion
// callback invocation, bootstrapping the endpoint's peer connection
// through Manager first. Every call runs on its own goroutine, which is
// Go's natural analogue of the event-loop callback the C source uses —
// nothing here blocks the caller's goroutine.
type AsyncEngine struct {
	Manager *peer.Manager
}

// Done is the callback signature CallAsync invokes exactly once: either
// reply is non-nil and err is nil, or reply is nil and err describes
// why (including vfserr.Cancelled for a cancelled call).
type Done func(reply *Reply, conn *peer.Conn, err error)

// NewAsyncEngine builds an Async Call Engine bound to mgr.
func NewAsyncEngine(mgr *peer.Manager) *AsyncEngine {
	return &AsyncEngine{Manager: mgr}
}

// CallAsync issues msg against its endpoint and returns immediately;
// done fires from a background goroutine once the call completes, is
// cancelled, or the endpoint could not be reached. If cancel is
// non-nil and fires before the reply arrives, the engine sends a
// best-effort Cancel(serial) to the peer and still completes done —
// with the real reply if it won the race, otherwise with a Cancelled
// error, matching its "cancellation is best-effort".
func (e *AsyncEngine) CallAsync(ctx context.Context, msg Message, cancel *CancelToken, done Done) {
	go e.run(ctx, msg, cancel, done, false)
}

func (e *AsyncEngine) run(ctx context.Context, msg Message, cancel *CancelToken, done Done, retried bool) {
	conn, err := e.Manager.Get(ctx, msg.BusName, msg.ObjectPath)
	if err != nil {
		done(nil, nil, err)
		return
	}

	// A cancellation that landed while we were still bootstrapping
	// means the call is never sent at all.
	if cancel != nil && cancel.IsCancelled() {
		done(nil, conn, vfserr.New(vfserr.Cancelled, "call to %s.%s cancelled before dispatch", msg.Interface, msg.Member))
		return
	}

	serial := nextCallSerial()
	obj := conn.Bus().Object(msg.BusName, dbus.ObjectPath(msg.ObjectPath))

	replyCh := make(chan *dbus.Call, 1)
	call := obj.Go(msg.Interface+"."+msg.Member, 0, replyCh, withSerial(serial, msg.Args)...)
	if call.Err != nil {
		done(nil, conn, vfserr.Wrap(vfserr.Failed, call.Err, "dispatch %s.%s", msg.Interface, msg.Member))
		return
	}

	var cancelDone <-chan struct{}
	if cancel != nil {
		cancelDone = cancel.Done()
	}

	var sendOnce sync.Once
	sendCancel := func() {
		sendOnce.Do(func() {
			_ = obj.Go(msg.Interface+".Cancel", dbus.FlagNoReplyExpected, nil, serial)
		})
	}

	select {
	case c := <-replyCh:
		e.finish(ctx, msg, cancel, done, c, retried)
	case <-cancelDone:
		sendCancel()
		// The reply may still arrive — cancellation only asks the
		// peer to stop; a reply that was already in flight is
		// delivered normally.
		c := <-replyCh
		if c.Err == nil {
			e.finish(ctx, msg, cancel, done, c, retried)
			return
		}
		done(nil, conn, vfserr.New(vfserr.Cancelled, "call to %s.%s cancelled", msg.Interface, msg.Member))
	}
}

func (e *AsyncEngine) finish(ctx context.Context, msg Message, cancel *CancelToken, done Done, call *dbus.Call, retried bool) {
	conn, _ := e.Manager.Get(ctx, msg.BusName, msg.ObjectPath)

	if call.Err != nil {
		kind := classifyDBusErr(call.Err)
		rerr := vfserr.Wrap(kind, call.Err, "%s.%s", msg.Interface, msg.Member)
		if isRetryDBusErr(call.Err) {
			if retried {
				done(nil, conn, vfserr.New(vfserr.Failed, "retry storm calling %s.%s", msg.Interface, msg.Member))
				return
			}
			e.Manager.Drop(peer.EndpointID(msg.BusName, msg.ObjectPath))
			e.run(ctx, msg, cancel, done, true)
			return
		}
		done(nil, conn, rerr)
		return
	}
	done(replyFromCall(call), conn, nil)
}

// isRetryDBusErr reports whether a bus error reply carries the
// internal Retry name, meaning the endpoint wants the caller to
// invalidate its connection and try once more .
func isRetryDBusErr(err error) bool {
	if dbusErr, ok := err.(dbus.Error); ok {
		return vfserr.KindFromRPCName(dbusErr.Name) == vfserr.KindOf(vfserr.RetrySentinel())
	}
	return false
}

func classifyDBusErr(err error) vfserr.Kind {
	if dbusErr, ok := err.(dbus.Error); ok {
		return vfserr.KindFromRPCName(dbusErr.Name)
	}
	return vfserr.Failed
}
