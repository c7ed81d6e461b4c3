package rpcengine

import (
	"context"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"

	"github.com/vfsfabric/corevfs/peer"
	"github.com/vfsfabric/corevfs/vfserr"
)

// SyncEngine is the Sync Call Engine (component E): a blocking
// Call that either returns a reply or an error, and — when given a
// CancelToken — races the connection's reply against the token's
// self-pipe fd with unix.Poll, the same multiplexing gvfsdaemondbus.c's
// synchronous path does with poll(2).
//
// SyncEngine keeps no per-thread connection table: Go has no stable,
// user-visible thread identity, so every call resolves its connection
// through the shared peer.Manager, the same table the Async Call
// Engine uses. The engine holds no other state, so one instance can
// serve concurrent callers (client.Remote shares one).
type SyncEngine struct {
	Manager *peer.Manager
}

// NewSyncEngine builds a Sync Call Engine bound to mgr.
func NewSyncEngine(mgr *peer.Manager) *SyncEngine {
	return &SyncEngine{Manager: mgr}
}

// Call blocks until msg's reply arrives, cancel fires, or the endpoint
// cannot be reached. With cancel == nil this degrades to a plain
// blocking call, matching its "blocking send-with-reply when
// no cancel token is supplied". Retry behaviour is identical to the
// async engine's: a Retry reply invalidates the endpoint and is
// retried once, a second Retry surfaces as Failed.
func (e *SyncEngine) Call(ctx context.Context, msg Message, cancel *CancelToken) (*Reply, error) {
	return e.call(ctx, msg, cancel, false)
}

func (e *SyncEngine) call(ctx context.Context, msg Message, cancel *CancelToken, retried bool) (*Reply, error) {
	conn, err := e.Manager.Get(ctx, msg.BusName, msg.ObjectPath)
	if err != nil {
		return nil, err
	}

	var reply *Reply
	if cancel == nil {
		call := conn.Bus().Object(msg.BusName, dbus.ObjectPath(msg.ObjectPath)).
			CallWithContext(ctx, msg.Interface+"."+msg.Member, 0, withSerial(nextCallSerial(), msg.Args)...)
		reply, err = finishSync(msg, call)
	} else {
		reply, err = e.callWithCancel(ctx, msg, conn, cancel)
	}

	if err != nil && isRetryDBusErr(unwrapCause(err)) {
		if retried {
			return nil, vfserr.New(vfserr.Failed, "retry storm calling %s.%s", msg.Interface, msg.Member)
		}
		e.Manager.Drop(peer.EndpointID(msg.BusName, msg.ObjectPath))
		return e.call(ctx, msg, cancel, true)
	}
	return reply, err
}

// callWithCancel issues the call asynchronously (so we get a signal we
// can multiplex) and polls cancel's self-pipe fd between checks of the
// reply channel, without requiring access to godbus's internal
// connection fd.
func (e *SyncEngine) callWithCancel(ctx context.Context, msg Message, conn *peer.Conn, cancel *CancelToken) (*Reply, error) {
	obj := conn.Bus().Object(msg.BusName, dbus.ObjectPath(msg.ObjectPath))
	serial := nextCallSerial()
	replyCh := make(chan *dbus.Call, 1)
	call := obj.Go(msg.Interface+"."+msg.Member, 0, replyCh, withSerial(serial, msg.Args)...)
	if call.Err != nil {
		return nil, vfserr.Wrap(vfserr.Failed, call.Err, "dispatch %s.%s", msg.Interface, msg.Member)
	}

	pollFDs := []unix.PollFd{{Fd: int32(cancel.WaitFD()), Events: unix.POLLIN}}
	for {
		select {
		case c := <-replyCh:
			return finishSync(msg, c)
		default:
		}
		if cancel.IsCancelled() {
			_ = obj.Go(msg.Interface+".Cancel", dbus.FlagNoReplyExpected, nil, serial)
			select {
			case c := <-replyCh:
				return finishSync(msg, c)
			case <-ctx.Done():
				return nil, vfserr.New(vfserr.Cancelled, "call to %s.%s cancelled", msg.Interface, msg.Member)
			}
		}
		if _, err := unix.Poll(pollFDs, 50); err != nil && err != unix.EINTR {
			return nil, vfserr.Wrap(vfserr.Failed, err, "poll cancel fd for %s.%s", msg.Interface, msg.Member)
		}
	}
}

func finishSync(msg Message, call *dbus.Call) (*Reply, error) {
	if call.Err != nil {
		kind := classifyDBusErr(call.Err)
		return nil, vfserr.Wrap(kind, call.Err, "%s.%s", msg.Interface, msg.Member)
	}
	return replyFromCall(call), nil
}

// unwrapCause returns the original dbus error wrapped by finishSync, so
// isRetryDBusErr (which expects a raw dbus.Error) can classify it.
func unwrapCause(err error) error {
	type causer interface{ Unwrap() error }
	if c, ok := err.(causer); ok {
		return c.Unwrap()
	}
	return err
}
