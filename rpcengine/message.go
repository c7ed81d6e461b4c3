// Package rpcengine implements the Async Call Engine and Sync Call
// Engine (components D and E of this system): the two ways a caller
// issues a method call to a backend peer once the Peer Connection
// Manager has a live connection for its endpoint.
package rpcengine

import "github.com/godbus/dbus/v5"

// Message is everything needed to address and invoke one peer method
// call: the bus name and object path identify the endpoint (and feed
// peer.Manager.Get), Interface.Member is the D-Bus method, and Args are
// marshalled positionally exactly as godbus expects. Args carries only
// the call's own arguments — the engine mints and prepends the
// correlation serial itself (see serial.go), so every Message a caller
// builds is free of transport bookkeeping.
type Message struct {
	BusName    string
	ObjectPath string
	Interface  string
	Member     string
	Args       []any
}

// Reply is the decoded result of a call: Body holds the method's
// out-arguments in order, ready for the caller to Store into typed
// fields the way godbus callers normally do.
type Reply struct {
	Body []any
}

func replyFromCall(call *dbus.Call) *Reply {
	return &Reply{Body: call.Body}
}
