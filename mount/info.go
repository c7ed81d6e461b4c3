package mount

import "sync/atomic"

// Info is what the cache stores about a live mount (this system "Mount
// Info"). It is reference-counted: Ref/Unref instead of relying on the
// garbage collector, since multiple subsystems (the cache's three
// indices, a client holding a stale handle across a lookup) may be
// sharing one Info and need a deterministic point at which it is truly
// gone.
type Info struct {
	EndpointBusName string
	ObjectPath      string
	Spec            *Spec
	DisplayName     string
	StableName      string
	Icon            string
	PreferredEncoding string
	UserVisible     bool
	FuseMountpoint  string
	DefaultLocation string
	XContentTypes   []string

	refs int32
}

// NewInfo builds an Info with an initial refcount of 1.
func NewInfo(endpointBusName, objectPath string, spec *Spec) *Info {
	return &Info{EndpointBusName: endpointBusName, ObjectPath: objectPath, Spec: spec, refs: 1}
}

// Ref increments the refcount and returns info, so callers can write
// `stored := info.Ref()` when handing out a second owner.
func (m *Info) Ref() *Info {
	atomic.AddInt32(&m.refs, 1)
	return m
}

// Unref decrements the refcount, returning true if it reached zero.
func (m *Info) Unref() bool {
	return atomic.AddInt32(&m.refs, -1) == 0
}

// Equal reports whether two Info values are equal: they're equal iff
// endpoint identity and object path are equal.
func (m *Info) Equal(o *Info) bool {
	if m == o {
		return true
	}
	if m == nil || o == nil {
		return false
	}
	return m.EndpointBusName == o.EndpointBusName && m.ObjectPath == o.ObjectPath
}

// EndpointID is the identity used by the cache's reverse index and by
// peer.Manager's connection tables: the (bus_name, object_path) pair
// flattened to a single comparable string.
func (m *Info) EndpointID() string {
	return m.EndpointBusName + "\x00" + m.ObjectPath
}
