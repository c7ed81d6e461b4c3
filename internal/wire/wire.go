// Package wire holds the small D-Bus variant encode/decode helpers
// shared by the mount spec wire format (mount.WireSpec) and by backend
// job payloads (attribute maps, enumerate entries) crossing a peer
// connection, so both call sites share one place that knows how a Go
// value becomes a dbus.Variant and back.
package wire

import (
	"github.com/godbus/dbus/v5"

	"github.com/vfsfabric/corevfs/vfserr"
)

// VariantMap wraps every value of m as a dbus.Variant, the shape
// QueryInfo/QueryFsInfo/Enumerate attribute maps take once they cross
// a peer connection.
func VariantMap(m map[string]any) map[string]dbus.Variant {
	out := make(map[string]dbus.Variant, len(m))
	for k, v := range m {
		out[k] = dbus.MakeVariant(v)
	}
	return out
}

// UnwrapVariantMap reverses VariantMap, unwrapping each entry back to
// its carried Go value.
func UnwrapVariantMap(m map[string]dbus.Variant) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Value()
	}
	return out
}

// Variants wraps each element of vals as a dbus.Variant, for a job
// reply whose arity isn't known until the Kind is resolved.
func Variants(vals []any) []dbus.Variant {
	out := make([]dbus.Variant, len(vals))
	for i, v := range vals {
		out[i] = dbus.MakeVariant(v)
	}
	return out
}

// UnwrapVariants reverses Variants.
func UnwrapVariants(vs []dbus.Variant) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v.Value()
	}
	return out
}

// DBusError classifies err through vfserr.KindOf and names the reply
// after the Kind's own RPC name (e.g. "org.vfsfabric.Error.NotFound"),
// instead of the generic org.freedesktop.DBus.Error.Failed every
// dbus.MakeFailedError reply carries regardless of what actually went
// wrong. rpcengine's classifyDBusErr is this function's mirror image on
// the calling side.
func DBusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	return dbus.NewError(vfserr.KindOf(err).RPCName(), []any{err.Error()})
}
