package mount

import (
	"github.com/godbus/dbus/v5"
	"github.com/vfsfabric/corevfs/vfserr"
)

// WireSpec is the on-the-wire shape of a (Spec, path) pair: a type tag,
// an items map and a path, each carried as a byte-string ("paths are
// always byte-strings, not UTF-8 validated"). Items are
// dbus.Variant-wrapped byte slices so unknown, backend-introduced keys
// round-trip untouched — newer fields are simply additional map
// entries, keeping the wire layout extensible.
type WireSpec struct {
	Type  string
	Items map[string]dbus.Variant
	Path  []byte
}

// ToWire serializes spec and path as the typed map plus byte-string
// path this fabric describes
func ToWire(spec *Spec, path string) WireSpec {
	items := make(map[string]dbus.Variant, len(spec.Items))
	for _, it := range spec.Items {
		items[it.Key] = dbus.MakeVariant([]byte(it.Value))
	}
	items["\x00prefix"] = dbus.MakeVariant([]byte(spec.MountPrefix))
	items["\x00type"] = dbus.MakeVariant([]byte(spec.Type))
	return WireSpec{Type: spec.Type, Items: items, Path: []byte(path)}
}

// FromWire reconstructs (Spec, path) from a WireSpec. Unrecognized
// items are preserved verbatim as extra key/value entries.
func FromWire(w WireSpec) (*Spec, string, error) {
	spec := New(w.Type)
	for key, v := range w.Items {
		if key == "\x00prefix" || key == "\x00type" {
			continue
		}
		raw, ok := v.Value().([]byte)
		if !ok {
			return nil, "", vfserr.New(vfserr.InvalidArgument, "item %q is not a byte-string variant", key)
		}
		spec.Set(key, string(raw))
	}
	if pv, ok := w.Items["\x00prefix"]; ok {
		if raw, ok := pv.Value().([]byte); ok {
			spec.SetMountPrefix(string(raw))
		}
	}
	return spec, string(w.Path), nil
}
