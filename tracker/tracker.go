// Package tracker implements the Mount Tracker / Daemon Registry
// : the single well-known service that owns the sorted
// list of live mounts, answers lookups for the Mount Info Cache, and
// emits Mounted/Unmounted signals.
package tracker

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/vfsfabric/corevfs/internal/wire"
	"github.com/vfsfabric/corevfs/mount"
	"github.com/vfsfabric/corevfs/vfserr"
)

// BusName, ObjectPath and Interface are the tracker service's
// well-known bus address.
const (
	BusName    = "org.vfsfabric.Tracker"
	ObjectPath = "/org/vfsfabric/Tracker"
	Interface  = "org.vfsfabric.Tracker"
)

// MountableInfo is one entry of the static ListMountableInfo table:
// what protocol plugins are available, independent of whether any
// instance of them is currently mounted.
type MountableInfo struct {
	Type        string
	DisplayName string
	Icon        string
}

// Tracker is the daemon registry: a sorted list of live mounts plus the
// bookkeeping to answer lookups and clean up after a backend process
// disappears.
type Tracker struct {
	bus *dbus.Conn

	mu           sync.RWMutex
	infos        []*mount.Info // kept sorted by MountPrefix length, longest first
	byObjectPath map[string]*mount.Info
	byOwner      map[string]map[*mount.Info]struct{} // owning bus name -> infos

	mountableInfo []MountableInfo
}

// New builds a Tracker bound to bus. Call Export to publish it;
// NameOwnerChanged-driven cleanup reaches it through OnOwnerGone (cmd/vfsd's
// watchOwners does this).
func New(bus *dbus.Conn, mountableInfo []MountableInfo) *Tracker {
	return &Tracker{
		bus:           bus,
		byObjectPath:  make(map[string]*mount.Info),
		byOwner:       make(map[string]map[*mount.Info]struct{}),
		mountableInfo: mountableInfo,
	}
}

// Export publishes the tracker's bus-facing methods on bus under
// ObjectPath. It deliberately does not hand the whole *Tracker to
// bus.Export: several Go-level methods here (LookupMount,
// RegisterMount, OnOwnerGone, …) take or return types with no D-Bus
// wire representation (context.Context, *mount.Info, a bare error),
// so a blind reflection export would either fail introspection or — in
// OnOwnerGone's case — expose a method that should never be directly
// bus-callable at all. ExportMethodTable instead binds only the four
// wire-shaped wrappers below under the names tracker.Client (and any
// other caller) actually invokes.
func (t *Tracker) Export() error {
	table := map[string]any{
		"LookupMount":           t.wireLookupMount,
		"LookupMountByFusePath": t.wireLookupMountByFusePath,
		"RegisterMount":         t.wireRegisterMount,
		"UnregisterMount":       t.wireUnregisterMount,
	}
	return t.bus.ExportMethodTable(table, dbus.ObjectPath(ObjectPath), Interface)
}

// infoWireFields flattens info into the positional reply shape
// tracker.Client.decodeInfoReply expects.
func infoWireFields(info *mount.Info) (string, string, mount.WireSpec, string, string, string, string, bool, string, string, []string) {
	return info.EndpointBusName, info.ObjectPath, mount.ToWire(info.Spec, ""),
		info.DisplayName, info.StableName, info.Icon, info.PreferredEncoding,
		info.UserVisible, info.FuseMountpoint, info.DefaultLocation, info.XContentTypes
}

// wireLookupMount is the bus entry point for LookupMount: it decodes
// the wire spec, performs the same longest-prefix lookup the Go-level
// LookupMount does, and re-flattens the result for the wire.
func (t *Tracker) wireLookupMount(w mount.WireSpec) (string, string, mount.WireSpec, string, string, string, string, bool, string, string, []string, *dbus.Error) {
	spec, path, err := mount.FromWire(w)
	if err != nil {
		return "", "", mount.WireSpec{}, "", "", "", "", false, "", "", nil, dbusErrorFor(err)
	}
	info, err := t.LookupMount(context.Background(), spec, path)
	if err != nil {
		return "", "", mount.WireSpec{}, "", "", "", "", false, "", "", nil, dbusErrorFor(err)
	}
	busName, objectPath, wireSpec, displayName, stableName, icon, preferredEncoding, userVisible, fuseMountpoint, defaultLocation, xContentTypes := infoWireFields(info)
	return busName, objectPath, wireSpec, displayName, stableName, icon, preferredEncoding, userVisible, fuseMountpoint, defaultLocation, xContentTypes, nil
}

// wireLookupMountByFusePath mirrors wireLookupMount for the fuse-path
// lookup, with the path remainder appended as a final return value.
func (t *Tracker) wireLookupMountByFusePath(path string) (string, string, mount.WireSpec, string, string, string, string, bool, string, string, []string, string, *dbus.Error) {
	info, remainder, err := t.LookupMountByFusePath(context.Background(), path)
	if err != nil {
		return "", "", mount.WireSpec{}, "", "", "", "", false, "", "", nil, "", dbusErrorFor(err)
	}
	busName, objectPath, wireSpec, displayName, stableName, icon, preferredEncoding, userVisible, fuseMountpoint, defaultLocation, xContentTypes := infoWireFields(info)
	return busName, objectPath, wireSpec, displayName, stableName, icon, preferredEncoding, userVisible, fuseMountpoint, defaultLocation, xContentTypes, remainder, nil
}

// wireRegisterMount is the bus entry point a backend process's
// RegisterMount call over cross-process D-Bus lands on (tracker.Client
// is the intended caller). sender is godbus's special Sender
// parameter: it is populated from the message's actual unique
// connection name, not a caller-supplied string, so a backend cannot
// impersonate another's ownership for the purposes of OnOwnerGone
// cleanup.
func (t *Tracker) wireRegisterMount(sender dbus.Sender, w mount.WireSpec, objectPath, displayName, stableName, icon,
	preferredEncoding string, userVisible bool, fuseMountpoint, defaultLocation string, xContentTypes []string) *dbus.Error {
	spec, _, err := mount.FromWire(w)
	if err != nil {
		return dbusErrorFor(err)
	}
	info := mount.NewInfo(string(sender), objectPath, spec)
	info.DisplayName = displayName
	info.StableName = stableName
	info.Icon = icon
	info.PreferredEncoding = preferredEncoding
	info.UserVisible = userVisible
	info.FuseMountpoint = fuseMountpoint
	info.DefaultLocation = defaultLocation
	info.XContentTypes = xContentTypes
	t.RegisterMount(string(sender), info)
	return nil
}

// wireUnregisterMount is the bus entry point for UnregisterMount.
func (t *Tracker) wireUnregisterMount(objectPath string) *dbus.Error {
	t.UnregisterMount(objectPath)
	return nil
}

// dbusErrorFor classifies err through the shared taxonomy (wire.DBusError)
// so a wire caller gets the same RPC error name every other fabric error
// takes, instead of the generic org.freedesktop.DBus.Error.Failed a bare
// dbus.MakeFailedError would produce.
func dbusErrorFor(err error) *dbus.Error {
	return wire.DBusError(err)
}

// RegisterMount adds info, owned by ownerBusName (the caller's unique
// connection name — callers of the exported D-Bus method should use
// the message sender, not a caller-supplied string, to prevent a
// backend from impersonating another's lifetime).
func (t *Tracker) RegisterMount(ownerBusName string, info *mount.Info) {
	t.mu.Lock()
	t.infos = append(t.infos, info)
	sort.SliceStable(t.infos, func(i, j int) bool {
		return len(t.infos[i].Spec.MountPrefix) > len(t.infos[j].Spec.MountPrefix)
	})
	t.byObjectPath[info.ObjectPath] = info
	if t.byOwner[ownerBusName] == nil {
		t.byOwner[ownerBusName] = make(map[*mount.Info]struct{})
	}
	t.byOwner[ownerBusName][info] = struct{}{}
	t.mu.Unlock()

	t.emitMounted(info)
}

// UnregisterMount removes the mount at objectPath, if present, and
// emits Unmounted.
func (t *Tracker) UnregisterMount(objectPath string) {
	t.mu.Lock()
	info, ok := t.byObjectPath[objectPath]
	if !ok {
		t.mu.Unlock()
		return
	}
	t.removeLocked(info)
	t.mu.Unlock()

	t.emitUnmounted(info)
}

// removeLocked deletes info from every index. Caller holds t.mu.
func (t *Tracker) removeLocked(info *mount.Info) {
	delete(t.byObjectPath, info.ObjectPath)
	for owner, set := range t.byOwner {
		if _, ok := set[info]; ok {
			delete(set, info)
			if len(set) == 0 {
				delete(t.byOwner, owner)
			}
		}
	}
	for i, candidate := range t.infos {
		if candidate == info {
			t.infos = append(t.infos[:i], t.infos[i+1:]...)
			break
		}
	}
}

// LookupMount implements mount.TrackerClient: the longest MountPrefix
// match whose Spec equals spec and whose prefix is a component-wise
// prefix of path.
func (t *Tracker) LookupMount(ctx context.Context, spec *mount.Spec, path string) (*mount.Info, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, info := range t.infos { // already sorted longest-prefix-first
		if !info.Spec.Equal(spec) {
			continue
		}
		if p := info.Spec.MountPrefix; p == "/" || path == p || strings.HasPrefix(path, p+"/") {
			return info, nil
		}
	}
	return nil, vfserr.New(vfserr.NotFound, "no mount for spec %s covering %q", spec.Type, path)
}

// LookupMountByFusePath implements mount.TrackerClient.
func (t *Tracker) LookupMountByFusePath(ctx context.Context, path string) (*mount.Info, string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var best *mount.Info
	for _, info := range t.infos {
		if info.FuseMountpoint == "" {
			continue
		}
		if path == info.FuseMountpoint || strings.HasPrefix(path, info.FuseMountpoint+"/") {
			if best == nil || len(info.FuseMountpoint) > len(best.FuseMountpoint) {
				best = info
			}
		}
	}
	if best == nil {
		return nil, "", vfserr.New(vfserr.NotFound, "no mount covers fuse path %q", path)
	}
	remainder := strings.TrimPrefix(path, best.FuseMountpoint)
	remainder = strings.TrimPrefix(remainder, "/")
	return best, remainder, nil
}

// ListMounts returns a snapshot of every currently registered mount.
func (t *Tracker) ListMounts() []*mount.Info {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*mount.Info, len(t.infos))
	copy(out, t.infos)
	return out
}

// ListMountableInfo returns the static plugin-declared table,
// independent of what's currently mounted.
func (t *Tracker) ListMountableInfo() []MountableInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]MountableInfo, len(t.mountableInfo))
	copy(out, t.mountableInfo)
	return out
}

// OnOwnerGone removes every mount owned by ownerBusName, the handler
// for a NameOwnerChanged signal whose new owner is empty.
func (t *Tracker) OnOwnerGone(ownerBusName string) {
	t.mu.Lock()
	set, ok := t.byOwner[ownerBusName]
	if !ok {
		t.mu.Unlock()
		return
	}
	gone := make([]*mount.Info, 0, len(set))
	for info := range set {
		gone = append(gone, info)
	}
	for _, info := range gone {
		t.removeLocked(info)
	}
	t.mu.Unlock()

	for _, info := range gone {
		t.emitUnmounted(info)
	}
}

func (t *Tracker) emitMounted(info *mount.Info) {
	if t.bus == nil {
		return
	}
	_ = t.bus.Emit(dbus.ObjectPath(ObjectPath), Interface+".Mounted", info.ObjectPath, info.Spec.Type)
}

func (t *Tracker) emitUnmounted(info *mount.Info) {
	if t.bus == nil {
		return
	}
	_ = t.bus.Emit(dbus.ObjectPath(ObjectPath), Interface+".Unmounted", info.ObjectPath, info.Spec.Type)
}
