package tracker

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/vfsfabric/corevfs/mount"
	"github.com/vfsfabric/corevfs/vfserr"
)

// Client is the Mount Info Cache's view of the tracker: a thin RPC stub
// over the session bus that implements mount.TrackerClient by calling
// across to the real Tracker service, wherever it runs. Processes that
// host the Tracker themselves should hand mount.NewCache the *Tracker
// directly instead (it already satisfies the same interface) and skip
// this indirection.
type Client struct {
	bus *dbus.Conn
}

// NewClient wraps bus for cache lookups against the well-known tracker
// service.
func NewClient(bus *dbus.Conn) *Client {
	return &Client{bus: bus}
}

func (c *Client) object() dbus.BusObject {
	return c.bus.Object(BusName, dbus.ObjectPath(ObjectPath))
}

// LookupMount implements mount.TrackerClient.
func (c *Client) LookupMount(ctx context.Context, spec *mount.Spec, path string) (*mount.Info, error) {
	wire := mount.ToWire(spec, path)
	call := c.object().CallWithContext(ctx, Interface+".LookupMount", 0, wire)
	if call.Err != nil {
		return nil, vfserr.Wrap(vfserr.Failed, call.Err, "LookupMount(%s, %q)", spec.Type, path)
	}
	return decodeInfoReply(call)
}

// LookupMountByFusePath implements mount.TrackerClient.
func (c *Client) LookupMountByFusePath(ctx context.Context, path string) (*mount.Info, string, error) {
	call := c.object().CallWithContext(ctx, Interface+".LookupMountByFusePath", 0, path)
	if call.Err != nil {
		return nil, "", vfserr.Wrap(vfserr.Failed, call.Err, "LookupMountByFusePath(%q)", path)
	}
	info, err := decodeInfoReply(call)
	if err != nil {
		return nil, "", err
	}
	var remainder string
	if len(call.Body) > 1 {
		remainder, _ = call.Body[1].(string)
	}
	return info, remainder, nil
}

// RegisterMount tells the tracker info is now live, owned by whatever
// bus name the tracker observes as this call's sender (see
// Tracker.wireRegisterMount) — a backend process calls this once on
// becoming ready, handing the tracker everything LookupMount later
// needs to answer for it.
func (c *Client) RegisterMount(ctx context.Context, info *mount.Info) error {
	wire := mount.ToWire(info.Spec, "")
	call := c.object().CallWithContext(ctx, Interface+".RegisterMount", 0,
		wire, info.ObjectPath, info.DisplayName, info.StableName, info.Icon,
		info.PreferredEncoding, info.UserVisible, info.FuseMountpoint, info.DefaultLocation, info.XContentTypes)
	if call.Err != nil {
		return vfserr.Wrap(vfserr.Failed, call.Err, "RegisterMount(%s)", info.ObjectPath)
	}
	return nil
}

// UnregisterMount tells the tracker the mount at objectPath is gone. A
// backend calls this from its shutdown path; vfsd's NameOwnerChanged
// watcher (tracker.OnOwnerGone) catches the case where it never gets
// the chance to.
func (c *Client) UnregisterMount(ctx context.Context, objectPath string) error {
	call := c.object().CallWithContext(ctx, Interface+".UnregisterMount", 0, objectPath)
	if call.Err != nil {
		return vfserr.Wrap(vfserr.Failed, call.Err, "UnregisterMount(%s)", objectPath)
	}
	return nil
}

func decodeInfoReply(call *dbus.Call) (*mount.Info, error) {
	var wireSpec mount.WireSpec
	var endpointBusName, objectPath, displayName, stableName, icon, preferredEncoding, fuseMountpoint, defaultLocation string
	var userVisible bool
	var xContentTypes []string

	if err := call.Store(&endpointBusName, &objectPath, &wireSpec, &displayName, &stableName, &icon,
		&preferredEncoding, &userVisible, &fuseMountpoint, &defaultLocation, &xContentTypes); err != nil {
		return nil, vfserr.Wrap(vfserr.Failed, err, "decode LookupMount reply")
	}

	spec, _, err := mount.FromWire(wireSpec)
	if err != nil {
		return nil, err
	}

	info := mount.NewInfo(endpointBusName, objectPath, spec)
	info.DisplayName = displayName
	info.StableName = stableName
	info.Icon = icon
	info.PreferredEncoding = preferredEncoding
	info.UserVisible = userVisible
	info.FuseMountpoint = fuseMountpoint
	info.DefaultLocation = defaultLocation
	info.XContentTypes = xContentTypes
	return info, nil
}
