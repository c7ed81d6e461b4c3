package volume

// VolumeSource is a child monitor the UnionMonitor fans in from, the
// Go shape of GUnionVolumeMonitor's GList of child GVolumeMonitors.
// Each backend that can surface mountable volumes implements this;
// today that is TrashSource, which surfaces each eligible
// trash-bearing mount as a volume.
type VolumeSource interface {
	// Name identifies the source for logging (e.g. "tracker", "trash").
	Name() string
	// Snapshot returns every volume/drive the source currently knows
	// about, for UnionMonitor's initial merge.
	Snapshot() ([]Volume, []Drive)
	// Events returns a channel of this source's own add/remove events.
	// The channel is closed when the source shuts down.
	Events() <-chan Event
}
