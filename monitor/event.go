// Package monitor implements file and directory change monitors
// : the server side assigns a unique object path per
// monitor and emits typed Changed signals on it; the client side
// dispatches those signals back to whoever created the monitor.
package monitor

import "github.com/vfsfabric/corevfs/mount"

// EventType is the closed set of monitor events this system names.
type EventType int

const (
	Changed EventType = iota
	ChangesDoneHint
	Created
	Deleted
	PreUnmount
	Unmounted
	AttributeChanged
	MoveStart
	MoveEnd
)

var eventNames = map[EventType]string{
	Changed:           "Changed",
	ChangesDoneHint:   "ChangesDoneHint",
	Created:           "Created",
	Deleted:           "Deleted",
	PreUnmount:        "PreUnmount",
	Unmounted:         "Unmounted",
	AttributeChanged:  "AttributeChanged",
	MoveStart:         "MoveStart",
	MoveEnd:           "MoveEnd",
}

func (e EventType) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "Unknown"
}

// Event is one Changed signal payload. Spec2/Path2 are only meaningful
// for MoveStart/MoveEnd, which carry both the source and destination
// location.
type Event struct {
	Type  EventType
	Spec  *mount.Spec
	Path  string
	Spec2 *mount.Spec
	Path2 string
}
