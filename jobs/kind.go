package jobs

// Kind enumerates the closed set of peer method calls the dispatcher
// routes and the method table dispatches on.
type Kind int

const (
	OpenForRead Kind = iota
	OpenForWrite
	Read
	Write
	Seek
	CloseHandle
	QueryInfo
	QueryFsInfo
	Enumerate
	SetDisplayName
	Delete
	Trash
	MakeDirectory
	MakeSymlink
	Copy
	Move
	Push
	Pull
	SetAttribute
	QuerySettableAttributes
	QueryWritableNamespaces
	CreateDirMonitor
	CreateFileMonitor
	MountMountable
	UnmountMountable
	StartMountable
	StopMountable
	PollMountable
	OpenIconForRead
	Unmount
)

var kindNames = map[Kind]string{
	OpenForRead:             "OpenForRead",
	OpenForWrite:            "OpenForWrite",
	Read:                    "Read",
	Write:                   "Write",
	Seek:                    "Seek",
	CloseHandle:             "Close",
	QueryInfo:               "QueryInfo",
	QueryFsInfo:             "QueryFsInfo",
	Enumerate:               "Enumerate",
	SetDisplayName:          "SetDisplayName",
	Delete:                  "Delete",
	Trash:                   "Trash",
	MakeDirectory:           "MakeDirectory",
	MakeSymlink:             "MakeSymlink",
	Copy:                    "Copy",
	Move:                    "Move",
	Push:                    "Push",
	Pull:                    "Pull",
	SetAttribute:            "SetAttribute",
	QuerySettableAttributes: "QuerySettableAttributes",
	QueryWritableNamespaces: "QueryWritableNamespaces",
	CreateDirMonitor:        "CreateDirMonitor",
	CreateFileMonitor:       "CreateFileMonitor",
	MountMountable:          "MountMountable",
	UnmountMountable:        "UnmountMountable",
	StartMountable:          "StartMountable",
	StopMountable:           "StopMountable",
	PollMountable:           "PollMountable",
	OpenIconForRead:         "OpenIconForRead",
	Unmount:                 "Unmount",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}
