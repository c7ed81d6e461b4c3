package volume

import "github.com/vfsfabric/corevfs/trash"

// TrashSource adapts a trash.Aggregator into a VolumeSource: every
// trash-bearing mount the aggregator tracks (the homedir trash plus
// one per other eligible filesystem) surfaces as a Volume, so the
// union view can list "has trash support" locations the same way it
// lists ordinary mounts.
//
// The aggregator has no live add/remove signal of its own (its Rescan
// is caller-driven, see trash.Aggregator.Rescan), so the Events channel
// carries only what RescanEvents pushes after a caller's Rescan;
// TrashSource never closes it.
type TrashSource struct {
	agg  *trash.Aggregator
	seen map[string]struct{}
	out  chan Event
}

// NewTrashSource wraps agg. Snapshot reflects whatever sources agg has
// already started; call RescanEvents after each agg.Rescan to surface
// newly discovered mounts.
func NewTrashSource(agg *trash.Aggregator) *TrashSource {
	return &TrashSource{agg: agg, seen: make(map[string]struct{}), out: make(chan Event, 8)}
}

func (t *TrashSource) Name() string { return "trash" }

func (t *TrashSource) Snapshot() ([]Volume, []Drive) {
	srcs := t.agg.Sources()
	vols := make([]Volume, 0, len(srcs))
	for _, s := range srcs {
		v := trashVolume(s)
		t.seen[v.PlatformID] = struct{}{}
		vols = append(vols, v)
	}
	return vols, nil
}

func (t *TrashSource) Events() <-chan Event { return t.out }

// RescanEvents diffs agg's current sources against what this adapter
// has already reported and pushes VolumeAdded for anything new. Trash
// sources are never removed at runtime (a mount disappearing doesn't
// retract its trash dir's existence record), so there is no
// corresponding removal path.
func (t *TrashSource) RescanEvents() {
	for _, s := range t.agg.Sources() {
		v := trashVolume(s)
		if _, ok := t.seen[v.PlatformID]; ok {
			continue
		}
		t.seen[v.PlatformID] = struct{}{}
		select {
		case t.out <- Event{Kind: VolumeAdded, Volume: &v}:
		default:
		}
	}
}

func trashVolume(s *trash.Source) Volume {
	return Volume{
		PlatformID: "trash:" + s.TrashDir,
		Name:       "Trash (" + s.Topdir + ")",
		MountPath:  s.TrashDir,
	}
}
