package volume

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	name    string
	vols    []Volume
	drives  []Drive
	events  chan Event
}

func newFakeSource(name string) *fakeSource {
	return &fakeSource{name: name, events: make(chan Event, 8)}
}

func (f *fakeSource) Name() string                    { return f.name }
func (f *fakeSource) Snapshot() ([]Volume, []Drive)    { return f.vols, f.drives }
func (f *fakeSource) Events() <-chan Event             { return f.events }

func TestAddSourceMergesInitialSnapshot(t *testing.T) {
	src := newFakeSource("tracker")
	src.vols = []Volume{{PlatformID: "dev-sda1", Name: "root"}}
	src.drives = []Drive{{PlatformID: "dev-sda", Name: "disk0"}}

	u := New()
	u.AddSource(src)

	assert.Len(t, u.Volumes(), 1)
	assert.Len(t, u.Drives(), 1)
}

func TestAddSourceDedupesSharedPlatformID(t *testing.T) {
	a := newFakeSource("tracker")
	a.vols = []Volume{{PlatformID: "dev-sda1", Name: "root"}}
	b := newFakeSource("trash")
	b.vols = []Volume{{PlatformID: "dev-sda1", Name: "root (trash view)"}}

	u := New()
	u.AddSource(a)
	u.AddSource(b)

	assert.Len(t, u.Volumes(), 1, "a volume shared across two sources must only surface once")
}

func TestRemoveVolumeRequiresAllSourcesToDrop(t *testing.T) {
	a := newFakeSource("tracker")
	a.vols = []Volume{{PlatformID: "dev-sda1", Name: "root"}}
	b := newFakeSource("trash")
	b.vols = []Volume{{PlatformID: "dev-sda1", Name: "root"}}

	u := New()
	u.AddSource(a)
	u.AddSource(b)
	require.Len(t, u.Volumes(), 1)

	v := Volume{PlatformID: "dev-sda1"}
	a.events <- Event{Kind: VolumeRemoved, Volume: &v}
	waitForCondition(t, func() bool { return true }) // let pump observe

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, u.Volumes(), 1, "still referenced by source b")

	b.events <- Event{Kind: VolumeRemoved, Volume: &v}
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(u.Volumes()) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("volume was never fully removed once all sources dropped it")
}

func TestEventIsEmittedOnAddOfNewVolume(t *testing.T) {
	u := New()
	src := newFakeSource("tracker")
	u.AddSource(src)

	v := Volume{PlatformID: "usb-1", Name: "usb drive"}
	src.events <- Event{Kind: VolumeAdded, Volume: &v}

	select {
	case ev := <-u.Events():
		assert.Equal(t, VolumeAdded, ev.Kind)
		assert.Equal(t, "usb-1", ev.Volume.PlatformID)
	case <-time.After(time.Second):
		t.Fatal("VolumeAdded was never forwarded")
	}
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	if !cond() {
		t.Fatal("condition never became true")
	}
}
