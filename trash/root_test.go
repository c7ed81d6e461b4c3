package trash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddCollisionIsSilentlyDropped(t *testing.T) {
	r := NewRoot()
	first := &Item{EscapedName: "a", Size: 10}
	second := &Item{EscapedName: "a", Size: 20}

	r.Add(first)
	r.Add(second)

	got, ok := r.Lookup("a")
	require.True(t, ok)
	assert.Same(t, first, got)
	assert.Equal(t, int64(10), r.Size())
}

func TestRemoveMissIsSilentlyIgnored(t *testing.T) {
	r := NewRoot()
	assert.NotPanics(t, func() { r.Remove("nope") })
}

func TestThawDeliversNotificationsInOrder(t *testing.T) {
	r := NewRoot()
	var got []string
	r.OnNotify = func(kind notifyKind, item *Item) {
		got = append(got, item.EscapedName)
	}

	oldSize := r.Size()
	r.Add(&Item{EscapedName: "one", Size: 1})
	r.Add(&Item{EscapedName: "two", Size: 2})
	r.Remove("one")
	r.Thaw(oldSize)

	assert.Equal(t, []string{"one", "two", "one"}, got)
}

func TestThawFiresOnSizeChangedOnlyWhenSizeDiffers(t *testing.T) {
	r := NewRoot()
	calls := 0
	r.OnSizeChanged = func(int64) { calls++ }

	oldSize := r.Size()
	r.Add(&Item{EscapedName: "a", Size: 5})
	r.Thaw(oldSize)
	assert.Equal(t, 1, calls)

	oldSize = r.Size()
	r.Thaw(oldSize) // no changes since last Thaw
	assert.Equal(t, 1, calls)
}

func TestListReturnsIndependentSnapshot(t *testing.T) {
	r := NewRoot()
	r.Add(&Item{EscapedName: "a"})
	items := r.List()
	require.Len(t, items, 1)

	r.Add(&Item{EscapedName: "b"})
	assert.Len(t, items, 1)
	assert.Len(t, r.List(), 2)
}
