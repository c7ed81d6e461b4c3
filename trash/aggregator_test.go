package trash

import (
	"testing"

	"github.com/moby/sys/mountinfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAggregatorCreatesAndTracksHomedirSource(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	agg, err := NewAggregator(nil)
	require.NoError(t, err)
	defer agg.Close()

	trashDir := HomedirTrashDir(home)
	assert.DirExists(t, trashDir)

	sources := agg.Sources()
	require.Len(t, sources, 1)
	assert.True(t, sources[0].IsHomedir)
	assert.Equal(t, trashDir, sources[0].TrashDir)
}

func TestAggregatorRescanIsIdempotentForTrackedMounts(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	agg, err := NewAggregator(nil)
	require.NoError(t, err)
	defer agg.Close()

	require.NoError(t, agg.Rescan())
	require.NoError(t, agg.Rescan())

	// The homedir source stays the one and only tracked source across
	// repeated rescans; Rescan must never add a second source for a
	// trash dir it already tracks.
	assert.Len(t, agg.Sources(), 1)
}

func TestAggregatorSourcesReturnsACopy(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	agg, err := NewAggregator(nil)
	require.NoError(t, err)
	defer agg.Close()

	got := agg.Sources()
	got[0] = nil

	assert.NotNil(t, agg.Sources()[0], "mutating the returned slice must not affect the aggregator's own state")
}

func TestMountUserVisibleExcludesPseudoFilesystems(t *testing.T) {
	for _, fsType := range []string{"proc", "sysfs", "tmpfs", "overlay"} {
		assert.False(t, mountUserVisible(&mountinfo.Info{FSType: fsType}))
	}
	assert.True(t, mountUserVisible(&mountinfo.Info{FSType: "ext4"}))
}
