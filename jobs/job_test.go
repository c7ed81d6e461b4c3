package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfsfabric/corevfs/vfserr"
)

func TestTryHandlesWithoutRunning(t *testing.T) {
	ranCalled := false
	j := NewQueryInfo(1, "/a", "*",
		func(j *Job) ([]any, bool, error) { return []any{"info"}, true, nil },
		func(ctx context.Context, j *Job) ([]any, error) {
			ranCalled = true
			return nil, nil
		})

	handled := j.Try()
	assert.True(t, handled)
	assert.False(t, ranCalled)
	assert.Equal(t, Succeeded, j.State())

	reply, err := j.CreateReply()
	require.NoError(t, err)
	assert.Equal(t, []any{"info"}, reply)
	assert.Equal(t, Replied, j.State())
}

func TestTryDeclinesFallsThroughToRun(t *testing.T) {
	j := NewRead(1, "handle", 4096,
		func(j *Job) ([]any, bool, error) { return nil, false, nil },
		func(ctx context.Context, j *Job) ([]any, error) { return []any{[]byte("data")}, nil })

	assert.False(t, j.Try())
	assert.Equal(t, Queued, j.State())

	err := j.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Succeeded, j.State())
}

func TestRunFailureSetsFailedState(t *testing.T) {
	j := NewDelete(1, "/a",
		nil,
		func(ctx context.Context, j *Job) ([]any, error) {
			return nil, vfserr.New(vfserr.PermissionDenied, "nope")
		})

	err := j.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, Failed, j.State())

	_, err = j.CreateReply()
	assert.Equal(t, vfserr.PermissionDenied, vfserr.KindOf(err))
}

func TestCancelBeforeRunShortCircuitsToCancelled(t *testing.T) {
	ranCalled := false
	j := NewCopy(1, "/a", "/b", 0,
		nil,
		func(ctx context.Context, j *Job) ([]any, error) {
			ranCalled = true
			return nil, nil
		})

	j.Cancel()
	assert.Equal(t, Cancelling, j.State())

	err := j.Run(context.Background())
	require.Error(t, err)
	assert.False(t, ranCalled)
	assert.Equal(t, vfserr.Cancelled, vfserr.KindOf(err))
}

func TestCancelDuringRunIsCooperative(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})
	j := NewPull(1, "/remote", "/local", 0,
		nil,
		func(ctx context.Context, j *Job) ([]any, error) {
			close(started)
			<-cancelled
			if j.CancelRequested() {
				return nil, vfserr.New(vfserr.Cancelled, "observed cancel")
			}
			return []any{"done"}, nil
		})

	go func() {
		<-started
		j.Cancel()
		close(cancelled)
	}()
	err := j.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, vfserr.Cancelled, vfserr.KindOf(err))
}

func TestCreateReplyBeforeCompletionIsPending(t *testing.T) {
	j := NewQueryFsInfo(1, "/", "*", nil, func(ctx context.Context, j *Job) ([]any, error) {
		return []any{"fsinfo"}, nil
	})

	_, err := j.CreateReply()
	require.Error(t, err)
	assert.Equal(t, vfserr.Pending, vfserr.KindOf(err))
}

func TestFinalizeTransitionsState(t *testing.T) {
	j := NewUnmount(1, 0, func(j *Job) ([]any, bool, error) { return nil, true, nil }, nil)
	j.Try()
	_, _ = j.CreateReply()
	j.Finalize()
	assert.Equal(t, Finalized, j.State())
}
