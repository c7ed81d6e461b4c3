package rpcengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestCancelTokenIsIdempotentAndPollable(t *testing.T) {
	tok, err := NewCancelToken()
	require.NoError(t, err)
	defer tok.Close()

	assert.False(t, tok.IsCancelled())

	tok.Cancel()
	tok.Cancel() // must not panic or double-close

	assert.True(t, tok.IsCancelled())
	select {
	case <-tok.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() channel never closed")
	}

	pfds := []unix.PollFd{{Fd: int32(tok.WaitFD()), Events: unix.POLLIN}}
	n, err := unix.Poll(pfds, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotZero(t, pfds[0].Revents&unix.POLLIN)
}

func TestCancelTokenNotCancelledDoesNotPollReady(t *testing.T) {
	tok, err := NewCancelToken()
	require.NoError(t, err)
	defer tok.Close()

	pfds := []unix.PollFd{{Fd: int32(tok.WaitFD()), Events: unix.POLLIN}}
	n, err := unix.Poll(pfds, 50)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
