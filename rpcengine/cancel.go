package rpcengine

import (
	"os"
	"sync"

	"github.com/vfsfabric/corevfs/vfserr"
)

// CancelToken is a one-shot cancellation signal shared between a caller
// and whichever engine is carrying out its call. It exposes two faces
// of the same event: a Go channel for the Async Call Engine's
// select-based goroutines, and a pollable file descriptor for the Sync
// Call Engine, which polls it with unix.Poll on a short timeout and
// checks for the call's reply between polls.
type CancelToken struct {
	once sync.Once
	done chan struct{}
	r, w *os.File
}

// NewCancelToken allocates a self-pipe backed cancel token. Callers
// that never need the poll-fd form (e.g. anything only using the async
// engine) may ignore WaitFD and just read Done().
func NewCancelToken() (*CancelToken, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, vfserr.Wrap(vfserr.Failed, err, "allocate cancel token self-pipe")
	}
	return &CancelToken{done: make(chan struct{}), r: r, w: w}, nil
}

// Cancel fires the token. It is idempotent; the second and later calls
// are no-ops.
func (t *CancelToken) Cancel() {
	t.once.Do(func() {
		close(t.done)
		_, _ = t.w.Write([]byte{0})
	})
}

// Done returns a channel closed the moment Cancel is called, for
// select-based waiters.
func (t *CancelToken) Done() <-chan struct{} { return t.done }

// IsCancelled reports whether Cancel has already fired.
func (t *CancelToken) IsCancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// WaitFD is the read end of the self-pipe, readable (and pollable) the
// moment Cancel fires. The Sync Call Engine polls it while it waits
// for a reply.
func (t *CancelToken) WaitFD() int { return int(t.r.Fd()) }

// Close releases the self-pipe. Safe to call after Cancel.
func (t *CancelToken) Close() error {
	err1 := t.r.Close()
	err2 := t.w.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
