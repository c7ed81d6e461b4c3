package jobs

import (
	"context"
	"sync"

	"github.com/vfsfabric/corevfs/vfserr"
)

// TryFunc is a job's fast-path attempt: it may synthesize an immediate
// reply without suspending the caller's goroutine (e.g. a cached
// QueryInfo). handled reports whether Try produced a terminal result;
// if false, the dispatcher falls through to Run on the worker pool.
type TryFunc func(j *Job) (reply []any, handled bool, err error)

// RunFunc performs the (possibly blocking) work Try declined to do. It
// must observe j.CancelRequested() at reasonable intervals for
// long-running work such as Copy/Push/Pull.
type RunFunc func(ctx context.Context, j *Job) (reply []any, err error)

// Job is one in-flight method call, in the typed-job-table shape
// a Kind plus the positional arguments decoded
// off the wire, paired at construction time with the backend's Try/Run
// closures for that operation. Handler is a Job, not a goroutine, so
// Cancel is a flag the handler is expected to poll — it never aborts
// Run from the outside.
type Job struct {
	Kind   Kind
	Serial uint64
	Args   []any

	mu        sync.Mutex
	state     State
	cancelled bool
	reply     []any
	err       error

	tryFn TryFunc
	runFn RunFunc
}

// New constructs a Job of the given kind. args are the method call's
// positional arguments in wire order; tryFn may be nil if the
// operation has no meaningful fast path.
func New(kind Kind, serial uint64, args []any, tryFn TryFunc, runFn RunFunc) *Job {
	return &Job{Kind: kind, Serial: serial, Args: args, state: Queued, tryFn: tryFn, runFn: runFn}
}

// State returns the job's current lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// CancelRequested reports whether Cancel has been called, for the
// backend's Run implementation to poll cooperatively.
func (j *Job) CancelRequested() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

// Cancel marks the job cancelling. If it is still queued or running,
// its state moves to Cancelling; a job that has already produced a
// result is left alone, matching this system ("transitions any
// matching still-running job to cancelling").
func (j *Job) Cancel() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancelled = true
	if j.state == Queued || j.state == Running {
		j.state = Cancelling
	}
}

// Try attempts the fast path. It returns false (falling through to Run)
// whenever tryFn is nil or declines to handle the call.
func (j *Job) Try() bool {
	if j.tryFn == nil {
		return false
	}
	reply, handled, err := j.tryFn(j)
	if !handled {
		return false
	}
	j.finish(reply, err)
	return true
}

// Run executes the job's blocking path. The dispatcher calls this on a
// worker goroutine only after Try has declined.
func (j *Job) Run(ctx context.Context) error {
	j.mu.Lock()
	j.state = Running
	cancelled := j.cancelled
	j.mu.Unlock()
	if cancelled {
		j.finish(nil, vfserr.New(vfserr.Cancelled, "%s cancelled before run", j.Kind))
		return j.err
	}

	reply, err := j.runFn(ctx, j)
	j.finish(reply, err)
	return err
}

func (j *Job) finish(reply []any, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.reply = reply
	j.err = err
	if err != nil {
		j.state = Failed
	} else {
		j.state = Succeeded
	}
}

// CreateReply returns the job's terminal result and transitions it to
// Replied. Calling it before the job has finished returns a Pending
// error; calling it twice is a programmer error the dispatcher must
// not commit (the state machine only allows one reply per job).
func (j *Job) CreateReply() ([]any, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != Succeeded && j.state != Failed {
		return nil, vfserr.New(vfserr.Pending, "%s has not completed", j.Kind)
	}
	j.state = Replied
	return j.reply, j.err
}

// Finalize marks the job done with bookkeeping (freeing any resources
// tied to its lifetime). It is the dispatcher's last touch on the job.
func (j *Job) Finalize() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = Finalized
}
