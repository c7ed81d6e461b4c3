package jobs

import "golang.org/x/sync/errgroup"

// Pool is the fixed-size worker pool the Backend Job Dispatcher runs a
// Job's Run method on once Try has declined it ("the dispatcher runs
// it on a worker thread pool when try declines"). It is fed by an
// unbuffered channel and backed by an errgroup.Group of a fixed
// number of workers, the same bounded-fan-out shape rclone's transfer
// queue uses (accounting.go's token-bucket-gated transfer goroutines)
// rather than spawning one goroutine per inbound call.
type Pool struct {
	tasks chan func()
	grp   *errgroup.Group
}

// NewPool starts size worker goroutines pulling from a shared task
// channel. size must be at least 1.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{tasks: make(chan func())}
	grp := new(errgroup.Group)
	for i := 0; i < size; i++ {
		grp.Go(func() error {
			for fn := range p.tasks {
				fn()
			}
			return nil
		})
	}
	p.grp = grp
	return p
}

// Submit enqueues fn, blocking until a worker picks it up. A slow job
// holds one worker; it never blocks unrelated calls from reaching the
// other size-1 workers, unlike running Run directly on the connection's
// dispatch goroutine.
func (p *Pool) Submit(fn func()) {
	p.tasks <- fn
}

// RunSync submits fn and blocks until it has finished, for call sites
// (the peer method handler) that must return a reply synchronously but
// still want the actual work bounded by the pool rather than running
// inline on the handler's own goroutine.
func (p *Pool) RunSync(fn func()) {
	done := make(chan struct{})
	p.Submit(func() {
		defer close(done)
		fn()
	})
	<-done
}

// Close stops accepting new work and waits for every worker to drain
// the channel and exit. Submitting after Close panics, matching a
// closed-channel send; callers must stop submitting before closing.
func (p *Pool) Close() {
	close(p.tasks)
	_ = p.grp.Wait()
}
