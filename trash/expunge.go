package trash

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// expungeIdleTimeout is how long the singleton worker waits on an
// empty queue before it exits, per its "Background expunge"
// ("an idle process eventually sheds the thread").
const expungeIdleTimeout = 60 * time.Second

// expunger is the process-wide singleton background expunge worker.
// Scheduling a directory is O(1) and never blocks the caller: it just
// adds to a set and, if no worker is running, spawns one.
type expunger struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  map[string]struct{}
	alive  bool
}

var expungeOnce sync.Once
var globalExpunger *expunger

func getExpunger() *expunger {
	expungeOnce.Do(func() {
		e := &expunger{queue: make(map[string]struct{})}
		e.cond = sync.NewCond(&e.mu)
		globalExpunger = e
	})
	return globalExpunger
}

// Expunge schedules dir for recursive-contents deletion, matching
// trash_expunge() in trashexpunge.c: add to the pending set, wake or
// spawn the single worker, and return immediately.
func Expunge(dir string) {
	e := getExpunger()

	e.mu.Lock()
	_, already := e.queue[dir]
	if !already {
		e.queue[dir] = struct{}{}
	}
	wasAlive := e.alive
	if !wasAlive {
		e.alive = true
	}
	e.mu.Unlock()

	if !wasAlive {
		go e.run()
	} else if !already {
		e.cond.Signal()
	}
}

func (e *expunger) run() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		for len(e.queue) > 0 {
			var dir string
			for d := range e.queue {
				dir = d
				break
			}
			delete(e.queue, dir)

			e.mu.Unlock()
			deleteEverythingUnder(dir)
			e.mu.Lock()
		}

		woke := waitWithTimeout(e.cond, expungeIdleTimeout)
		if !woke && len(e.queue) == 0 {
			e.alive = false
			return
		}
	}
}

// waitWithTimeout blocks on cond.Wait, returning false if timeout
// elapses with nobody signaling first. sync.Cond has no native timed
// wait, so this runs the wait on a helper goroutine and races it
// against a timer; cond.L is held both on entry and on every return
// path, matching sync.Cond.Wait's own contract.
func waitWithTimeout(cond *sync.Cond, timeout time.Duration) bool {
	woke := make(chan struct{})
	go func() {
		cond.Wait()
		close(woke)
	}()

	select {
	case <-woke:
		return true
	case <-time.After(timeout):
		cond.Broadcast() // unblock the waiter goroutine above
		<-woke
		// Wait() re-acquired cond.L for us inside the goroutine; nothing
		// further to reacquire here.
		return false
	}
}

// deleteEverythingUnder recursively chmods dir to owner-writable and
// deletes every entry inside it (not dir itself, since the caller may
// reuse it), matching trash_expunge_delete_everything_under.
func deleteEverythingUnder(dir string) {
	os.Chmod(dir, 0o700)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			deleteEverythingUnder(full)
		}
		if err := os.Remove(full); err != nil {
			logrus.WithError(err).WithField("path", full).Debug("trash: expunge delete failed")
		}
	}
}
