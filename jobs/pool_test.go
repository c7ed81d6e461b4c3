package jobs

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoolRunSyncBlocksUntilDone(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	var ran int32
	p.RunSync(func() { atomic.StoreInt32(&ran, 1) })
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	var inFlight, maxSeen int32
	bump := func() {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			cur := atomic.LoadInt32(&maxSeen)
			if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
	}

	done := make(chan struct{}, 6)
	for i := 0; i < 6; i++ {
		go func() {
			p.RunSync(bump)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&maxSeen), int32(2))
}

func TestPoolOneSlowTaskDoesNotBlockAnother(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	slowDone := make(chan struct{})
	go p.RunSync(func() {
		time.Sleep(50 * time.Millisecond)
		close(slowDone)
	})

	fastDone := make(chan struct{})
	time.AfterFunc(5*time.Millisecond, func() {
		p.RunSync(func() { close(fastDone) })
	})

	select {
	case <-fastDone:
	case <-time.After(40 * time.Millisecond):
		t.Fatal("fast task was blocked by the slow one")
	}
	<-slowDone
}
