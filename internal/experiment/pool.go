package experiment

import (
	"context"
	"sync"
)

// Pool runs tasks on a fixed set of worker goroutines over a bounded
// queue. Admission is split from enqueueing: callers reserve a slot with
// TryAcquire before creating any durable state, so a Busy rejection leaves
// nothing behind.
type Pool struct {
	slots chan struct{}
	tasks chan func(context.Context)

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewPool creates a pool of workers over a queue bounded at queueSize
// tasks (queued plus running).
func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	p := &Pool{
		slots:  make(chan struct{}, queueSize),
		tasks:  make(chan func(context.Context), queueSize),
		stopCh: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.workerLoop()
	}
	return p
}

// TryAcquire reserves a queue slot. It never blocks; false means the pool
// is saturated (or stopped) and the caller must reject with backpressure.
func (p *Pool) TryAcquire() bool {
	select {
	case <-p.stopCh:
		return false
	default:
	}
	select {
	case p.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release returns a slot reserved by TryAcquire. Tasks submitted via
// Submit release their own slot on completion; call Release directly only
// when abandoning a reservation.
func (p *Pool) Release() { <-p.slots }

// Submit enqueues a task under a slot already reserved with TryAcquire.
// The task's slot is released when it finishes.
func (p *Pool) Submit(task func(context.Context)) {
	p.tasks <- task
}

// Stop rejects further admissions and waits for in-flight tasks to finish.
// Queued tasks that have not started are dropped.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
}

func (p *Pool) workerLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case task := <-p.tasks:
			// Tasks run detached from the submitting request, so they get
			// a fresh context rather than the caller's.
			task(context.Background())
			p.Release()
		}
	}
}
