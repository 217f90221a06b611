package experiment

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_RunsTasks(t *testing.T) {
	p := NewPool(2, 4)
	defer p.Stop()

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		if !p.TryAcquire() {
			t.Fatalf("TryAcquire %d = false, want true", i)
		}
		wg.Add(1)
		p.Submit(func(context.Context) {
			ran.Add(1)
			wg.Done()
		})
	}
	wg.Wait()
	if got := ran.Load(); got != 4 {
		t.Errorf("ran = %d, want 4", got)
	}
}

func TestPool_TryAcquireSaturation(t *testing.T) {
	p := NewPool(1, 2)
	defer p.Stop()

	block := make(chan struct{})
	for i := 0; i < 2; i++ {
		if !p.TryAcquire() {
			t.Fatalf("TryAcquire %d = false, want true", i)
		}
		p.Submit(func(context.Context) { <-block })
	}

	if p.TryAcquire() {
		t.Error("TryAcquire = true on a saturated pool")
	}

	close(block)
	deadline := time.Now().Add(5 * time.Second)
	for !p.TryAcquire() {
		if time.Now().After(deadline) {
			t.Fatal("slot never freed after tasks completed")
		}
		time.Sleep(time.Millisecond)
	}
	p.Release()
}

func TestPool_ReleaseAbandonsReservation(t *testing.T) {
	p := NewPool(1, 1)
	defer p.Stop()

	if !p.TryAcquire() {
		t.Fatal("TryAcquire = false, want true")
	}
	p.Release()
	if !p.TryAcquire() {
		t.Error("TryAcquire = false after Release, want true")
	}
	p.Release()
}

func TestPool_StopRejectsAdmission(t *testing.T) {
	p := NewPool(1, 1)
	p.Stop()
	if p.TryAcquire() {
		t.Error("TryAcquire = true on a stopped pool")
	}
}

func TestPool_StopWaitsForInFlight(t *testing.T) {
	p := NewPool(1, 1)

	started := make(chan struct{})
	var done atomic.Bool
	if !p.TryAcquire() {
		t.Fatal("TryAcquire = false, want true")
	}
	p.Submit(func(context.Context) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		done.Store(true)
	})

	<-started
	p.Stop()
	if !done.Load() {
		t.Error("Stop returned before the in-flight task finished")
	}
}
