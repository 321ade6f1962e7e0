package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_SubmitWait(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	var result int
	f := p.Submit(func() error {
		result = 42
		return nil
	})
	if err := f.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !f.Ready() {
		t.Error("Ready() = false after Wait")
	}
	// Wait establishes happens-before with the job's writes.
	if result != 42 {
		t.Errorf("result = %d, want 42", result)
	}
}

func TestPool_JobError(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	want := errors.New("layout failed")
	f := p.Submit(func() error { return want })
	if err := f.Wait(context.Background()); !errors.Is(err, want) {
		t.Errorf("Wait() = %v, want %v", err, want)
	}
	if !errors.Is(f.Err(), want) {
		t.Errorf("Err() = %v, want %v", f.Err(), want)
	}
}

func TestPool_PanicRecovered(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	f := p.Submit(func() error { panic("boom") })
	if err := f.Wait(context.Background()); !errors.Is(err, ErrJobPanic) {
		t.Errorf("Wait() = %v, want ErrJobPanic", err)
	}
}

func TestFuture_WaitContext(t *testing.T) {
	p := NewPool(1)

	release := make(chan struct{})
	f := p.Submit(func() error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want DeadlineExceeded", err)
	}
	if f.Ready() {
		t.Error("Ready() = true while job is blocked")
	}

	close(release)
	<-f.Done()
	p.Close()
}

func TestPool_CloseDrains(t *testing.T) {
	p := NewPool(2)

	var n atomic.Int32
	futures := make([]*Future, 16)
	for i := range futures {
		futures[i] = p.Submit(func() error {
			n.Add(1)
			return nil
		})
	}
	p.Close()

	if got := n.Load(); got != 16 {
		t.Errorf("jobs run = %d, want 16", got)
	}
	for i, f := range futures {
		if !f.Ready() {
			t.Errorf("future %d not ready after Close", i)
		}
	}

	f := p.Submit(func() error { return nil })
	if !errors.Is(f.Err(), ErrPoolClosed) {
		t.Errorf("Submit after Close = %v, want ErrPoolClosed", f.Err())
	}
	p.Close()
}

func TestPool_NoJobsAfterClose(t *testing.T) {
	p := NewPool(2)
	p.Close()

	var ran atomic.Bool
	for range 8 {
		f := p.Submit(func() error {
			ran.Store(true)
			return nil
		})
		if err := f.Wait(context.Background()); !errors.Is(err, ErrPoolClosed) {
			t.Fatalf("Wait after Close = %v, want ErrPoolClosed", err)
		}
	}
	time.Sleep(10 * time.Millisecond)
	if ran.Load() {
		t.Error("job ran after Close")
	}
}

func TestCompleted(t *testing.T) {
	f := Completed(nil)
	if !f.Ready() {
		t.Fatal("Completed future not ready")
	}
	if err := f.Wait(context.Background()); err != nil {
		t.Errorf("Wait() = %v, want nil", err)
	}
}
