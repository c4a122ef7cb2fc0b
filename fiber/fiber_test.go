package fiber

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSpawnOutsideSchedulerRunsAsGoroutine(t *testing.T) {
	done := make(chan struct{})

	Spawn(t.Context(), func(ctx context.Context) {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("spawned function never ran")
	}
}

func TestYieldOutsideSchedulerIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		Yield(t.Context())
	})
}

func TestStartRunsEntryAndReturnsOnFinish(t *testing.T) {
	ran := false

	Start(t.Context(), func(ctx context.Context) {
		ran = true
	})

	assert.True(t, ran)
}

func TestStartWaitsForSpawnedFibers(t *testing.T) {
	var mu sync.Mutex
	order := make([]string, 0, 2)

	Start(t.Context(), func(ctx context.Context) {
		Spawn(ctx, func(ctx context.Context) {
			Yield(ctx)
			mu.Lock()
			order = append(order, "child")
			mu.Unlock()
		})

		Yield(ctx)
		Yield(ctx)

		mu.Lock()
		order = append(order, "root")
		mu.Unlock()
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, order, 2)
	assert.Contains(t, order, "child")
	assert.Contains(t, order, "root")
}

func TestFromContextReturnsInstalledScheduler(t *testing.T) {
	var seen *Scheduler

	Start(t.Context(), func(ctx context.Context) {
		seen = FromContext(ctx)
	})

	assert.NotNil(t, seen)
}

func TestConditionWaitNotify(t *testing.T) {
	var mu sync.Mutex
	woke := false

	Start(t.Context(), func(ctx context.Context) {
		cond := NewCondition(ctx)

		Spawn(ctx, func(ctx context.Context) {
			cond.Wait(ctx)
			mu.Lock()
			woke = true
			mu.Unlock()
		})

		Yield(ctx)
		cond.Notify()
	})

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, woke)
}

func TestConditionWaitWakesOnContextCancellation(t *testing.T) {
	var mu sync.Mutex
	var waitErr error

	Start(t.Context(), func(ctx context.Context) {
		cond := NewCondition(ctx)

		// Spawn is the only other fiber; once the root returns, the
		// spawned fiber is the one left holding the baton. Nobody ever
		// calls Notify/NotifyAll, so the waiter must resume solely
		// because its own ctx expired, and the scheduler's kick must pick
		// it up with nobody else left to drive dispatch.
		Spawn(ctx, func(ctx context.Context) {
			waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
			defer cancel()

			cond.Wait(waitCtx)

			mu.Lock()
			waitErr = waitCtx.Err()
			mu.Unlock()
		})
	})

	mu.Lock()
	defer mu.Unlock()
	assert.ErrorIs(t, waitErr, context.DeadlineExceeded)
}

func TestParkerWakeBeforeParkStillParksAndResumes(t *testing.T) {
	var mu sync.Mutex
	woke := false

	Start(t.Context(), func(ctx context.Context) {
		parker := NewParker(ctx)

		// Wake fires before Park is ever called; Park must still return
		// promptly instead of blocking forever on a missed signal.
		parker.Wake()
		parker.Park(ctx)

		mu.Lock()
		woke = true
		mu.Unlock()
	})

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, woke)
}

func TestParkerWakeFromAuxiliaryGoroutineResumesFiber(t *testing.T) {
	var mu sync.Mutex
	woke := false

	Start(t.Context(), func(ctx context.Context) {
		parker := NewParker(ctx)

		go func() {
			time.Sleep(10 * time.Millisecond)
			parker.Wake()
		}()

		parker.Park(ctx)

		mu.Lock()
		woke = true
		mu.Unlock()
	})

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, woke)
}

func TestParkerParkWakesOnContextCancellation(t *testing.T) {
	var mu sync.Mutex
	var parkErr error

	Start(t.Context(), func(ctx context.Context) {
		parker := NewParker(ctx)

		parkCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()

		parker.Park(parkCtx)

		mu.Lock()
		parkErr = parkCtx.Err()
		mu.Unlock()
	})

	mu.Lock()
	defer mu.Unlock()
	assert.ErrorIs(t, parkErr, context.DeadlineExceeded)
}

func TestConditionNotifyAllWakesEveryWaiter(t *testing.T) {
	const n = 3

	var mu sync.Mutex
	woken := 0

	Start(t.Context(), func(ctx context.Context) {
		cond := NewCondition(ctx)

		for i := 0; i < n; i++ {
			Spawn(ctx, func(ctx context.Context) {
				cond.Wait(ctx)
				mu.Lock()
				woken++
				mu.Unlock()
			})
		}

		for i := 0; i < n; i++ {
			Yield(ctx)
		}

		cond.NotifyAll()
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, n, woken)
}
