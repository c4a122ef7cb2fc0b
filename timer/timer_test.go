package timer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAfterDo(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	t.Cleanup(cancel)

	done := make(chan struct{})
	After(ctx, 5*time.Millisecond).Do(func(context.Context) {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for After to fire")
	}
}

func TestAfterDoneFiresOnDeadline(t *testing.T) {
	start := time.Now()
	<-After(t.Context(), 10*time.Millisecond).Done()
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestAfterDoneFiresOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	done := After(ctx, time.Hour).Done()
	cancel()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for cancellation to fire Done")
	}
}

func TestEveryDoRunsUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	count := 0
	doneCh := make(chan struct{})

	Every(ctx, 2*time.Millisecond).Do(func(context.Context) {
		count++
		if count == 3 {
			cancel()
			close(doneCh)
		}
	})

	select {
	case <-doneCh:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for Every to tick 3 times")
	}
	assert.GreaterOrEqual(t, count, 3)
}
