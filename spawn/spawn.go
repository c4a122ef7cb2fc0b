// Package spawn starts new OS threads of execution: each one locks its own
// OS thread, installs a fresh fiber.Scheduler, and runs the caller's entry
// function as that scheduler's root fiber. The caller gets back a Channel
// that serves as the new thread's inbox.
package spawn

import (
	"context"
	"fmt"

	"github.com/ezex-io/actorfiber/channel"
	"github.com/ezex-io/actorfiber/fiber"
	"github.com/ezex-io/actorfiber/logger"
	"github.com/ezex-io/actorfiber/retry"
)

// Entry is the function a spawned thread runs as its root fiber. It
// receives the thread's own inbox and a context carrying the installed
// fiber.Scheduler.
type Entry func(ctx context.Context, inbox *channel.Channel)

type threadNameKey struct{}

// ThreadName returns the name given to the thread that owns ctx, via
// WithName, if any. The pipeline registry's LocateCurrent uses this to
// resolve "locate() defaults to current-thread name" without Go exposing a
// portable OS-thread id to key on.
func ThreadName(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(threadNameKey{}).(string)

	return name, ok && name != ""
}

func withThreadName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, threadNameKey{}, name)
}

type options struct {
	capacity int
	name     string
}

// Option configures Thread and Supervised.
type Option func(*options)

// defaultCapacity matches the spec's default inbox size for a freshly
// spawned thread.
const defaultCapacity = channel.DefaultCapacity

// WithCapacity sets the new thread's inbox capacity.
func WithCapacity(capacity int) Option {
	return func(o *options) {
		if capacity >= 0 {
			o.capacity = capacity
		}
	}
}

// WithName labels the thread's inbox for logging and registry lookups.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// Thread starts a new OS thread running entry as its root fiber and returns
// the inbox other threads use to send it envelopes. The thread runs until
// entry returns and every fiber it spawned has finished, at which point its
// inbox is closed.
func Thread(ctx context.Context, entry Entry, opts ...Option) *channel.Channel {
	cfg := options{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}

	inbox := channel.New(cfg.capacity, channel.WithName(cfg.name))
	namedCtx := withThreadName(ctx, cfg.name)

	go func() {
		defer inbox.Close()

		fiber.Start(namedCtx, func(fctx context.Context) {
			entry(fctx, inbox)
		})
	}()

	return inbox
}

// Supervised behaves like Thread, but restarts entry from scratch if it
// panics, up to the attempt bound configured via retryOpts. The inbox
// handle returned to callers stays valid across restarts: a panicking
// thread's in-flight messages are lost, but senders keep using the same
// Channel.
func Supervised(ctx context.Context, entry Entry, retryOpts []retry.SyncOptions, opts ...Option) *channel.Channel {
	cfg := options{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}

	inbox := channel.New(cfg.capacity, channel.WithName(cfg.name))
	namedCtx := withThreadName(ctx, cfg.name)

	asyncOpts := make([]retry.AsyncOptions, len(retryOpts))
	for i, opt := range retryOpts {
		asyncOpts[i] = retry.AsyncOptions(opt)
	}

	retry.ExecuteAsync(ctx, func() (runErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("supervised thread panicked, restarting",
					"name", cfg.name, "panic", r)

				runErr = panicError{value: r}
			}
		}()

		var recovered any

		fiber.Start(namedCtx, func(fctx context.Context) {
			// entry runs on the root fiber's own goroutine; catch its panic
			// there and re-raise it here, where the deferred recover sees it.
			defer func() { recovered = recover() }()

			entry(fctx, inbox)
		})

		if recovered != nil {
			panic(recovered)
		}

		return nil
	}, func() {
		inbox.Close()
	}, func(err error) {
		logger.Error("supervised thread exhausted restart attempts",
			"name", cfg.name, "error", err)

		inbox.Close()
	}, asyncOpts...)

	return inbox
}

// panicError adapts a recovered panic value to the error interface so it
// can flow through retry.ExecuteAsync's error-based control flow.
type panicError struct {
	value any
}

func (p panicError) Error() string {
	if err, ok := p.value.(error); ok {
		return err.Error()
	}

	return fmt.Sprintf("panic: %v", p.value)
}
