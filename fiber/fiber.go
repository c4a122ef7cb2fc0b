// Package fiber implements a cooperative scheduler. A Scheduler runs many
// logical fibers, each on its own goroutine, and passes a baton token from
// fiber to fiber; at any instant exactly one fiber belonging to a given
// Scheduler is actually running. Start locks the calling goroutine to its
// OS thread while the Scheduler runs; the fibers' own goroutines are not
// locked, so the Go runtime may run them on any OS thread.
//
// Code that never calls Start runs with no installed Scheduler: Spawn and
// Yield degrade to plain goroutines and a no-op respectively, so the rest
// of this module works identically whether or not a fiber scheduler is in
// play, per the spec's own "fiberless" fallback.
package fiber

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ezex-io/actorfiber/logger"
)

// State is a fiber's position in its lifecycle.
type State int

const (
	// StateReady means the fiber is queued and waiting for a turn.
	StateReady State = iota
	// StateRunning means the fiber currently holds the baton.
	StateRunning
	// StateWaiting means the fiber has parked on a Condition or a Parker.
	StateWaiting
	// StateFinished means the fiber's entry function has returned.
	StateFinished
)

var fiberSerial atomic.Uint64

// Fiber is one logical thread of control cooperatively scheduled by a
// Scheduler. Callers never construct a Fiber directly; Start and Spawn do.
type Fiber struct {
	id    uint64
	sched *Scheduler
	turn  chan struct{}

	mu    sync.Mutex
	state State
}

// ID returns a process-unique identifier for the fiber.
func (f *Fiber) ID() uint64 {
	return f.id
}

func (f *Fiber) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// Scheduler owns the ready queue for a single locked OS thread's worth of
// fibers and hands the baton from one to the next.
type Scheduler struct {
	mu      sync.Mutex
	ready   []*Fiber
	alive   map[uint64]*Fiber
	current *Fiber
	done    chan struct{}
}

func newScheduler() *Scheduler {
	return &Scheduler{
		alive: make(map[uint64]*Fiber),
		done:  make(chan struct{}),
	}
}

func (s *Scheduler) newFiber() *Fiber {
	f := &Fiber{
		id:    fiberSerial.Add(1),
		sched: s,
		turn:  make(chan struct{}, 1),
		state: StateReady,
	}

	s.mu.Lock()
	s.alive[f.id] = f
	s.mu.Unlock()

	return f
}

// dispatch hands the baton to the next ready fiber, if any. It must be
// called by the fiber giving up the baton (on yield, park, or finish), not
// by an external goroutine.
func (s *Scheduler) dispatch() {
	s.mu.Lock()
	if len(s.ready) == 0 {
		s.current = nil
		s.mu.Unlock()

		return
	}

	next := s.ready[0]
	s.ready = s.ready[1:]
	next.setState(StateRunning)
	s.current = next
	s.mu.Unlock()

	next.turn <- struct{}{}
}

// kick hands the baton to the next ready fiber, but only if the scheduler
// is currently idle (current == nil). It is the external-goroutine-safe
// counterpart to dispatch: Wake, Notify and NotifyAll may run on a
// goroutine that is not itself a fiber of this scheduler, with no other
// fiber left to eventually call dispatch on the newly-ready fiber's
// behalf — a lone fiber with no siblings that parks on a Parker or
// Condition would never be resumed otherwise. If some fiber is currently
// running, kick is a no-op: that fiber's own next dispatch call will find
// the ready entry, so handing off concurrently here would let two fibers
// run at once and break the single-baton invariant.
func (s *Scheduler) kick() {
	s.mu.Lock()
	if s.current != nil || len(s.ready) == 0 {
		s.mu.Unlock()

		return
	}

	next := s.ready[0]
	s.ready = s.ready[1:]
	next.setState(StateRunning)
	s.current = next
	s.mu.Unlock()

	next.turn <- struct{}{}
}

func (s *Scheduler) enqueueReady(f *Fiber) {
	f.setState(StateReady)

	s.mu.Lock()
	s.ready = append(s.ready, f)
	s.mu.Unlock()
}

func (s *Scheduler) onFinish(f *Fiber) {
	f.setState(StateFinished)

	s.mu.Lock()
	delete(s.alive, f.id)
	remaining := len(s.alive)
	s.mu.Unlock()

	if remaining == 0 {
		close(s.done)

		return
	}

	s.dispatch()
}

// Wait blocks until every fiber started under this scheduler (the root
// entry and every fiber Spawn-ed from it) has finished.
func (s *Scheduler) Wait() {
	<-s.done
}

type schedulerKey struct{}
type fiberKey struct{}

// WithScheduler attaches s to ctx so Spawn and Yield can find it.
func WithScheduler(ctx context.Context, s *Scheduler) context.Context {
	return context.WithValue(ctx, schedulerKey{}, s)
}

// FromContext returns the Scheduler installed on ctx, or nil if none.
func FromContext(ctx context.Context) *Scheduler {
	s, _ := ctx.Value(schedulerKey{}).(*Scheduler)

	return s
}

func withFiber(ctx context.Context, f *Fiber) context.Context {
	return context.WithValue(ctx, fiberKey{}, f)
}

func currentFiber(ctx context.Context) *Fiber {
	f, _ := ctx.Value(fiberKey{}).(*Fiber)

	return f
}

// Start locks the calling goroutine's OS thread and runs entry as the root
// fiber of a fresh Scheduler, blocking until entry and every fiber it
// transitively spawned have finished. The Scheduler is reachable from
// entry's context via FromContext.
func Start(ctx context.Context, entry func(ctx context.Context)) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	s := newScheduler()
	root := s.newFiber()
	s.current = root

	fctx := withFiber(WithScheduler(ctx, s), root)

	go func() {
		<-root.turn
		entry(fctx)
		s.onFinish(root)
	}()

	root.turn <- struct{}{}
	s.Wait()
}

// Spawn starts fn as a new fiber cooperatively scheduled alongside the
// caller. If ctx carries no Scheduler, fn runs as an ordinary goroutine
// instead, so Spawn is safe to call from code that may or may not be
// running under Start.
func Spawn(ctx context.Context, fn func(ctx context.Context)) {
	s := FromContext(ctx)
	if s == nil {
		go fn(ctx)

		return
	}

	f := s.newFiber()
	s.enqueueReady(f)

	childCtx := withFiber(ctx, f)

	go func() {
		<-f.turn
		fn(childCtx)
		s.onFinish(f)
	}()
}

// Yield gives up the baton, allowing another ready fiber to run, and blocks
// until it is this fiber's turn again. Outside a Scheduler it is a no-op,
// so library code can call Yield unconditionally.
func Yield(ctx context.Context) {
	s := FromContext(ctx)
	f := currentFiber(ctx)

	if s == nil || f == nil {
		return
	}

	s.enqueueReady(f)
	s.dispatch()
	<-f.turn
}

// Parker is a one-shot wake signal bound to a single fiber, for code that
// starts some work on an auxiliary, unlocked goroutine and needs to park
// the calling fiber until that goroutine is done. Unlike Condition, whose
// Notify/NotifyAll only wake fibers already registered as waiters, a
// Parker's Wake is safe to call at any time relative to Park — before,
// during, or after — so pairing a Parker with a background goroutine that
// wakes it can never lose the wakeup, even though the goroutine and the
// fiber genuinely run concurrently (something Condition does not need to
// tolerate: it assumes only one fiber per Scheduler ever runs at a time).
type Parker struct {
	f     *Fiber
	sched *Scheduler
	once  sync.Once
}

// NewParker binds a Parker to ctx's current fiber.
func NewParker(ctx context.Context) *Parker {
	f := currentFiber(ctx)
	s := FromContext(ctx)
	if s == nil || f == nil {
		panic("fiber: NewParker called outside a scheduler")
	}

	return &Parker{f: f, sched: s}
}

// Wake re-enqueues the bound fiber as ready. Safe to call from any
// goroutine, any number of times and at any time relative to Park; only
// the first call has an effect.
func (p *Parker) Wake() {
	p.once.Do(func() {
		p.sched.enqueueReady(p.f)
		p.sched.kick()
	})
}

// Park gives up the baton and blocks until Wake is called — by anyone, at
// any time, including before Park runs — or until ctx is done, whichever
// comes first.
func (p *Parker) Park(ctx context.Context) {
	p.f.setState(StateWaiting)

	stop := make(chan struct{})
	defer close(stop)

	go func() {
		select {
		case <-ctx.Done():
			p.Wake()
		case <-stop:
		}
	}()

	p.sched.dispatch()
	<-p.f.turn
}

// Condition parks and wakes fibers belonging to a single Scheduler, the
// fiber-cooperative analogue of sync.Cond.
type Condition struct {
	sched *Scheduler

	mu      sync.Mutex
	waiters []*Fiber
}

// NewCondition returns a Condition bound to ctx's Scheduler. Wait, Notify
// and NotifyAll panic if called outside a Scheduler; conditions are a
// fiber-only primitive, unlike Yield which tolerates running bare.
func NewCondition(ctx context.Context) *Condition {
	s := FromContext(ctx)
	if s == nil {
		logger.Warn("fiber.NewCondition called without an installed scheduler")
	}

	return &Condition{sched: s}
}

// Wait parks the calling fiber until Notify or NotifyAll wakes it, or until
// ctx is done, whichever comes first. A ctx-triggered wake re-enqueues the
// fiber exactly as Notify would: it still resumes only once the scheduler
// actually hands it the baton, so the single-baton invariant holds even
// when the reason for waking was cancellation rather than a real signal.
func (c *Condition) Wait(ctx context.Context) {
	f := currentFiber(ctx)
	if c.sched == nil || f == nil {
		panic("fiber: Condition.Wait called outside a scheduler")
	}

	f.setState(StateWaiting)

	c.mu.Lock()
	c.waiters = append(c.waiters, f)
	c.mu.Unlock()

	stop := make(chan struct{})
	defer close(stop)

	go func() {
		select {
		case <-ctx.Done():
			c.wake(f)
		case <-stop:
		}
	}()

	c.sched.dispatch()
	<-f.turn
}

// wake removes f from the waiters list and re-enqueues it as ready. It is a
// no-op if f has already been woken by Notify, NotifyAll, or a previous
// call to wake.
func (c *Condition) wake(f *Fiber) {
	c.mu.Lock()
	for i, w := range c.waiters {
		if w == f {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			c.mu.Unlock()

			c.sched.enqueueReady(f)
			c.sched.kick()

			return
		}
	}
	c.mu.Unlock()
}

// Notify wakes at most one waiting fiber, moving it back onto the ready
// queue. If some fiber is currently running, the woken fiber runs on its
// next turn like any other ready fiber; if the scheduler is idle (Notify
// called from outside any fiber's own execution), kick hands off the
// baton immediately instead of leaving the woken fiber stranded.
func (c *Condition) Notify() {
	if c.sched == nil {
		panic("fiber: Condition.Notify called outside a scheduler")
	}

	c.mu.Lock()
	if len(c.waiters) == 0 {
		c.mu.Unlock()

		return
	}
	f := c.waiters[0]
	c.waiters = c.waiters[1:]
	c.mu.Unlock()

	c.sched.enqueueReady(f)
	c.sched.kick()
}

// NotifyAll wakes every waiting fiber.
func (c *Condition) NotifyAll() {
	if c.sched == nil {
		panic("fiber: Condition.NotifyAll called outside a scheduler")
	}

	c.mu.Lock()
	woken := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, f := range woken {
		c.sched.enqueueReady(f)
	}

	c.sched.kick()
}
