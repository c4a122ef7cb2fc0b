// Package channel implements the bounded, closable inbox that every fiber,
// thread and pipeline in this module sends and receives envelopes through.
package channel

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ezex-io/actorfiber/envelope"
	"github.com/ezex-io/actorfiber/errors"
	"github.com/ezex-io/actorfiber/fiber"
	"github.com/ezex-io/actorfiber/logger"
)

var _ envelope.Sender = (*Channel)(nil)

var idSerial atomic.Uint64

// DefaultCapacity is the capacity to pass to New when a caller has no
// explicit capacity requirement in mind (New(0) builds a rendezvous
// channel instead). It is the inbox size a freshly spawned thread receives.
const DefaultCapacity = 256

// Channel is a bounded, closable queue of envelopes. A zero-capacity Channel
// is a synchronous rendezvous: Send blocks until a matching Receive is
// already waiting, exactly like an unbuffered native Go channel.
//
// Channel is safe for concurrent use by multiple senders and multiple
// receivers.
type Channel struct {
	mu sync.RWMutex

	id       uint64
	name     string
	capacity int
	buf      chan envelope.Envelope
	closed   bool
	// done is closed exactly once, by Close, and never by a native close of
	// buf: buf is never closed, so a Send racing Close can never panic on a
	// "send on closed channel". Blocked Send/Receive select on done to wake
	// within bounded time once Close runs, instead of waiting on buf's own
	// closedness.
	done chan struct{}
}

// Option configures Channel construction.
type Option func(*Channel)

// WithName attaches a human-readable label used in logging.
func WithName(name string) Option {
	return func(c *Channel) {
		c.name = name
	}
}

// New allocates a Channel with the given capacity. Capacity zero yields a
// synchronous rendezvous channel.
func New(capacity int, opts ...Option) *Channel {
	if capacity < 0 {
		capacity = 0
	}

	c := &Channel{
		id:       idSerial.Add(1),
		capacity: capacity,
		buf:      make(chan envelope.Envelope, capacity),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ID returns a process-unique identifier for this channel, stable for its
// lifetime and never reused.
func (c *Channel) ID() uint64 {
	return c.id
}

// Name returns the channel's label, or an empty string if none was set.
func (c *Channel) Name() string {
	return c.name
}

// Capacity returns the buffer size the channel was constructed with.
func (c *Channel) Capacity() int {
	return c.capacity
}

// Send enqueues msg, blocking until there is room, the channel closes, or
// ctx is done. It returns errors.ErrChannelClosed if the channel is already
// closed or is closed while the send is in flight.
//
// If ctx carries an installed fiber.Scheduler, Send parks the calling
// fiber on a fiber.Parker instead of blocking the OS thread, so sibling
// fibers keep running while this one waits for room.
func (c *Channel) Send(ctx context.Context, msg envelope.Envelope) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		return errors.ErrChannelClosed
	}

	if fiber.FromContext(ctx) != nil {
		return c.sendFiber(ctx, msg)
	}

	select {
	case c.buf <- msg:
		return nil
	case <-c.done:
		return errors.ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sendFiber is Send's cooperative path. A bare non-blocking TrySend cannot
// by itself complete a rendezvous on a zero-capacity channel: two fibers
// each polling a non-blocking op will never see the other as "ready",
// since neither ever performs the real blocking channel operation Go's
// runtime needs to pair them up. So sendFiber hands the actual blocking
// send to an auxiliary goroutine — an ordinary, unlocked goroutine, not
// the scheduler's locked OS thread — and parks the calling fiber on a
// fiber.Parker until that goroutine reports a result. This keeps the
// scheduler's OS thread free for sibling fibers while still getting a
// real native-channel rendezvous.
//
// A fiber.Condition was considered instead of Parker, but Condition's
// Notify/NotifyAll only wake fibers already registered as waiters, and the
// auxiliary goroutine here runs genuinely concurrently with the fiber
// registering itself — a goroutine that finishes and calls Notify before
// the fiber's Wait has appended it as a waiter would leave the fiber
// parked forever. Parker's Wake is safe at any time relative to Park, so
// it has no such lost-wakeup window.
func (c *Channel) sendFiber(ctx context.Context, msg envelope.Envelope) error {
	parker := fiber.NewParker(ctx)
	result := make(chan error, 1)

	go func() {
		select {
		case c.buf <- msg:
			result <- nil
		case <-c.done:
			result <- errors.ErrChannelClosed
		case <-ctx.Done():
			result <- ctx.Err()
		}

		parker.Wake()
	}()

	parker.Park(ctx)

	return <-result
}

// TrySend attempts to enqueue msg without blocking. It reports false if the
// buffer is full; callers that need closed-channel detection should check
// IsClosed separately, since send-on-closed returns an error instead.
func (c *Channel) TrySend(msg envelope.Envelope) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false, errors.ErrChannelClosed
	}

	select {
	case c.buf <- msg:
		return true, nil
	default:
		return false, nil
	}
}

// Receive blocks until an envelope is available, the channel is closed and
// drained, or ctx is done.
//
// If ctx carries an installed fiber.Scheduler, Receive parks the calling
// fiber on a fiber.Parker instead of blocking the OS thread; see
// sendFiber for why Parker rather than fiber.Condition.
func (c *Channel) Receive(ctx context.Context) (envelope.Envelope, error) {
	if fiber.FromContext(ctx) != nil {
		return c.receiveFiber(ctx)
	}

	select {
	case msg := <-c.buf:
		return msg, nil
	case <-ctx.Done():
		return envelope.Envelope{}, ctx.Err()
	case <-c.done:
		// Buffered messages survive Close; drain one more before reporting
		// closed, matching native Go close semantics and receiveFiber.
		select {
		case msg := <-c.buf:
			return msg, nil
		default:
			return envelope.Envelope{}, errors.ErrChannelClosed
		}
	}
}

// receiveFiber is Receive's cooperative path, mirroring sendFiber: the real
// blocking receive runs on an auxiliary goroutine so it can actually
// rendezvous with a native channel send, while the calling fiber parks on
// a fiber.Parker instead of the OS thread until a result is ready.
func (c *Channel) receiveFiber(ctx context.Context) (envelope.Envelope, error) {
	type outcome struct {
		msg envelope.Envelope
		err error
	}

	parker := fiber.NewParker(ctx)
	result := make(chan outcome, 1)

	go func() {
		select {
		case msg := <-c.buf:
			result <- outcome{msg: msg}
		case <-ctx.Done():
			result <- outcome{err: ctx.Err()}
		case <-c.done:
			select {
			case msg := <-c.buf:
				result <- outcome{msg: msg}
			default:
				result <- outcome{err: errors.ErrChannelClosed}
			}
		}

		parker.Wake()
	}()

	parker.Park(ctx)

	out := <-result

	return out.msg, out.err
}

// TryReceive returns the next envelope without blocking. The second result
// is false if nothing was queued; callers use this to poll a channel from a
// fiber's cooperative loop instead of parking a whole OS thread.
func (c *Channel) TryReceive() (envelope.Envelope, bool) {
	c.mu.RLock()
	buf := c.buf
	c.mu.RUnlock()

	select {
	case msg, ok := <-buf:
		if !ok {
			return envelope.Envelope{}, false
		}

		return msg, true
	default:
		return envelope.Envelope{}, false
	}
}

// Close marks the channel closed and closes done, waking every blocked Send
// and Receive within bounded time. Close is idempotent: a second call is a
// no-op rather than a panic, since multiple owners may race to tear down a
// shared channel during shutdown.
//
// Close never calls the native close on buf; doing so while a concurrent
// Send might still be attempting buf <- msg would race the "send on closed
// channel" panic. Unclosed buffered items remain visible to TryReceive and
// the select-based drain in Receive after done closes.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	logger.Debug("channel closed", "id", c.id, "name", c.name)
}

// IsClosed reports whether Close has been called.
func (c *Channel) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.closed
}

// Len returns the number of envelopes currently queued.
func (c *Channel) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.buf)
}
