// Package pipeline implements request/response correlation on top of a
// pair of channels joined to a server's inbox. A Pipeline lets a client
// issue a Command and block (cooperatively, via the fiber scheduler when
// one is installed) for the matching Response, instead of hand-rolling
// request-id bookkeeping on every call site.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ezex-io/actorfiber/channel"
	"github.com/ezex-io/actorfiber/envelope"
	"github.com/ezex-io/actorfiber/errors"
	"github.com/ezex-io/actorfiber/fiber"
	"github.com/ezex-io/actorfiber/idgen"
	"github.com/ezex-io/actorfiber/logger"
	"github.com/ezex-io/actorfiber/timer"
)

var _ envelope.PipelineHandle = (*Pipeline)(nil)

var requestSerial atomic.Uint64

// Pipeline pairs a producer channel (server to client) and a consumer
// channel (client to server) against a server's inbox (root), and
// correlates queries sent on consumer with responses read back off
// producer by request id.
//
// A Pipeline is constructed closed; Open must be called before Query or
// Reply, and is legal only once.
type Pipeline struct {
	root     *channel.Channel
	producer *channel.Channel
	consumer *channel.Channel
	name     string
	onClose  func()

	mu          sync.Mutex
	opened      bool
	closed      bool
	busy        bool
	closingSoon bool
}

// Option configures pipeline construction.
type Option func(*Pipeline)

// WithOnClose registers a callback invoked once, from Close, after the
// pipeline's lifecycle flag flips to closed.
func WithOnClose(fn func()) Option {
	return func(p *Pipeline) {
		p.onClose = fn
	}
}

// WithName overrides the pipeline's auto-generated identifier. Callers
// that want Registry.LocateCurrent to find a pipeline from the thread that
// owns it should name the pipeline after that thread, e.g.
// pipeline.WithName(cfg.name) alongside the matching spawn.WithName.
func WithName(name string) Option {
	return func(p *Pipeline) {
		if name != "" {
			p.name = name
		}
	}
}

// New builds a Pipeline against root, the server's inbox. producer and
// consumer capacities match the root's default; callers needing different
// sizing should construct the channels themselves and use NewWithChannels.
func New(root *channel.Channel, opts ...Option) *Pipeline {
	return NewWithChannels(root, channel.New(channel.DefaultCapacity), channel.New(channel.DefaultCapacity), opts...)
}

// NewWithChannels builds a Pipeline from caller-supplied producer/consumer
// channels, useful when a test or caller wants explicit control over their
// capacity.
func NewWithChannels(root, producer, consumer *channel.Channel, opts ...Option) *Pipeline {
	p := &Pipeline{
		root:     root,
		producer: producer,
		consumer: consumer,
		name:     idgen.HexSerial(idgen.NextThreadSerial()),
		closed:   true,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name returns the pipeline's identifier: the name given with WithName, or
// otherwise a hex-rendered process-wide serial drawn when the pipeline is
// constructed. The serial is not tied to the thread that owns the pipeline.
// It satisfies envelope.PipelineHandle.
func (p *Pipeline) Name() string {
	return p.name
}

// Send implements envelope.Sender so a server can reply to this pipeline
// exactly as it would to any other inbox: by calling Send on the handle it
// was given.
func (p *Pipeline) Send(ctx context.Context, msg envelope.Envelope) error {
	return p.producer.Send(ctx, msg)
}

// Open announces the pipeline to its root inbox by sending a CreatePipe
// envelope, then transitions it out of the New state. Open is legal only
// once; calling it again panics with a programmer error, since a second
// Open would re-announce a pipeline the server already dispatched a fiber
// for.
func (p *Pipeline) Open(ctx context.Context) error {
	p.mu.Lock()
	if p.opened {
		p.mu.Unlock()

		panic(errors.NewProgrammerError("pipeline already opened"))
	}
	p.opened = true
	p.closed = false
	p.mu.Unlock()

	if err := p.root.Send(ctx, envelope.NewCreatePipe(p)); err != nil {
		return err
	}

	logger.Debug("pipeline opened", "name", p.name)

	return nil
}

// Close sends a DestroyPipe envelope on consumer, marks the pipeline
// closed, and invokes the on-close callback if one was registered. Close
// is idempotent.
func (p *Pipeline) Close(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()

		return
	}
	p.closed = true
	onClose := p.onClose
	p.mu.Unlock()

	if err := p.consumer.Send(ctx, envelope.NewDestroyPipe(p.name)); err != nil {
		logger.Debug("pipeline close send failed, consumer likely already gone", "name", p.name, "error", err)
	}

	if onClose != nil {
		onClose()
	}

	logger.Debug("pipeline closed", "name", p.name)
}

// Query sends cmd on consumer and polls producer for the matching Response,
// yielding the fiber between attempts instead of blocking the OS thread.
// If timeout elapses first, Query returns a synthesized
// Response{Status: Timeout} without closing the pipeline. Responses whose
// id does not match cmd.ID are discarded: the pipeline assumes a single
// request in flight at a time, guarded by the busy flag.
//
// Calling Query on a closed pipeline, or while another Query is already in
// flight, is a programmer error and panics.
func (p *Pipeline) Query(ctx context.Context, cmd envelope.Command, timeout time.Duration) envelope.Response {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()

		panic(errors.NewProgrammerError("query on closed pipeline"))
	}
	if p.busy {
		p.mu.Unlock()

		panic(errors.NewProgrammerError("query already in flight"))
	}
	p.busy = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.busy = false
		p.mu.Unlock()
	}()

	reqEnvelope := envelope.Envelope{Kind: envelope.KindCommand, Command: cmd}
	if err := p.consumer.Send(ctx, reqEnvelope); err != nil {
		return envelope.NewResponse(envelope.StatusFailed, cmd.ID, err.Error()).Response
	}

	var deadline <-chan struct{}
	if timeout > 0 {
		deadline = timer.After(ctx, timeout).Done()
	}

	for {
		if msg, ok := p.producer.TryReceive(); ok {
			if msg.Kind == envelope.KindResponse && msg.Response.ID == cmd.ID {
				return msg.Response
			}

			logger.Debug("pipeline discarded stale response", "name", p.name, "id", msg.Response.ID, "want", cmd.ID)

			continue
		}

		select {
		case <-deadline:
			return envelope.NewResponse(envelope.StatusTimeout, cmd.ID, "").Response
		case <-ctx.Done():
			return envelope.NewResponse(envelope.StatusTimeout, cmd.ID, ctx.Err().Error()).Response
		default:
		}

		if fiber.FromContext(ctx) == nil {
			time.Sleep(time.Millisecond)
		}

		fiber.Yield(ctx)
	}
}

// Reply sends res on producer. Calling Reply on a closed pipeline is a
// programmer error and panics.
func (p *Pipeline) Reply(ctx context.Context, res envelope.Response) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()

		panic(errors.NewProgrammerError("reply on closed pipeline"))
	}
	p.mu.Unlock()

	return p.producer.Send(ctx, envelope.NewResponse(res.Status, res.ID, res.Data))
}

// IsClosed reports whether Close has been called.
func (p *Pipeline) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}

// IsBusy reports whether a Query is currently in flight.
func (p *Pipeline) IsBusy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.busy
}

// IsClosingSoon reports the advisory closing-soon flag set by
// SetClosingSoon, used by servers to stop accepting new queries on a
// pipeline that is about to be torn down.
func (p *Pipeline) IsClosingSoon() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closingSoon
}

// SetClosingSoon sets the advisory closing-soon flag.
func (p *Pipeline) SetClosingSoon(v bool) {
	p.mu.Lock()
	p.closingSoon = v
	p.mu.Unlock()
}

// NextID returns the next value in the process-wide monotonic request-id
// counter used to correlate Commands with Responses.
func NextID() uint64 {
	return requestSerial.Add(1)
}
