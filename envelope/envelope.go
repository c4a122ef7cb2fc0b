// Package envelope defines the tagged-union message that flows over every
// channel and pipeline in this module. An Envelope is a plain value: it is
// copied by Send and owned by the receiver after Receive.
package envelope

import (
	"context"
	"time"
)

// Kind discriminates the variant carried by an Envelope.
type Kind int

const (
	// KindCommand carries a method invocation from a client to a server.
	KindCommand Kind = iota
	// KindResponse carries the result of a Command back to its sender.
	KindResponse
	// KindFilterSpec carries a name-mangling hint for discovery/debugging.
	KindFilterSpec
	// KindTimeDirective asks the receiver to suspend processing for a duration.
	KindTimeDirective
	// KindShutdown asks the receiver to terminate its receive loop.
	KindShutdown
	// KindCreatePipe announces that a pipeline has been opened against this inbox.
	KindCreatePipe
	// KindDestroyPipe announces that a pipeline has been closed.
	KindDestroyPipe
)

// String renders a Kind for logging.
func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "Command"
	case KindResponse:
		return "Response"
	case KindFilterSpec:
		return "FilterSpec"
	case KindTimeDirective:
		return "TimeDirective"
	case KindShutdown:
		return "Shutdown"
	case KindCreatePipe:
		return "CreatePipe"
	case KindDestroyPipe:
		return "DestroyPipe"
	default:
		return "Unknown"
	}
}

// Status is the outcome carried by a Response.
type Status int

const (
	// StatusFailed means the handler ran and reported failure.
	StatusFailed Status = iota
	// StatusTimeout means no response arrived before the caller's deadline.
	StatusTimeout
	// StatusSuccess means the handler ran and reported success.
	StatusSuccess
)

func (s Status) String() string {
	switch s {
	case StatusFailed:
		return "Failed"
	case StatusTimeout:
		return "Timeout"
	case StatusSuccess:
		return "Success"
	default:
		return "Unknown"
	}
}

// Sender is the minimal contract a Command's reply target must satisfy.
// channel.Channel implements this; it is declared here (rather than
// imported) to keep envelope free of a dependency on channel and avoid an
// import cycle, since channel.Channel carries Envelope values.
type Sender interface {
	Send(ctx context.Context, msg Envelope) error
}

// Command is a method invocation sent from a client to a server's inbox.
type Command struct {
	Sender Sender
	ID     uint64
	Method string
	Args   string
}

// Response answers a Command with the same ID.
type Response struct {
	Status Status
	ID     uint64
	Data   string
}

// TimeDirective asks the receiver to enter a sleep window. Commands that
// arrive during the window are queued (Drop == false) or discarded
// (Drop == true), per the handler contract — the core only carries this
// message, it does not implement the sleep/queue/drop behavior itself.
type TimeDirective struct {
	Duration time.Duration
	Drop     bool
}

// FilterSpec carries a name-mangling hint used by discovery/debug tooling.
type FilterSpec struct {
	MangledName string
	PrettyName  string
}

// PipelineHandle is the minimal contract CreatePipe needs from a pipeline:
// enough for a server to dispatch against it without importing the pipeline
// package from envelope (again avoiding an import cycle).
type PipelineHandle interface {
	Name() string
}

// CreatePipe announces a newly opened pipeline to the owning inbox's server.
type CreatePipe struct {
	Pipeline PipelineHandle
}

// DestroyPipe announces that the named pipeline has been closed.
type DestroyPipe struct {
	Name string
}

// Envelope is the tagged union carried over every channel. Exactly one of
// the payload fields is meaningful, selected by Kind; the others are zero.
type Envelope struct {
	Kind          Kind
	Command       Command
	Response      Response
	TimeDirective TimeDirective
	FilterSpec    FilterSpec
	CreatePipe    CreatePipe
	DestroyPipe   DestroyPipe
}

// NewCommand builds a Command envelope.
func NewCommand(sender Sender, id uint64, method, args string) Envelope {
	return Envelope{
		Kind:    KindCommand,
		Command: Command{Sender: sender, ID: id, Method: method, Args: args},
	}
}

// NewResponse builds a Response envelope.
func NewResponse(status Status, id uint64, data string) Envelope {
	return Envelope{
		Kind:     KindResponse,
		Response: Response{Status: status, ID: id, Data: data},
	}
}

// NewTimeDirective builds a TimeDirective envelope.
func NewTimeDirective(duration time.Duration, drop bool) Envelope {
	return Envelope{
		Kind:          KindTimeDirective,
		TimeDirective: TimeDirective{Duration: duration, Drop: drop},
	}
}

// NewFilterSpec builds a FilterSpec envelope.
func NewFilterSpec(mangled, pretty string) Envelope {
	return Envelope{
		Kind:       KindFilterSpec,
		FilterSpec: FilterSpec{MangledName: mangled, PrettyName: pretty},
	}
}

// NewShutdown builds a Shutdown envelope.
func NewShutdown() Envelope {
	return Envelope{Kind: KindShutdown}
}

// NewCreatePipe builds a CreatePipe envelope.
func NewCreatePipe(p PipelineHandle) Envelope {
	return Envelope{Kind: KindCreatePipe, CreatePipe: CreatePipe{Pipeline: p}}
}

// NewDestroyPipe builds a DestroyPipe envelope.
func NewDestroyPipe(name string) Envelope {
	return Envelope{Kind: KindDestroyPipe, DestroyPipe: DestroyPipe{Name: name}}
}
