package errors

// Sentinel errors raised across the messaging substrate. Each is a singleton
// *Error value; compare with errors.Is (stdlib) or direct pointer equality.
var (
	// ErrChannelClosed is returned by Send/Receive once a channel has been
	// closed; the flag never clears, so this error is permanent for a given
	// channel handle.
	ErrChannelClosed = New(1000, "channel closed")

	// ErrNameTaken is returned by the named registry when Register is called
	// with a name that already maps to a channel.
	ErrNameTaken = New(1001, "name already registered")

	// ErrNameNotFound is returned by Unregister when the name has no entry.
	ErrNameNotFound = New(1002, "name not registered")

	// ErrChannelAlreadyClosed is returned by Register when the channel handle
	// being registered is already closed.
	ErrChannelAlreadyClosed = New(1003, "channel is already closed")

	// ErrPipelineClosed is returned by pipeline operations attempted after
	// Close, for the call sites that can fail gracefully instead of aborting.
	ErrPipelineClosed = New(1100, "pipeline closed")

	// ErrPipelineAlreadyOpen describes a second Open on the same pipeline.
	// Pipeline.Open does not return it: a repeated Open panics with a
	// ProgrammerError.
	ErrPipelineAlreadyOpen = New(1101, "pipeline already open")

	// ErrPipelineBusy describes a second Query attempted while one is already
	// in flight; the pipeline is a single-in-flight design. Pipeline.Query
	// does not return it: a concurrent Query panics with a ProgrammerError.
	ErrPipelineBusy = New(1102, "pipeline has a query in flight")

	// ErrPipelineNameTaken is returned by the pipeline registry when Register
	// is called with a name that already maps to a pipeline.
	ErrPipelineNameTaken = New(1103, "pipeline name already registered")

	// ErrPipelineNameNotFound is returned by the pipeline registry's
	// Unregister when no pipeline is registered under the given name.
	ErrPipelineNameNotFound = New(1104, "pipeline name not registered")
)

// ProgrammerError is the taxonomy kind for illegal-state misuse: calling
// Query or Reply on a closed pipeline. It is raised as a panic, not
// returned, per "the process cannot reasonably continue."
type ProgrammerError struct {
	*Error
}

// NewProgrammerError wraps msg as a ProgrammerError suitable for panic().
func NewProgrammerError(msg string) *ProgrammerError {
	return &ProgrammerError{Error: New(1900, msg)}
}
