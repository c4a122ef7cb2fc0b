package pipeline

import (
	"context"
	"sync"

	"github.com/ezex-io/actorfiber/errors"
	"github.com/ezex-io/actorfiber/spawn"
)

// Registry is a process-wide map from pipeline name to Pipeline instance,
// guarded by its own lock independent of the named channel registry in
// package registry.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Pipeline
}

// NewRegistry returns an empty pipeline Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Pipeline)}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide pipeline registry.
func Default() *Registry {
	return defaultRegistry
}

// Register adds p under p.Name(). It fails with errors.ErrPipelineNameTaken
// if the name is already registered, and with errors.ErrPipelineClosed if p
// is already closed.
func (r *Registry) Register(p *Pipeline) error {
	if p.IsClosed() {
		return errors.ErrPipelineClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byName[p.Name()]; taken {
		return errors.ErrPipelineNameTaken
	}

	r.byName[p.Name()] = p

	return nil
}

// Unregister removes p's entry. It fails with errors.ErrPipelineNameNotFound
// if nothing is registered under p.Name().
func (r *Registry) Unregister(p *Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[p.Name()]; !ok {
		return errors.ErrPipelineNameNotFound
	}

	delete(r.byName, p.Name())

	return nil
}

// Locate returns the pipeline registered under name, if any.
func (r *Registry) Locate(name string) (*Pipeline, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byName[name]

	return p, ok
}

// LocateCurrent looks up the pipeline registered under the name of the
// thread that owns ctx, the "locate() defaults to current-thread name"
// form. It reports false if ctx carries no thread name (it was not built
// by spawn.Thread/Supervised) or nothing is registered under that name.
func (r *Registry) LocateCurrent(ctx context.Context) (*Pipeline, bool) {
	name, ok := spawn.ThreadName(ctx)
	if !ok {
		return nil, false
	}

	return r.Locate(name)
}
