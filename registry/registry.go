// Package registry is the process-wide name service mapping thread names to
// their inbox Channel, so one thread can address another by name instead of
// passing channel handles around by hand.
package registry

import (
	"sync"

	"github.com/ezex-io/actorfiber/channel"
	"github.com/ezex-io/actorfiber/errors"
	"github.com/ezex-io/actorfiber/logger"
)

// Registry is a bidirectional name <-> channel map, safe for concurrent use.
// A single channel may be registered under several names, so the reverse
// direction maps a handle to the set of names currently bound to it.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]*channel.Channel
	byHandle map[*channel.Channel]map[string]struct{}
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		byName:   make(map[string]*channel.Channel),
		byHandle: make(map[*channel.Channel]map[string]struct{}),
	}
}

// global is the process-wide default registry; package-level Register,
// Unregister and Locate forward to it, matching the spec's single shared
// name space while still letting tests build isolated Registry values.
var global = New()

// Register binds name to ch. It fails with errors.ErrNameTaken if the name
// is already bound, and with errors.ErrChannelAlreadyClosed if ch has
// already been closed, since a closed inbox can never receive again.
func (r *Registry) Register(name string, ch *channel.Channel) error {
	if ch.IsClosed() {
		return errors.ErrChannelAlreadyClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byName[name]; taken {
		return errors.ErrNameTaken
	}

	r.byName[name] = ch
	if r.byHandle[ch] == nil {
		r.byHandle[ch] = make(map[string]struct{})
	}
	r.byHandle[ch][name] = struct{}{}

	logger.Debug("registered channel", "name", name, "id", ch.ID())

	return nil
}

// Unregister removes name's binding. It fails with errors.ErrNameNotFound
// if no channel is bound to name. If ch is registered under other names
// too, those bindings are left untouched.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.byName[name]
	if !ok {
		return errors.ErrNameNotFound
	}

	delete(r.byName, name)

	names := r.byHandle[ch]
	delete(names, name)

	if len(names) == 0 {
		delete(r.byHandle, ch)
	}

	logger.Debug("unregistered channel", "name", name)

	return nil
}

// Locate returns the channel bound to name, if any.
func (r *Registry) Locate(name string) (*channel.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.byName[name]

	return ch, ok
}

// NameOf returns one name ch is registered under, if any, picked
// arbitrarily when more than one is bound. It is the inverse of Locate for
// the common single-name case, used when a handler only has a channel
// handle and needs to log or report which named thread it belongs to. Use
// NamesOf to get every name at once.
func (r *Registry) NameOf(ch *channel.Channel) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name := range r.byHandle[ch] {
		return name, true
	}

	return "", false
}

// NamesOf returns every name ch is currently registered under, in no
// particular order.
func (r *Registry) NamesOf(ch *channel.Channel) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byHandle[ch]))
	for name := range r.byHandle[ch] {
		names = append(names, name)
	}

	return names
}

// Len reports how many names are currently registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byName)
}

// Names returns every currently registered name, in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}

	return names
}

// Register binds name to ch in the process-wide default registry.
func Register(name string, ch *channel.Channel) error {
	return global.Register(name, ch)
}

// Unregister removes name's binding from the process-wide default registry.
func Unregister(name string) error {
	return global.Unregister(name)
}

// Locate looks up name in the process-wide default registry.
func Locate(name string) (*channel.Channel, bool) {
	return global.Locate(name)
}

// Len reports how many names are bound in the process-wide default registry.
func Len() int {
	return global.Len()
}

// Names returns every name bound in the process-wide default registry.
func Names() []string {
	return global.Names()
}

// NamesOf returns every name ch is registered under in the process-wide
// default registry.
func NamesOf(ch *channel.Channel) []string {
	return global.NamesOf(ch)
}
