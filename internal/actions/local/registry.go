// Package local provides an in-process actions.Runtime backed by a
// registry map. It hosts the gateway's built-in actions and is the
// runtime of choice for embedding and tests.
package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/actionmesh/gateway/internal/actions"
	"github.com/actionmesh/gateway/internal/domain"
)

// Handler is the function body of a registered action.
type Handler func(ctx context.Context, rc *domain.RequestContext, params map[string]any) (any, error)

type entry struct {
	ref     actions.ActionRef
	handler Handler
}

// Runtime is a concurrency-safe in-process action registry.
type Runtime struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an empty runtime.
func New() *Runtime {
	return &Runtime{entries: make(map[string]entry)}
}

// Register adds or replaces an action. The handler must not be nil.
func (r *Runtime) Register(ref actions.ActionRef, h Handler) {
	if h == nil {
		panic("local: nil handler for action " + ref.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[ref.Name] = entry{ref: ref, handler: h}
}

// Resolve implements actions.Runtime.
func (r *Runtime) Resolve(_ context.Context, name string) (*actions.ActionRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, nil
	}
	ref := e.ref
	return &ref, nil
}

// Invoke implements actions.Runtime.
func (r *Runtime) Invoke(ctx context.Context, name string, rc *domain.RequestContext, params map[string]any) (any, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("local: action %q not registered", name)
	}
	return e.handler(ctx, rc, params)
}

var _ actions.Runtime = (*Runtime)(nil)
