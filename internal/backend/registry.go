package backend

import (
	"context"
	"strings"
)

// Registry is the strategy table mapping model identifiers to backends.
// Routing is by identifier prefix (gpt-4 → openai, claude-* → anthropic);
// anything unmatched falls through to the local runtime when one is
// configured. Each backend owns the translation from canonical turns to
// its own wire shape.
type Registry struct {
	routes []route
	local  Backend
}

type route struct {
	prefixes []string
	backend  Backend
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register routes model identifiers with any of the given prefixes to b.
func (r *Registry) Register(b Backend, prefixes ...string) {
	r.routes = append(r.routes, route{prefixes: prefixes, backend: b})
}

// SetLocal installs the local runtime as the fallback for identifiers no
// hosted prefix claims.
func (r *Registry) SetLocal(b Backend) {
	r.local = b
}

// Local returns the fallback runtime, or nil when none is configured.
func (r *Registry) Local() Backend {
	return r.local
}

// Resolve picks the backend for a model identifier. Unknown identifiers
// yield ErrUnknownModel rather than a dispatch failure.
func (r *Registry) Resolve(model string) (Backend, error) {
	for _, rt := range r.routes {
		for _, p := range rt.prefixes {
			if strings.HasPrefix(model, p) {
				return rt.backend, nil
			}
		}
	}
	if r.local != nil {
		return r.local, nil
	}
	return nil, ErrUnknownModel
}

// Generate dispatches one request to the backend owning its model.
func (r *Registry) Generate(ctx context.Context, req Request) (<-chan Chunk, error) {
	b, err := r.Resolve(req.Model)
	if err != nil {
		return nil, err
	}
	return b.Generate(ctx, req)
}

// ListModels returns the union of every backend's models, hosted entries
// first. Backends that cannot be reached contribute nothing rather than
// failing the whole listing.
func (r *Registry) ListModels(ctx context.Context) []string {
	var names []string
	for _, b := range r.backends() {
		models, err := b.ListModels(ctx)
		if err != nil {
			continue
		}
		names = append(names, models...)
	}
	return names
}

// Statuses reports reachability and model count per backend.
func (r *Registry) Statuses(ctx context.Context) []Status {
	statuses := make([]Status, 0)
	for _, b := range r.backends() {
		statuses = append(statuses, b.Status(ctx))
	}
	return statuses
}

func (r *Registry) backends() []Backend {
	var bs []Backend
	for _, rt := range r.routes {
		bs = append(bs, rt.backend)
	}
	if r.local != nil {
		bs = append(bs, r.local)
	}
	return bs
}
