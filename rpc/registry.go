package rpc

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pokt-network/poktroll/pkg/polylog"
)

// ProviderStore persists registry entries.
type ProviderStore interface {
	LoadProviders(ctx context.Context) ([]Provider, error)
	SaveProvider(ctx context.Context, p Provider) error
	DeleteProvider(ctx context.Context, id string) error
}

// Registry holds the known set of upstream RPC providers. All mutation is
// capability-gated and serialized; reads never observe partial writes.
type Registry struct {
	logger polylog.Logger
	store  ProviderStore
	auth   *Authorizer

	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry restores the provider set from the store and merges in any
// seed providers from configuration that are not already present.
func NewRegistry(ctx context.Context, logger polylog.Logger, store ProviderStore, auth *Authorizer, seed []Provider) (*Registry, error) {
	r := &Registry{
		logger:    logger.With("component", "registry"),
		store:     store,
		auth:      auth,
		providers: make(map[string]Provider),
	}

	persisted, err := store.LoadProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	for _, p := range persisted {
		r.providers[p.ID] = p
	}

	for _, p := range seed {
		if _, ok := r.providers[p.ID]; ok {
			continue
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("seed provider %q: %w", p.ID, err)
		}
		if err := store.SaveProvider(ctx, p); err != nil {
			return nil, fmt.Errorf("persist seed provider %q: %w", p.ID, err)
		}
		r.providers[p.ID] = p
	}

	r.logger.Info().Int("providers", len(r.providers)).Msg("registry initialized")
	return r, nil
}

// Register adds a new provider owned by the caller. Requires the
// register-provider capability (manage holders qualify); the one-shot
// register-provider grant is consumed by a successful call.
func (r *Registry) Register(ctx context.Context, caller Principal, p Provider) error {
	gate := CapabilityRegisterProvider
	if !r.auth.IsAuthorized(caller, CapabilityRegisterProvider) {
		if !r.auth.IsAuthorized(caller, CapabilityManage) {
			return r.auth.Require(caller, CapabilityRegisterProvider)
		}
		gate = CapabilityManage
	}

	p.Owner = caller
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[p.ID]; exists {
		return newError(KindConflict, "provider %q already exists", p.ID)
	}

	if err := r.store.SaveProvider(ctx, p); err != nil {
		return fmt.Errorf("persist provider %q: %w", p.ID, err)
	}
	r.providers[p.ID] = p

	// The one-shot grant is spent whether or not the caller also holds manage.
	r.auth.consume(ctx, caller, CapabilityRegisterProvider)

	r.auth.approve(gate)
	r.logger.Info().
		Str("caller", string(caller)).
		Str("provider", p.ID).
		Msg("registered provider")
	return nil
}

// Update changes provider details. The owner may change the credential but
// not the URL; manage holders may change both.
func (r *Registry) Update(ctx context.Context, caller Principal, id string, url *string, auth *Auth) error {
	isManager := r.auth.IsAuthorized(caller, CapabilityManage)

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[id]
	if !ok {
		return newError(KindNotFound, "provider %q not found", id)
	}

	switch {
	case isManager:
		if url != nil {
			p.URL = *url
		}
		if auth != nil {
			p.Auth = auth
		}
	case p.Owner == caller:
		if url != nil {
			return newError(KindUnauthorized, "only a manager may update the provider URL")
		}
		if auth != nil {
			p.Auth = auth
		}
	default:
		return r.auth.Require(caller, CapabilityManage)
	}

	if err := p.Validate(); err != nil {
		return err
	}
	if err := r.store.SaveProvider(ctx, p); err != nil {
		return fmt.Errorf("persist provider %q: %w", id, err)
	}
	r.providers[id] = p

	r.auth.approve(mutationGate(isManager))
	r.logger.Info().
		Str("caller", string(caller)).
		Str("provider", id).
		Msg("updated provider")
	return nil
}

// mutationGate names the capability an accepted provider mutation is audited
// under. Owner edits trace back to the register grant that conferred
// ownership.
func mutationGate(isManager bool) Capability {
	if isManager {
		return CapabilityManage
	}
	return CapabilityRegisterProvider
}

// Unregister removes a provider. The caller must be the owner or a manage
// holder. An unknown id reports NotFound; the caller may treat that as
// benign.
func (r *Registry) Unregister(ctx context.Context, caller Principal, id string) error {
	isManager := r.auth.IsAuthorized(caller, CapabilityManage)

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[id]
	if !ok {
		return newError(KindNotFound, "provider %q not found", id)
	}
	if p.Owner != caller && !isManager {
		return r.auth.Require(caller, CapabilityManage)
	}

	if err := r.store.DeleteProvider(ctx, id); err != nil {
		return fmt.Errorf("delete provider %q: %w", id, err)
	}
	delete(r.providers, id)

	r.auth.approve(mutationGate(isManager))
	r.logger.Info().
		Str("caller", string(caller)).
		Str("provider", id).
		Msg("unregistered provider")
	return nil
}

// Get returns the provider with the given id.
func (r *Registry) Get(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// List returns all registered providers sorted by id. Side-effect free and
// available to any caller. Credentials are redacted.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		p.Auth = redactAuth(p.Auth)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func redactAuth(a *Auth) *Auth {
	if a == nil {
		return nil
	}
	const redacted = "[redacted]"
	out := &Auth{}
	switch {
	case a.BearerToken != "":
		out.BearerToken = redacted
	case a.HeaderName != "":
		out.HeaderName = a.HeaderName
		out.HeaderValue = redacted
	case a.QueryName != "":
		out.QueryName = a.QueryName
		out.QueryValue = redacted
	case a.PathSegment != "":
		out.PathSegment = redacted
	}
	return out
}
