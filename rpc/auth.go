package rpc

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pokt-network/poktroll/pkg/polylog"
)

// Principal is an opaque caller identity. The process owner is seeded with
// the manage capability at initialization; the anonymous principal may never
// hold capabilities or use the wallet.
type Principal string

const PrincipalAnonymous = Principal("anonymous")

func (p Principal) IsAnonymous() bool {
	return p == "" || p == PrincipalAnonymous
}

// Capability is a named permission granted to a principal.
type Capability string

const (
	// CapabilityManage allows administering providers and grants.
	CapabilityManage = Capability("manage")

	// CapabilityRegisterProvider allows a single provider registration.
	// It is consumed by a successful register call.
	CapabilityRegisterProvider = Capability("register_provider")
)

func ParseCapability(s string) (Capability, error) {
	switch Capability(s) {
	case CapabilityManage:
		return CapabilityManage, nil
	case CapabilityRegisterProvider:
		return CapabilityRegisterProvider, nil
	default:
		return "", fmt.Errorf("unknown capability %q", s)
	}
}

// AuthMeter is the subset of metrics the authorizer reports to. Every
// capability-gated mutation lands in exactly one of Authorized or
// Unauthorized, keyed by the capability that gated it; AuthEvent records the
// grant table changing.
type AuthMeter interface {
	AuthEvent(capability Capability, granted bool)
	Authorized(capability Capability)
	Unauthorized(capability Capability)
}

// Authorizer holds the capability grants and serializes their mutation.
// Grants are written through to the store so they survive restarts.
type Authorizer struct {
	logger polylog.Logger
	store  GrantStore
	owner  Principal

	mu     sync.RWMutex
	grants map[Principal]map[Capability]struct{}

	meter AuthMeter
}

// GrantStore persists capability grants.
type GrantStore interface {
	LoadGrants(ctx context.Context) (map[string][]string, error)
	SaveGrants(ctx context.Context, principal string, capabilities []string) error
}

// NewAuthorizer restores grants from the store and seeds the owner with the
// manage capability.
func NewAuthorizer(ctx context.Context, logger polylog.Logger, store GrantStore, owner Principal, meter AuthMeter) (*Authorizer, error) {
	if owner.IsAnonymous() {
		return nil, fmt.Errorf("owner principal must not be anonymous")
	}

	a := &Authorizer{
		logger: logger.With("component", "authorizer"),
		store:  store,
		owner:  owner,
		grants: make(map[Principal]map[Capability]struct{}),
		meter:  meter,
	}

	persisted, err := store.LoadGrants(ctx)
	if err != nil {
		return nil, fmt.Errorf("load grants: %w", err)
	}
	for principal, caps := range persisted {
		set := make(map[Capability]struct{}, len(caps))
		for _, c := range caps {
			cap, err := ParseCapability(c)
			if err != nil {
				a.logger.Warn().Str("principal", principal).Msgf("skipping persisted grant: %v", err)
				continue
			}
			set[cap] = struct{}{}
		}
		if len(set) > 0 {
			a.grants[Principal(principal)] = set
		}
	}

	return a, nil
}

// IsAuthorized reports whether the principal holds the capability. The owner
// implicitly holds every capability.
func (a *Authorizer) IsAuthorized(principal Principal, capability Capability) bool {
	if principal == a.owner {
		return true
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.grants[principal][capability]
	return ok
}

// Require returns a typed Unauthorized error (and meters the denial) unless
// the caller holds the capability.
func (a *Authorizer) Require(caller Principal, capability Capability) error {
	if a.IsAuthorized(caller, capability) {
		return nil
	}
	if a.meter != nil {
		a.meter.Unauthorized(capability)
	}
	a.logger.Info().
		Str("caller", string(caller)).
		Str("capability", string(capability)).
		Msg("denied: caller does not hold required capability")
	return newError(KindUnauthorized, "caller does not hold the %q capability", capability)
}

// approve records an accepted mutation under the capability that gated it.
func (a *Authorizer) approve(capability Capability) {
	if a.meter != nil {
		a.meter.Authorized(capability)
	}
}

// Authorize grants the capability to the principal. Only manage holders may
// mutate grants; the anonymous principal may not receive grants.
func (a *Authorizer) Authorize(ctx context.Context, caller, principal Principal, capability Capability) error {
	if err := a.Require(caller, CapabilityManage); err != nil {
		return err
	}
	if principal.IsAnonymous() {
		return newError(KindInvalidRequest, "cannot grant capabilities to the anonymous principal")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	set, ok := a.grants[principal]
	if !ok {
		set = make(map[Capability]struct{})
		a.grants[principal] = set
	}
	if _, already := set[capability]; already {
		a.approve(CapabilityManage)
		return nil
	}
	set[capability] = struct{}{}

	if err := a.persistLocked(ctx, principal); err != nil {
		delete(set, capability)
		return err
	}

	a.approve(CapabilityManage)
	if a.meter != nil {
		a.meter.AuthEvent(capability, true)
	}
	a.logger.Info().
		Str("caller", string(caller)).
		Str("principal", string(principal)).
		Str("capability", string(capability)).
		Msg("authorized")
	return nil
}

// Deauthorize revokes the capability from the principal.
func (a *Authorizer) Deauthorize(ctx context.Context, caller, principal Principal, capability Capability) error {
	if err := a.Require(caller, CapabilityManage); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.revokeLocked(ctx, caller, principal, capability); err != nil {
		return err
	}
	a.approve(CapabilityManage)
	return nil
}

// consume revokes a one-shot capability without a manage check. Used by the
// registry after a successful register call.
func (a *Authorizer) consume(ctx context.Context, principal Principal, capability Capability) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.revokeLocked(ctx, principal, principal, capability); err != nil {
		a.logger.Warn().Str("principal", string(principal)).Msgf("failed to consume grant: %v", err)
	}
}

func (a *Authorizer) revokeLocked(ctx context.Context, caller, principal Principal, capability Capability) error {
	set, ok := a.grants[principal]
	if !ok {
		return nil
	}
	if _, held := set[capability]; !held {
		return nil
	}
	delete(set, capability)
	if len(set) == 0 {
		delete(a.grants, principal)
	}

	if err := a.persistLocked(ctx, principal); err != nil {
		set[capability] = struct{}{}
		a.grants[principal] = set
		return err
	}

	if a.meter != nil {
		a.meter.AuthEvent(capability, false)
	}
	a.logger.Info().
		Str("caller", string(caller)).
		Str("principal", string(principal)).
		Str("capability", string(capability)).
		Msg("deauthorized")
	return nil
}

func (a *Authorizer) persistLocked(ctx context.Context, principal Principal) error {
	caps := make([]string, 0, len(a.grants[principal]))
	for c := range a.grants[principal] {
		caps = append(caps, string(c))
	}
	sort.Strings(caps)
	if err := a.store.SaveGrants(ctx, string(principal), caps); err != nil {
		return fmt.Errorf("persist grants for %q: %w", principal, err)
	}
	return nil
}

// Grants returns a snapshot of all principals and their capabilities,
// sorted by principal. Read-only and available to any caller.
func (a *Authorizer) Grants() map[Principal][]Capability {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[Principal][]Capability, len(a.grants)+1)
	for principal, set := range a.grants {
		caps := make([]Capability, 0, len(set))
		for c := range set {
			caps = append(caps, c)
		}
		sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
		out[principal] = caps
	}
	out[a.owner] = []Capability{CapabilityManage, CapabilityRegisterProvider}
	return out
}
