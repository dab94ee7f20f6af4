// Package store persists the gateway's durable state: registered providers,
// capability grants, and metric counters. Three backends are provided,
// selected by configuration: postgres, mongo, and an in-memory store for
// tests and local development.
package store

import (
	"context"
	"fmt"

	"github.com/mfactory-lab/ic-solana/rpc"
)

// Backend names a store implementation.
type Backend string

const (
	BackendMemory   = Backend("memory")
	BackendPostgres = Backend("postgres")
	BackendMongo    = Backend("mongo")
)

// Store is the persistence surface the gateway's stateful components are
// built on. Implementations must be safe for concurrent use.
type Store interface {
	rpc.ProviderStore
	rpc.GrantStore

	// LoadCounters returns all persisted metric counters.
	LoadCounters(ctx context.Context) (map[string]uint64, error)
	// AddCounter increments a persisted counter by delta.
	AddCounter(ctx context.Context, name string, delta uint64) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Open connects to the configured backend.
func Open(ctx context.Context, backend Backend, uri string) (Store, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemory(), nil
	case BackendPostgres:
		return OpenPostgres(ctx, uri)
	case BackendMongo:
		return OpenMongo(ctx, uri)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
