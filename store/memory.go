package store

import (
	"context"
	"sort"
	"sync"

	"github.com/mfactory-lab/ic-solana/rpc"
)

// Memory is a process-local Store. State does not survive a restart; it
// backs tests and local development.
type Memory struct {
	mu        sync.RWMutex
	providers map[string]rpc.Provider
	grants    map[string][]string
	counters  map[string]uint64
}

var _ Store = &Memory{}

func NewMemory() *Memory {
	return &Memory{
		providers: make(map[string]rpc.Provider),
		grants:    make(map[string][]string),
		counters:  make(map[string]uint64),
	}
}

func (m *Memory) LoadProviders(context.Context) ([]rpc.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]rpc.Provider, 0, len(m.providers))
	for _, p := range m.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveProvider(_ context.Context, p rpc.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.ID] = p
	return nil
}

func (m *Memory) DeleteProvider(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.providers, id)
	return nil
}

func (m *Memory) LoadGrants(context.Context) (map[string][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]string, len(m.grants))
	for principal, caps := range m.grants {
		out[principal] = append([]string(nil), caps...)
	}
	return out, nil
}

func (m *Memory) SaveGrants(_ context.Context, principal string, capabilities []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(capabilities) == 0 {
		delete(m.grants, principal)
		return nil
	}
	m.grants[principal] = append([]string(nil), capabilities...)
	return nil
}

func (m *Memory) LoadCounters(context.Context) (map[string]uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]uint64, len(m.counters))
	for name, value := range m.counters {
		out[name] = value
	}
	return out, nil
}

func (m *Memory) AddCounter(_ context.Context, name string, delta uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += delta
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close(context.Context) error { return nil }
