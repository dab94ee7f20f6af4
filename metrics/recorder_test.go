package metrics

import (
	"context"
	"sync"
	"testing"

	"github.com/pokt-network/poktroll/pkg/polylog/polyzero"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/mfactory-lab/ic-solana/rpc"
)

// fakeCounterStore records write-throughs in memory.
type fakeCounterStore struct {
	mu       sync.Mutex
	counters map[string]uint64
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{counters: make(map[string]uint64)}
}

func (s *fakeCounterStore) LoadCounters(context.Context) (map[string]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]uint64, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out, nil
}

func (s *fakeCounterStore) AddCounter(_ context.Context, name string, delta uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name] += delta
	return nil
}

func Test_CounterKey(t *testing.T) {
	c := require.New(t)
	c.Equal("requests_total|getSlot|rpc.example.com", counterKey(requestsTotal, "getSlot", "rpc.example.com"))
	c.Equal("unauthorized_total|manage", counterKey(unauthorizedTotal, "manage"))
}

func Test_CollectorFor(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		found bool
	}{
		{name: "requests", key: "requests_total|getSlot|a.example.com", found: true},
		{name: "responses carry the status label", key: "responses_total|getSlot|a.example.com|200", found: true},
		{name: "auth events", key: "auth_events_total|manage|grant", found: true},
		{name: "auth approvals", key: "auth_events_total|register_provider|approve", found: true},
		{name: "unknown metric", key: "latency_seconds|getSlot"},
		{name: "wrong label arity", key: "requests_total|getSlot"},
		{name: "bare name", key: "requests_total"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			counter := collectorFor(test.key)
			if test.found {
				require.NotNil(t, counter)
			} else {
				require.Nil(t, counter)
			}
		})
	}
}

func Test_Recorder_WritesThrough(t *testing.T) {
	c := require.New(t)
	db := newFakeCounterStore()
	recorder := NewRecorder(polyzero.NewLogger(), db)

	recorder.RequestIssued("getSlot", "wt.example.com")
	recorder.RequestIssued("getSlot", "wt.example.com")
	recorder.ResponseReceived("getSlot", "wt.example.com", 200)
	recorder.CyclesCharged("getSlot", "wt.example.com", rpc.Cycles(400))
	recorder.Unauthorized(rpc.CapabilityManage)
	recorder.Authorized(rpc.CapabilityRegisterProvider)
	recorder.Close()

	counters, err := db.LoadCounters(context.Background())
	c.NoError(err)
	c.Equal(uint64(2), counters["requests_total|getSlot|wt.example.com"])
	c.Equal(uint64(1), counters["responses_total|getSlot|wt.example.com|200"])
	c.Equal(uint64(400), counters["cycles_charged_total|getSlot|wt.example.com"])
	c.Equal(uint64(1), counters["unauthorized_total|manage"])
	c.Equal(uint64(1), counters["auth_events_total|register_provider|approve"])

	// The live collectors moved too.
	c.Equal(float64(2), testutil.ToFloat64(requests.WithLabelValues("getSlot", "wt.example.com")))
	c.Equal(float64(400), testutil.ToFloat64(cyclesCharged.WithLabelValues("getSlot", "wt.example.com")))
	c.Equal(float64(1), testutil.ToFloat64(authEvents.WithLabelValues("register_provider", "approve")))
}

func Test_Recorder_Restore(t *testing.T) {
	c := require.New(t)
	db := newFakeCounterStore()
	ctx := context.Background()

	c.NoError(db.AddCounter(ctx, "requests_total|getHealth|restore.example.com", 7))
	// Stale keys from an older schema are skipped, not fatal.
	c.NoError(db.AddCounter(ctx, "latency_seconds|getHealth", 3))
	c.NoError(db.AddCounter(ctx, "requests_total|only-one-label", 5))

	recorder := NewRecorder(polyzero.NewLogger(), db)
	defer recorder.Close()

	c.NoError(recorder.Restore(ctx))
	c.Equal(float64(7), testutil.ToFloat64(requests.WithLabelValues("getHealth", "restore.example.com")))
}
