// Package metrics exports the gateway's Prometheus metrics and mirrors the
// underlying counters into the store so totals survive a restart.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/pokt-network/poktroll/pkg/polylog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mfactory-lab/ic-solana/jsonrpc"
	"github.com/mfactory-lab/ic-solana/rpc"
)

// See the metrics initialization below for details.
const (
	gatewayProcess = "solana_gateway"

	requestsTotal       = "requests_total"
	responsesTotal      = "responses_total"
	outcallErrorsTotal  = "outcall_errors_total"
	unauthorizedTotal   = "unauthorized_total"
	cyclesChargedTotal  = "cycles_charged_total"
	inconsistentTotal   = "inconsistent_responses_total"
	partialFailureTotal = "partial_failures_total"
	authEventsTotal     = "auth_events_total"
)

func init() {
	prometheus.MustRegister(requests)
	prometheus.MustRegister(responses)
	prometheus.MustRegister(outcallErrors)
	prometheus.MustRegister(unauthorized)
	prometheus.MustRegister(cyclesCharged)
	prometheus.MustRegister(inconsistentResponses)
	prometheus.MustRegister(partialFailures)
	prometheus.MustRegister(authEvents)
}

var (
	// requests counts JSON-RPC outcalls issued to providers, labeled by
	// method and provider host. Compare against responses to spot providers
	// that accept requests but never answer.
	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: gatewayProcess,
			Name:      requestsTotal,
			Help:      "Total number of JSON-RPC requests issued to providers.",
		},
		[]string{"method", "host"},
	)

	// responses counts provider answers by method, host, and HTTP status.
	responses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: gatewayProcess,
			Name:      responsesTotal,
			Help:      "Total number of provider responses, labeled by HTTP status.",
		},
		[]string{"method", "host", "status"},
	)

	// outcallErrors counts outcalls that failed before producing an HTTP
	// response: connection errors, timeouts, oversized bodies.
	outcallErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: gatewayProcess,
			Name:      outcallErrorsTotal,
			Help:      "Total number of provider outcalls that failed without an HTTP response.",
		},
		[]string{"method", "host"},
	)

	// unauthorized counts capability checks that denied a caller.
	unauthorized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: gatewayProcess,
			Name:      unauthorizedTotal,
			Help:      "Total number of denied capability checks.",
		},
		[]string{"capability"},
	)

	// cyclesCharged accumulates the cost charged for outcalls. Billed
	// unconditionally: a failed outcall still spent its cycles.
	cyclesCharged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: gatewayProcess,
			Name:      cyclesChargedTotal,
			Help:      "Total cycles charged for provider outcalls.",
		},
		[]string{"method", "host"},
	)

	// inconsistentResponses counts dispatches where providers disagreed and
	// the consensus strategy could not settle on an answer.
	inconsistentResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: gatewayProcess,
			Name:      inconsistentTotal,
			Help:      "Total number of dispatches rejected for provider disagreement.",
		},
		[]string{"method"},
	)

	// partialFailures counts dispatches that produced a result while one or
	// more providers failed.
	partialFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: gatewayProcess,
			Name:      partialFailureTotal,
			Help:      "Total number of dispatches that succeeded despite provider failures.",
		},
		[]string{"method"},
	)

	// authEvents counts capability grants and revocations, plus an approve
	// event for every accepted capability-gated mutation. Together with
	// unauthorized this gives the full audit trail: each gated mutation lands
	// in approve or unauthorized, keyed by the capability checked.
	authEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: gatewayProcess,
			Name:      authEventsTotal,
			Help:      "Total number of capability grants, revocations, and approved mutations.",
		},
		[]string{"capability", "action"},
	)
)

// CounterStore is the slice of the store the recorder persists through.
type CounterStore interface {
	LoadCounters(ctx context.Context) (map[string]uint64, error)
	AddCounter(ctx context.Context, name string, delta uint64) error
}

// increment is one pending write-through to the store.
type increment struct {
	name  string
	delta uint64
}

// Recorder implements rpc.Meter on top of the Prometheus collectors above and
// mirrors each increment into the store asynchronously, so counter totals can
// be restored after a restart.
type Recorder struct {
	logger polylog.Logger
	store  CounterStore

	pending chan increment
	done    chan struct{}
}

var _ rpc.Meter = &Recorder{}

const pendingBufferSize = 1024

// NewRecorder builds a recorder backed by the store and starts its
// write-through loop. Call Close to flush and stop it.
func NewRecorder(logger polylog.Logger, store CounterStore) *Recorder {
	r := &Recorder{
		logger:  logger.With("component", "metrics"),
		store:   store,
		pending: make(chan increment, pendingBufferSize),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Restore re-applies persisted counter totals to the Prometheus collectors.
// Called once at startup, before any traffic.
func (r *Recorder) Restore(ctx context.Context) error {
	counters, err := r.store.LoadCounters(ctx)
	if err != nil {
		return fmt.Errorf("load persisted counters: %w", err)
	}
	for name, value := range counters {
		if counter := collectorFor(name); counter != nil {
			counter.Add(float64(value))
		}
	}
	r.logger.Info().Int("counters", len(counters)).Msg("restored persisted metric counters")
	return nil
}

// Close flushes pending increments and stops the write-through loop.
func (r *Recorder) Close() {
	close(r.pending)
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for inc := range r.pending {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := r.store.AddCounter(ctx, inc.name, inc.delta)
		cancel()
		if err != nil {
			r.logger.Warn().Err(err).Str("counter", inc.name).Msg("failed to persist counter increment")
		}
	}
}

// record enqueues a write-through. Dropped if the queue is full: the
// Prometheus collector already holds the live value, the store copy only
// feeds restarts.
func (r *Recorder) record(name string, delta uint64) {
	select {
	case r.pending <- increment{name: name, delta: delta}:
	default:
		r.logger.Warn().Str("counter", name).Msg("counter write-through queue full, dropping increment")
	}
}

func (r *Recorder) RequestIssued(method jsonrpc.Method, host string) {
	requests.With(prometheus.Labels{"method": string(method), "host": host}).Inc()
	r.record(counterKey(requestsTotal, string(method), host), 1)
}

func (r *Recorder) ResponseReceived(method jsonrpc.Method, host string, httpStatus int) {
	status := fmt.Sprintf("%d", httpStatus)
	responses.With(prometheus.Labels{
		"method": string(method),
		"host":   host,
		"status": status,
	}).Inc()
	r.record(counterKey(responsesTotal, string(method), host, status), 1)
}

func (r *Recorder) OutcallFailed(method jsonrpc.Method, host string) {
	outcallErrors.With(prometheus.Labels{"method": string(method), "host": host}).Inc()
	r.record(counterKey(outcallErrorsTotal, string(method), host), 1)
}

func (r *Recorder) CyclesCharged(method jsonrpc.Method, host string, cycles rpc.Cycles) {
	cyclesCharged.With(prometheus.Labels{"method": string(method), "host": host}).Add(float64(cycles))
	r.record(counterKey(cyclesChargedTotal, string(method), host), uint64(cycles))
}

func (r *Recorder) InconsistentResult(method jsonrpc.Method) {
	inconsistentResponses.With(prometheus.Labels{"method": string(method)}).Inc()
	r.record(counterKey(inconsistentTotal, string(method)), 1)
}

func (r *Recorder) PartialFailure(method jsonrpc.Method) {
	partialFailures.With(prometheus.Labels{"method": string(method)}).Inc()
	r.record(counterKey(partialFailureTotal, string(method)), 1)
}

func (r *Recorder) AuthEvent(capability rpc.Capability, granted bool) {
	action := "revoke"
	if granted {
		action = "grant"
	}
	authEvents.With(prometheus.Labels{"capability": string(capability), "action": action}).Inc()
	r.record(counterKey(authEventsTotal, string(capability), action), 1)
}

func (r *Recorder) Authorized(capability rpc.Capability) {
	const action = "approve"
	authEvents.With(prometheus.Labels{"capability": string(capability), "action": action}).Inc()
	r.record(counterKey(authEventsTotal, string(capability), action), 1)
}

func (r *Recorder) Unauthorized(capability rpc.Capability) {
	unauthorized.With(prometheus.Labels{"capability": string(capability)}).Inc()
	r.record(counterKey(unauthorizedTotal, string(capability)), 1)
}
