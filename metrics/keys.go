package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Persisted counters are keyed by the metric name and its label values,
// joined with "|". The provider host and the method name never contain that
// character, so the key round-trips.
const keySeparator = "|"

func counterKey(name string, labels ...string) string {
	return name + keySeparator + strings.Join(labels, keySeparator)
}

// collectorFor maps a persisted counter key back to its live collector.
// Returns nil for keys whose metric no longer exists or whose label count
// does not match, so a schema change cannot poison a restart.
func collectorFor(key string) prometheus.Counter {
	parts := strings.Split(key, keySeparator)
	name, labels := parts[0], parts[1:]

	var (
		vec   *prometheus.CounterVec
		arity int
	)
	switch name {
	case requestsTotal:
		vec, arity = requests, 2
	case responsesTotal:
		vec, arity = responses, 3
	case outcallErrorsTotal:
		vec, arity = outcallErrors, 2
	case unauthorizedTotal:
		vec, arity = unauthorized, 1
	case cyclesChargedTotal:
		vec, arity = cyclesCharged, 2
	case inconsistentTotal:
		vec, arity = inconsistentResponses, 1
	case partialFailureTotal:
		vec, arity = partialFailures, 1
	case authEventsTotal:
		vec, arity = authEvents, 2
	default:
		return nil
	}
	if len(labels) != arity {
		return nil
	}
	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return nil
	}
	return counter
}
