package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/mfactory-lab/ic-solana/jsonrpc"
)

// ConsensusStrategy decides how the outcomes of a multi-provider dispatch
// are reconciled into one logical result.
type ConsensusStrategy struct {
	// Threshold, when > 0, accepts the most frequent result if at least
	// Threshold providers returned it. Zero means strict equality: every
	// successful result must agree.
	Threshold int
}

// Outcome is one provider's terminal result within a dispatch: either a raw
// JSON-RPC result body or a typed failure, never both.
type Outcome struct {
	Endpoint Endpoint
	Result   json.RawMessage
	Err      error

	// raw is the unparsed HTTP body, kept between the transport attempt and
	// envelope parsing.
	raw []byte
}

// ResponseSet holds exactly one outcome per dispatched endpoint, preserving
// the provider order from the selection policy.
type ResponseSet struct {
	Method   jsonrpc.Method
	Outcomes []Outcome
}

// SuccessCount returns the number of successful outcomes.
func (s ResponseSet) SuccessCount() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// FailureCount returns the number of failed outcomes.
func (s ResponseSet) FailureCount() int {
	return len(s.Outcomes) - s.SuccessCount()
}

func (s ResponseSet) failures() []ProviderFailure {
	var out []ProviderFailure
	for _, o := range s.Outcomes {
		if o.Err == nil {
			continue
		}
		out = append(out, ProviderFailure{
			Provider: o.Endpoint.Provider,
			Kind:     KindOf(o.Err),
			Message:  o.Err.Error(),
		})
	}
	return out
}

// Reduce reconciles the response set into a single result.
//
// Policy:
//   - single provider: that provider's outcome is passed through verbatim.
//   - all providers failed: the first provider's failure is returned with
//     the full per-provider failure list attached.
//   - responders agree (after per-method canonicalization): the common value
//     wins, even if other providers failed (best-effort majority among
//     responders).
//   - responders disagree: a typed Inconsistent error naming the diverging
//     provider ids and a digest of each differing body.
func Reduce(set ResponseSet, strategy ConsensusStrategy) (json.RawMessage, error) {
	if len(set.Outcomes) == 0 {
		return nil, newError(KindNoProviders, "empty response set")
	}

	// Single-provider pass-through, success or typed error.
	if len(set.Outcomes) == 1 {
		o := set.Outcomes[0]
		return o.Result, o.Err
	}

	if set.SuccessCount() == 0 {
		first := set.Outcomes[0]
		e, ok := AsError(first.Err)
		if !ok {
			e = wrapError(KindTransport, first.Err, "%v", first.Err)
		}
		detailed := *e
		detailed.Failures = set.failures()
		return nil, &detailed
	}

	groups, order, err := groupByDigest(set)
	if err != nil {
		return nil, err
	}

	if strategy.Threshold > 0 {
		return reduceWithThreshold(set, groups, order, strategy.Threshold)
	}
	return reduceWithEquality(set, groups, order)
}

// digestGroup collects the providers that returned the same canonicalized
// result, keyed by its Keccak-256 digest.
type digestGroup struct {
	digest    string
	result    json.RawMessage // first-in-order representative body
	providers []string
}

func groupByDigest(set ResponseSet) (map[string]*digestGroup, []string, error) {
	canonicalize := CanonicalizerFor(set.Method)

	groups := make(map[string]*digestGroup)
	var order []string

	for _, o := range set.Outcomes {
		if o.Err != nil {
			continue
		}

		canonical := o.Result
		if canonicalize != nil {
			var err error
			canonical, err = canonicalize(o.Result)
			if err != nil {
				return nil, nil, wrapError(KindMalformedResponse, err,
					"canonicalize %q response from %s", set.Method, o.Endpoint.Provider)
			}
		}

		digest, err := resultDigest(canonical)
		if err != nil {
			return nil, nil, wrapError(KindMalformedResponse, err,
				"digest %q response from %s", set.Method, o.Endpoint.Provider)
		}

		g, ok := groups[digest]
		if !ok {
			g = &digestGroup{digest: digest, result: o.Result}
			groups[digest] = g
			order = append(order, digest)
		}
		g.providers = append(g.providers, o.Endpoint.Provider)
	}

	return groups, order, nil
}

func reduceWithEquality(set ResponseSet, groups map[string]*digestGroup, order []string) (json.RawMessage, error) {
	if len(order) == 1 {
		return groups[order[0]].result, nil
	}
	return nil, inconsistentError(set, groups, order)
}

func reduceWithThreshold(set ResponseSet, groups map[string]*digestGroup, order []string, min int) (json.RawMessage, error) {
	var best *digestGroup
	for _, digest := range order {
		g := groups[digest]
		if best == nil || len(g.providers) > len(best.providers) {
			best = g
		}
	}
	if best != nil && len(best.providers) >= min {
		return best.result, nil
	}
	return nil, inconsistentError(set, groups, order)
}

func inconsistentError(set ResponseSet, groups map[string]*digestGroup, order []string) *Error {
	e := newError(KindInconsistent, "providers returned %d distinct results for %q", len(order), set.Method)
	for _, digest := range order {
		g := groups[digest]
		for _, provider := range g.providers {
			e.Diverging = append(e.Diverging, ProviderDigest{Provider: provider, Digest: g.digest})
		}
	}
	e.Failures = set.failures()
	return e
}

// resultDigest returns the Keccak-256 digest of the result re-marshaled into
// canonical JSON, so key order differences between providers do not register
// as disagreement.
func resultDigest(result json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(result, &v); err != nil {
		return "", fmt.Errorf("result is not valid JSON: %w", err)
	}
	canonical, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)[:8]), nil
}
