package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pokt-network/poktroll/pkg/polylog"

	"github.com/mfactory-lab/ic-solana/jsonrpc"
)

const (
	defaultCallTimeout = 30 * time.Second
	defaultRetryDelay  = 500 * time.Millisecond
)

// nextRequestID issues process-wide unique JSON-RPC request ids.
var nextRequestID atomic.Int64

// ClientConfig tunes one client instance. The zero value is usable: strict
// equality consensus, default timeouts, unmetered budget.
type ClientConfig struct {
	// Strategy reconciles multi-provider outcomes. Zero value: equality.
	Strategy ConsensusStrategy

	// CallTimeout bounds the whole dispatch. In-flight providers past the
	// deadline are abandoned and recorded as timed-out failures.
	CallTimeout time.Duration

	// RetryDelay is the backoff before the single retry of a transient
	// transport failure.
	RetryDelay time.Duration

	// ResponseSizeEstimate overrides the per-method response size bound.
	ResponseSizeEstimate uint64

	// Budget is the caller's cycle budget for this dispatch. Ignored when
	// DemoMode is set; otherwise a dispatch whose estimated cost (with
	// collateral) exceeds it is rejected before any outcall.
	Budget Cycles

	// DemoMode disables budget enforcement. Cost is still metered.
	DemoMode bool
}

func (cfg *ClientConfig) hydrateDefaults() {
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
}

// Client dispatches one logical JSON-RPC call as N concurrent outcalls to a
// fixed endpoint list and reconciles the answers. A client is built per
// request from the caller's provider selection; it holds no mutable state.
type Client struct {
	logger    polylog.Logger
	transport Transport
	endpoints []Endpoint
	meter     Meter
	cfg       ClientConfig
}

// NewClient builds a client over a non-empty endpoint list.
func NewClient(logger polylog.Logger, transport Transport, endpoints []Endpoint, meter Meter, cfg ClientConfig) (*Client, error) {
	if len(endpoints) == 0 {
		return nil, newError(KindNoProviders, "no providers configured for this call")
	}
	if meter == nil {
		meter = NopMeter{}
	}
	cfg.hydrateDefaults()

	return &Client{
		logger:    logger.With("component", "rpc_client"),
		transport: transport,
		endpoints: endpoints,
		meter:     meter,
		cfg:       cfg,
	}, nil
}

// Call performs one logical JSON-RPC call and returns the reconciled result.
//
// The estimated cycle cost is bounds-checked against the budget before any
// outcall; once calls are issued, their cost is metered regardless of
// outcome.
func (c *Client) Call(ctx context.Context, method jsonrpc.Method, params any) (json.RawMessage, error) {
	req, err := jsonrpc.NewRequest(jsonrpc.IDFromInt(nextRequestID.Add(1)), method, params)
	if err != nil {
		return nil, wrapError(KindInvalidRequest, err, "build %q request", method)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, wrapError(KindInvalidRequest, err, "marshal %q request", method)
	}

	maxResponseBytes := c.cfg.ResponseSizeEstimate
	if maxResponseBytes == 0 {
		maxResponseBytes = ResponseSizeEstimate(method)
	}

	perCallCost := RequestCost(uint64(len(payload)), maxResponseBytes)
	totalWithCollateral := CostWithCollateral(perCallCost) * Cycles(len(c.endpoints))
	if !c.cfg.DemoMode && totalWithCollateral > c.cfg.Budget {
		return nil, newError(KindInsufficientCycles,
			"insufficient cycles: available %d, required %d (with collateral)", c.cfg.Budget, totalWithCollateral)
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	// Fan-out: one goroutine per endpoint, joined below. Outcomes land in
	// their policy-order slot so the response set preserves provider order.
	outcomes := make([]Outcome, len(c.endpoints))
	var wg sync.WaitGroup
	for i, ep := range c.endpoints {
		wg.Add(1)
		go func(i int, ep Endpoint) {
			defer wg.Done()
			c.meter.CyclesCharged(method, ep.Host, perCallCost)
			outcomes[i] = c.callOne(dispatchCtx, ep, method, req.ID, payload, maxResponseBytes)
		}(i, ep)
	}
	wg.Wait()

	set := ResponseSet{Method: method, Outcomes: outcomes}
	result, err := Reduce(set, c.cfg.Strategy)
	switch {
	case err == nil && set.FailureCount() > 0:
		c.meter.PartialFailure(method)
	case IsKind(err, KindInconsistent):
		c.meter.InconsistentResult(method)
	}
	return result, err
}

// callOne issues one outcall, retrying a transient transport failure once
// with backoff. Malformed bodies and JSON-RPC error objects are
// deterministic and never retried.
func (c *Client) callOne(ctx context.Context, ep Endpoint, method jsonrpc.Method, id jsonrpc.ID, payload []byte, maxResponseBytes uint64) Outcome {
	outcome := c.issueOnce(ctx, ep, method, payload, maxResponseBytes)

	if outcome.Err != nil && retryable(KindOf(outcome.Err)) && ctx.Err() == nil {
		select {
		case <-time.After(c.cfg.RetryDelay):
			c.logger.Debug().
				Str("provider", ep.Provider).
				Str("method", string(method)).
				Msg("retrying transient outcall failure")
			outcome = c.issueOnce(ctx, ep, method, payload, maxResponseBytes)
		case <-ctx.Done():
		}
	}

	if outcome.Err != nil {
		return outcome
	}

	// Parse and validate the JSON-RPC envelope.
	var resp jsonrpc.Response
	if err := json.Unmarshal(outcome.raw, &resp); err != nil {
		outcome.Err = wrapError(KindMalformedResponse, err, "provider %s returned a non-JSON-RPC body", ep.Provider)
		return outcome
	}
	if err := resp.Validate(); err != nil {
		outcome.Err = wrapError(KindMalformedResponse, err, "provider %s", ep.Provider)
		return outcome
	}
	if !resp.ID.Equal(id) {
		outcome.Err = newError(KindMalformedResponse, "provider %s echoed id %s, expected %s", ep.Provider, resp.ID, id)
		return outcome
	}
	if resp.Error != nil {
		outcome.Err = &Error{
			Kind:     KindRPCError,
			Message:  resp.Error.Error(),
			RPCError: resp.Error,
		}
		return outcome
	}

	outcome.Result = resp.Result
	return outcome
}

// issueOnce performs a single transport attempt and classifies its failure.
// The raw body is kept on the outcome for envelope parsing by the caller.
func (c *Client) issueOnce(ctx context.Context, ep Endpoint, method jsonrpc.Method, payload []byte, maxResponseBytes uint64) Outcome {
	outcome := Outcome{Endpoint: ep}

	headers := map[string]string{"Content-Type": "application/json"}
	for name, value := range ep.Headers {
		headers[name] = value
	}

	c.meter.RequestIssued(method, ep.Host)
	resp, err := c.transport.Issue(ctx, OutcallRequest{
		URL:              ep.URL,
		Method:           http.MethodPost,
		Headers:          headers,
		Body:             payload,
		MaxResponseBytes: maxResponseBytes,
	})
	if err != nil {
		c.meter.OutcallFailed(method, ep.Host)
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			outcome.Err = wrapError(KindTimeout, err, "outcall to %s timed out", ep.Provider)
		} else {
			outcome.Err = wrapError(KindTransport, err, "outcall to %s failed", ep.Provider)
		}
		return outcome
	}

	c.meter.ResponseReceived(method, ep.Host, resp.StatusCode)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		outcome.Err = newError(KindTransport, "provider %s returned HTTP status %d", ep.Provider, resp.StatusCode)
		return outcome
	}

	outcome.raw = resp.Body
	return outcome
}
