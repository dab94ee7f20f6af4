package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pokt-network/poktroll/pkg/polylog/polyzero"
	"github.com/stretchr/testify/require"

	"github.com/mfactory-lab/ic-solana/jsonrpc"
)

// fakeProvider is an httptest-backed JSON-RPC provider that echoes the
// request id around a canned result or error.
type fakeProvider struct {
	server *httptest.Server
	hits   atomic.Int64

	result   string
	rpcError *jsonrpc.ResponseError
	status   int
	delay    time.Duration

	// failFirst makes the first attempt return HTTP 500, so the retry path
	// can be exercised.
	failFirst bool
}

func newFakeProvider(t *testing.T, result string) *fakeProvider {
	t.Helper()
	p := &fakeProvider{result: result, status: http.StatusOK}
	p.server = httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) handle(w http.ResponseWriter, r *http.Request) {
	hit := p.hits.Add(1)
	if p.failFirst && hit == 1 {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	var req jsonrpc.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	resp := jsonrpc.Response{ID: req.ID, JSONRPC: jsonrpc.Version2}
	if p.rpcError != nil {
		resp.Error = p.rpcError
	} else {
		resp.Result = json.RawMessage(p.result)
	}

	if p.status != http.StatusOK {
		w.WriteHeader(p.status)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (p *fakeProvider) endpoint(t *testing.T) Endpoint {
	t.Helper()
	ep, err := EndpointFromURL(p.server.URL)
	require.NoError(t, err)
	return ep
}

func newTestClient(t *testing.T, cfg ClientConfig, endpoints ...Endpoint) *Client {
	t.Helper()
	cfg.DemoMode = true
	client, err := NewClient(polyzero.NewLogger(), NewHTTPTransport(5*time.Second), endpoints, NopMeter{}, cfg)
	require.NoError(t, err)
	return client
}

func Test_Client_FanOutAgreement(t *testing.T) {
	c := require.New(t)
	p1 := newFakeProvider(t, `42`)
	p2 := newFakeProvider(t, `42`)

	client := newTestClient(t, ClientConfig{}, p1.endpoint(t), p2.endpoint(t))
	result, err := client.Call(context.Background(), MethodGetSlot, nil)
	c.NoError(err)
	c.JSONEq(`42`, string(result))
	c.Equal(int64(1), p1.hits.Load())
	c.Equal(int64(1), p2.hits.Load())
}

func Test_Client_FanOutDisagreement(t *testing.T) {
	c := require.New(t)
	p1 := newFakeProvider(t, `42`)
	p2 := newFakeProvider(t, `43`)

	client := newTestClient(t, ClientConfig{}, p1.endpoint(t), p2.endpoint(t))
	_, err := client.Call(context.Background(), MethodGetSlot, nil)
	c.Equal(KindInconsistent, KindOf(err))

	gwErr, ok := AsError(err)
	c.True(ok)
	c.Len(gwErr.Diverging, 2)
}

func Test_Client_BudgetEnforcement(t *testing.T) {
	c := require.New(t)
	p1 := newFakeProvider(t, `42`)

	client, err := NewClient(polyzero.NewLogger(), NewHTTPTransport(5*time.Second),
		[]Endpoint{p1.endpoint(t)}, NopMeter{}, ClientConfig{Budget: 1})
	c.NoError(err)

	_, err = client.Call(context.Background(), MethodGetSlot, nil)
	c.Equal(KindInsufficientCycles, KindOf(err))

	// Rejected before any outcall.
	c.Equal(int64(0), p1.hits.Load())
}

func Test_Client_DemoModeSkipsBudget(t *testing.T) {
	c := require.New(t)
	p1 := newFakeProvider(t, `42`)

	client, err := NewClient(polyzero.NewLogger(), NewHTTPTransport(5*time.Second),
		[]Endpoint{p1.endpoint(t)}, NopMeter{}, ClientConfig{Budget: 1, DemoMode: true})
	c.NoError(err)

	result, err := client.Call(context.Background(), MethodGetSlot, nil)
	c.NoError(err)
	c.JSONEq(`42`, string(result))
}

func Test_Client_RetriesTransientFailure(t *testing.T) {
	c := require.New(t)
	p1 := newFakeProvider(t, `42`)
	p1.failFirst = true

	client := newTestClient(t, ClientConfig{RetryDelay: 10 * time.Millisecond}, p1.endpoint(t))
	result, err := client.Call(context.Background(), MethodGetSlot, nil)
	c.NoError(err)
	c.JSONEq(`42`, string(result))
	c.Equal(int64(2), p1.hits.Load())
}

func Test_Client_Timeout(t *testing.T) {
	c := require.New(t)
	p1 := newFakeProvider(t, `42`)
	p1.delay = 300 * time.Millisecond

	client := newTestClient(t, ClientConfig{
		CallTimeout: 50 * time.Millisecond,
		RetryDelay:  time.Millisecond,
	}, p1.endpoint(t))

	_, err := client.Call(context.Background(), MethodGetSlot, nil)
	c.Equal(KindTimeout, KindOf(err))
}

func Test_Client_RPCErrorPassthrough(t *testing.T) {
	c := require.New(t)
	p1 := newFakeProvider(t, ``)
	p1.rpcError = &jsonrpc.ResponseError{Code: -32601, Message: "Method not found"}

	client := newTestClient(t, ClientConfig{}, p1.endpoint(t))
	_, err := client.Call(context.Background(), "getBogusMethod", nil)
	c.Equal(KindRPCError, KindOf(err))

	gwErr, ok := AsError(err)
	c.True(ok)
	c.NotNil(gwErr.RPCError)
	c.Equal(int64(-32601), gwErr.RPCError.Code)

	// Deterministic failures are not retried.
	c.Equal(int64(1), p1.hits.Load())
}

func Test_Client_MalformedResponse(t *testing.T) {
	c := require.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	t.Cleanup(server.Close)

	ep, err := EndpointFromURL(server.URL)
	c.NoError(err)

	client := newTestClient(t, ClientConfig{}, ep)
	_, err = client.Call(context.Background(), MethodGetSlot, nil)
	c.Equal(KindMalformedResponse, KindOf(err))
}

func Test_Client_PartialFailureStillSucceeds(t *testing.T) {
	c := require.New(t)
	p1 := newFakeProvider(t, `42`)
	p2 := newFakeProvider(t, `42`)
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(broken.Close)
	brokenEp, err := EndpointFromURL(broken.URL)
	c.NoError(err)

	client := newTestClient(t, ClientConfig{RetryDelay: time.Millisecond},
		p1.endpoint(t), p2.endpoint(t), brokenEp)

	result, err := client.Call(context.Background(), MethodGetSlot, nil)
	c.NoError(err)
	c.JSONEq(`42`, string(result))
}

func Test_Client_TypedWrappers(t *testing.T) {
	c := require.New(t)
	p1 := newFakeProvider(t, `{"context":{"slot":100},"value":5000}`)

	client := newTestClient(t, ClientConfig{}, p1.endpoint(t))
	pubkey := [32]byte{1}

	balance, err := client.GetBalance(context.Background(), pubkey, "")
	c.NoError(err)
	c.Equal(uint64(5000), balance)
}

func Test_Client_RequiresEndpoints(t *testing.T) {
	c := require.New(t)
	_, err := NewClient(polyzero.NewLogger(), NewHTTPTransport(time.Second), nil, NopMeter{}, ClientConfig{})
	c.Equal(KindNoProviders, KindOf(err))
}
