package router

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pokt-network/poktroll/pkg/polylog/polyzero"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"

	"github.com/mfactory-lab/ic-solana/config"
	"github.com/mfactory-lab/ic-solana/health"
	"github.com/mfactory-lab/ic-solana/jsonrpc"
	"github.com/mfactory-lab/ic-solana/rpc"
	"github.com/mfactory-lab/ic-solana/solana"
	"github.com/mfactory-lab/ic-solana/store"
	"github.com/mfactory-lab/ic-solana/wallet"
)

const ownerPrincipal = "gateway-owner"

// fakeNode serves canned JSON-RPC results keyed by method.
type fakeNode struct {
	server  *httptest.Server
	results map[string]string
}

func newFakeNode(t *testing.T, results map[string]string) *fakeNode {
	t.Helper()
	n := &fakeNode{results: results}
	n.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonrpc.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		result, ok := n.results[string(req.Method)]
		if !ok {
			_ = json.NewEncoder(w).Encode(jsonrpc.GetErrorResponse(req.ID, -32601, "Method not found", nil))
			return
		}
		resp, err := jsonrpc.GetResultResponse(req.ID, json.RawMessage(result))
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(n.server.Close)
	return n
}

// stubKeys implements wallet.KeyService with deterministic per-path seeds.
type stubKeys struct{}

func (stubKeys) seed(path []byte) []byte {
	sum := sha256.Sum256(path)
	return sum[:]
}

func (s stubKeys) EncryptedKey(_ context.Context, path []byte, transportPub [32]byte) ([]byte, error) {
	return box.SealAnonymous(nil, s.seed(path), &transportPub, rand.Reader)
}

func (s stubKeys) PublicKey(_ context.Context, path []byte) (ed25519.PublicKey, error) {
	return ed25519.NewKeyFromSeed(s.seed(path)).Public().(ed25519.PublicKey), nil
}

type testEnv struct {
	server     *httptest.Server
	registry   *rpc.Registry
	authorizer *rpc.Authorizer
}

func newTestEnv(t *testing.T, rpcCfg config.RPCConfig, nodes ...*fakeNode) *testEnv {
	t.Helper()
	c := require.New(t)
	logger := polyzero.NewLogger()
	ctx := context.Background()
	db := store.NewMemory()

	authorizer, err := rpc.NewAuthorizer(ctx, logger, db, ownerPrincipal, nil)
	c.NoError(err)

	seed := make([]rpc.Provider, 0, len(nodes))
	providerIDs := make([]string, 0, len(nodes))
	for i, node := range nodes {
		id := fmt.Sprintf("node-%d", i+1)
		seed = append(seed, rpc.Provider{ID: id, URL: node.server.URL, Owner: ownerPrincipal})
		providerIDs = append(providerIDs, id)
	}
	registry, err := rpc.NewRegistry(ctx, logger, db, authorizer, seed)
	c.NoError(err)

	gateway := &Gateway{
		Logger:     logger,
		Registry:   registry,
		Authorizer: authorizer,
		Transport:  rpc.NewHTTPTransport(5 * time.Second),
		Meter:      rpc.NopMeter{},
		Wallet: wallet.NewService(logger, stubKeys{}, wallet.Config{
			ConfirmTimeout: 200 * time.Millisecond,
			PollInterval:   10 * time.Millisecond,
		}),
		RPCConfig: rpcCfg,
		Clusters:  map[string][]string{"devnet": providerIDs},
	}

	r := NewRouter(RouterParams{
		Gateway: gateway,
		Health:  &health.Checker{Logger: logger},
		Config:  config.RouterConfig{MaxRequestBodyBytes: 1 << 20},
		Logger:  logger,
	})
	server := httptest.NewServer(r.Handler())
	t.Cleanup(server.Close)

	return &testEnv{server: server, registry: registry, authorizer: authorizer}
}

func demoRPCConfig() config.RPCConfig {
	return config.RPCConfig{DemoMode: true, DefaultBudget: 1, CallTimeout: 2 * time.Second, RetryDelay: time.Millisecond}
}

func (env *testEnv) do(t *testing.T, method, path, principal string, body any) (*http.Response, []byte) {
	t.Helper()
	c := require.New(t)

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		c.NoError(err)
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, env.server.URL+path, payload)
	c.NoError(err)
	if principal != "" {
		req.Header.Set("Authorization", "Bearer "+principal)
	}

	resp, err := http.DefaultClient.Do(req)
	c.NoError(err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	c.NoError(err)
	return resp, raw
}

func Test_Healthz(t *testing.T) {
	c := require.New(t)
	env := newTestEnv(t, demoRPCConfig())

	resp, body := env.do(t, http.MethodGet, "/healthz", "", nil)
	c.Equal(http.StatusOK, resp.StatusCode)
	c.Contains(string(body), `"status":"ready"`)
}

func Test_TypedRead_Agreement(t *testing.T) {
	c := require.New(t)
	balance := `{"context":{"slot":100},"value":5000}`
	n1 := newFakeNode(t, map[string]string{"getBalance": balance})
	n2 := newFakeNode(t, map[string]string{"getBalance": `{"context":{"slot":102},"value":5000}`})
	env := newTestEnv(t, demoRPCConfig(), n1, n2)

	pubkey := "11111111111111111111111111111111"
	resp, body := env.do(t, http.MethodGet, "/v1/devnet/balance/"+pubkey, "", nil)
	c.Equal(http.StatusOK, resp.StatusCode)
	c.JSONEq(`{"lamports":5000}`, string(body))
}

func Test_TypedRead_Inconsistency(t *testing.T) {
	c := require.New(t)
	n1 := newFakeNode(t, map[string]string{"getBalance": `{"context":{"slot":100},"value":5000}`})
	n2 := newFakeNode(t, map[string]string{"getBalance": `{"context":{"slot":100},"value":9999}`})
	env := newTestEnv(t, demoRPCConfig(), n1, n2)

	pubkey := "11111111111111111111111111111111"
	resp, body := env.do(t, http.MethodGet, "/v1/devnet/balance/"+pubkey, "", nil)
	c.Equal(http.StatusBadGateway, resp.StatusCode)

	var envelope errorBody
	c.NoError(json.Unmarshal(body, &envelope))
	c.Equal(rpc.KindInconsistent, envelope.Error.Kind)
	c.Len(envelope.Error.Diverging, 2)
}

func Test_Passthrough(t *testing.T) {
	c := require.New(t)
	n1 := newFakeNode(t, map[string]string{"getSlot": `1234`})
	env := newTestEnv(t, demoRPCConfig(), n1)

	req := map[string]any{"jsonrpc": "2.0", "id": 1, "method": "getSlot"}
	resp, body := env.do(t, http.MethodPost, "/v1/rpc/devnet", "", req)
	c.Equal(http.StatusOK, resp.StatusCode)

	var envelope jsonrpc.Response
	c.NoError(json.Unmarshal(body, &envelope))
	c.NoError(envelope.Validate())
	c.JSONEq(`1234`, string(envelope.Result))
}

func Test_Passthrough_RejectsMutatingMethods(t *testing.T) {
	c := require.New(t)
	n1 := newFakeNode(t, map[string]string{"sendTransaction": `"sig"`})
	env := newTestEnv(t, demoRPCConfig(), n1)

	req := map[string]any{"jsonrpc": "2.0", "id": 1, "method": "sendTransaction", "params": []string{"AAAA"}}
	resp, body := env.do(t, http.MethodPost, "/v1/rpc/devnet", "", req)
	c.Equal(http.StatusBadRequest, resp.StatusCode)

	var envelope jsonrpc.Response
	c.NoError(json.Unmarshal(body, &envelope))
	c.NotNil(envelope.Error)
}

func Test_BudgetEnforcement(t *testing.T) {
	c := require.New(t)
	n1 := newFakeNode(t, map[string]string{"getSlot": `1234`})
	cfg := demoRPCConfig()
	cfg.DemoMode = false
	cfg.DefaultBudget = 1
	env := newTestEnv(t, cfg, n1)

	resp, body := env.do(t, http.MethodGet, "/v1/devnet/slot", "", nil)
	c.Equal(http.StatusPaymentRequired, resp.StatusCode)
	c.Contains(string(body), "insufficient cycles")

	// A generous explicit budget unblocks the call.
	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/v1/devnet/slot", nil)
	c.NoError(err)
	req.Header.Set("X-Cycles-Budget", "99999999999999")
	okResp, err := http.DefaultClient.Do(req)
	c.NoError(err)
	defer okResp.Body.Close()
	c.Equal(http.StatusOK, okResp.StatusCode)

	// A malformed budget header is rejected outright.
	req.Header.Set("X-Cycles-Budget", "a-lot")
	badResp, err := http.DefaultClient.Do(req)
	c.NoError(err)
	defer badResp.Body.Close()
	c.Equal(http.StatusBadRequest, badResp.StatusCode)
}

func Test_ProviderAdmin(t *testing.T) {
	c := require.New(t)
	env := newTestEnv(t, demoRPCConfig())

	provider := map[string]any{
		"id":   "alchemy",
		"url":  "https://solana.example.com/v2",
		"auth": map[string]string{"bearer_token": "secret"},
	}

	// Without a capability the registration is denied.
	resp, _ := env.do(t, http.MethodPost, "/v1/providers", "stranger", provider)
	c.Equal(http.StatusForbidden, resp.StatusCode)

	// The owner may register.
	resp, _ = env.do(t, http.MethodPost, "/v1/providers", ownerPrincipal, provider)
	c.Equal(http.StatusCreated, resp.StatusCode)

	// Duplicate ids conflict.
	resp, _ = env.do(t, http.MethodPost, "/v1/providers", ownerPrincipal, provider)
	c.Equal(http.StatusConflict, resp.StatusCode)

	// The listing is open and redacts credentials.
	resp, body := env.do(t, http.MethodGet, "/v1/providers", "", nil)
	c.Equal(http.StatusOK, resp.StatusCode)
	c.Contains(string(body), `"alchemy"`)
	c.Contains(string(body), "[redacted]")
	c.NotContains(string(body), "secret")

	// Deletion by the owner.
	resp, _ = env.do(t, http.MethodDelete, "/v1/providers/alchemy", ownerPrincipal, nil)
	c.Equal(http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodDelete, "/v1/providers/alchemy", ownerPrincipal, nil)
	c.Equal(http.StatusNotFound, resp.StatusCode)
}

func Test_AuthAdmin(t *testing.T) {
	c := require.New(t)
	env := newTestEnv(t, demoRPCConfig())

	grant := map[string]string{"principal": "friend", "capability": "register_provider"}

	resp, _ := env.do(t, http.MethodPost, "/v1/auth", "stranger", grant)
	c.Equal(http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/v1/auth", ownerPrincipal, grant)
	c.Equal(http.StatusNoContent, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/v1/auth", "", nil)
	c.Equal(http.StatusOK, resp.StatusCode)
	c.Contains(string(body), `"friend"`)

	resp, _ = env.do(t, http.MethodDelete, "/v1/auth/friend/register_provider", ownerPrincipal, nil)
	c.Equal(http.StatusNoContent, resp.StatusCode)
	c.False(env.authorizer.IsAuthorized("friend", rpc.CapabilityRegisterProvider))
}

func Test_WalletSend_Transfers(t *testing.T) {
	c := require.New(t)

	var blockhash solana.Blockhash
	blockhash[0] = 0x11
	var sig solana.Signature
	for i := range sig {
		sig[i] = 0x22
	}

	node := newFakeNode(t, map[string]string{
		"getLatestBlockhash": fmt.Sprintf(
			`{"context":{"slot":1},"value":{"blockhash":%q,"lastValidBlockHeight":100}}`, blockhash.String()),
		"sendTransaction": fmt.Sprintf(`%q`, sig.String()),
		"getSignatureStatuses": `{"context":{"slot":2},"value":[{"slot":2,"confirmationStatus":"confirmed"}]}`,
	})
	env := newTestEnv(t, demoRPCConfig(), node)

	var to solana.Pubkey
	to[0] = 0x42
	body := map[string]any{
		"transfers": []map[string]any{{"to": to.String(), "lamports": 1000}},
	}

	resp, raw := env.do(t, http.MethodPost, "/v1/wallet/send/devnet", "alice", body)
	c.Equal(http.StatusOK, resp.StatusCode)

	var result struct {
		JobID     string `json:"jobId"`
		State     string `json:"state"`
		Signature string `json:"signature"`
	}
	c.NoError(json.Unmarshal(raw, &result))
	c.NotEmpty(result.JobID)
	c.Equal("confirmed", result.State)
	c.Equal(sig.String(), result.Signature)

	// A body with neither a transaction nor transfers is rejected.
	resp, _ = env.do(t, http.MethodPost, "/v1/wallet/send/devnet", "alice", map[string]any{})
	c.Equal(http.StatusBadRequest, resp.StatusCode)
}

func Test_WalletAddress(t *testing.T) {
	c := require.New(t)
	env := newTestEnv(t, demoRPCConfig())

	// Anonymous callers have no wallet.
	resp, _ := env.do(t, http.MethodGet, "/v1/wallet/address", "", nil)
	c.Equal(http.StatusForbidden, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/v1/wallet/address", "alice", nil)
	c.Equal(http.StatusOK, resp.StatusCode)

	var first map[string]string
	c.NoError(json.Unmarshal(body, &first))
	c.NotEmpty(first["address"])

	// Deterministic per principal.
	_, again := env.do(t, http.MethodGet, "/v1/wallet/address", "alice", nil)
	c.JSONEq(string(body), string(again))

	_, other := env.do(t, http.MethodGet, "/v1/wallet/address", "bob", nil)
	c.NotEqual(string(body), string(other))
}
