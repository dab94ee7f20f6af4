package router

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/mfactory-lab/ic-solana/jsonrpc"
	"github.com/mfactory-lab/ic-solana/rpc"
	"github.com/mfactory-lab/ic-solana/solana"
	"github.com/mfactory-lab/ic-solana/wallet"
)

/* --------------------------------- Generic Passthrough -------------------------------- */

// POST /v1/rpc/{cluster}
//
// The body is a single JSON-RPC request; the response is its JSON-RPC
// envelope. Read-only: mutating methods are rejected before dispatch.
func (r *router) handleRPCPassthrough(w http.ResponseWriter, req *http.Request) {
	budget, err := r.callerBudget(req)
	if err != nil {
		r.writeError(w, err)
		return
	}

	var rpcReq jsonrpc.Request
	if err := r.decodeBody(w, req, &rpcReq); err != nil {
		r.writeError(w, err)
		return
	}
	if err := rpcReq.Validate(); err != nil {
		r.writeError(w, rpc.NewError(rpc.KindInvalidRequest, "%v", err))
		return
	}

	result, err := r.gateway.Dispatch(req.Context(), selectionFromRequest(req), budget, rpcReq.Method, rpcReq.Params)
	if err != nil {
		r.writeRPCError(w, rpcReq.ID, err)
		return
	}
	resp, err := jsonrpc.GetResultResponse(rpcReq.ID, result)
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, resp)
}

// JSON-RPC error codes for gateway-originated failures on the passthrough
// surface. Provider-reported errors pass through verbatim.
const (
	rpcCodeInvalidRequest = -32600
	rpcCodeServerError    = -32000
)

func (r *router) writeRPCError(w http.ResponseWriter, id jsonrpc.ID, err error) {
	gwErr, ok := rpc.AsError(err)
	if !ok {
		r.writeJSON(w, http.StatusInternalServerError,
			jsonrpc.GetErrorResponse(id, rpcCodeServerError, err.Error(), nil))
		return
	}
	if gwErr.Kind == rpc.KindRPCError && gwErr.RPCError != nil {
		r.writeJSON(w, http.StatusOK, jsonrpc.Response{
			ID:      id,
			JSONRPC: jsonrpc.Version2,
			Error:   gwErr.RPCError,
		})
		return
	}

	code := int64(rpcCodeServerError)
	if gwErr.Kind == rpc.KindInvalidRequest {
		code = rpcCodeInvalidRequest
	}
	var data any
	if len(gwErr.Diverging) > 0 {
		data = gwErr.Diverging
	} else if len(gwErr.Failures) > 0 {
		data = gwErr.Failures
	}
	r.writeJSON(w, statusForKind(gwErr.Kind), jsonrpc.GetErrorResponse(id, code, gwErr.Message, data))
}

/* --------------------------------- Typed Reads -------------------------------- */

// dispatchClient builds the per-request client for a typed endpoint.
func (r *router) dispatchClient(w http.ResponseWriter, req *http.Request) (*rpc.Client, bool) {
	budget, err := r.callerBudget(req)
	if err != nil {
		r.writeError(w, err)
		return nil, false
	}
	client, err := r.gateway.client(selectionFromRequest(req), budget)
	if err != nil {
		r.writeError(w, err)
		return nil, false
	}
	return client, true
}

func commitmentFromRequest(req *http.Request) solana.Commitment {
	return solana.Commitment(req.URL.Query().Get("commitment"))
}

func pubkeyFromPath(req *http.Request) (solana.Pubkey, error) {
	pk, err := solana.PubkeyFromBase58(req.PathValue("pubkey"))
	if err != nil {
		return solana.Pubkey{}, rpc.NewError(rpc.KindInvalidRequest, "%v", err)
	}
	return pk, nil
}

// GET /v1/{cluster}/balance/{pubkey}
func (r *router) handleGetBalance(w http.ResponseWriter, req *http.Request) {
	pubkey, err := pubkeyFromPath(req)
	if err != nil {
		r.writeError(w, err)
		return
	}
	client, ok := r.dispatchClient(w, req)
	if !ok {
		return
	}
	balance, err := client.GetBalance(req.Context(), pubkey, commitmentFromRequest(req))
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]uint64{"lamports": balance})
}

// GET /v1/{cluster}/account/{pubkey}
func (r *router) handleGetAccountInfo(w http.ResponseWriter, req *http.Request) {
	pubkey, err := pubkeyFromPath(req)
	if err != nil {
		r.writeError(w, err)
		return
	}
	client, ok := r.dispatchClient(w, req)
	if !ok {
		return
	}
	account, err := client.GetAccountInfo(req.Context(), pubkey, commitmentFromRequest(req))
	if err != nil {
		r.writeError(w, err)
		return
	}
	if account == nil {
		r.writeError(w, rpc.NewError(rpc.KindNotFound, "account %s does not exist", pubkey))
		return
	}
	r.writeJSON(w, http.StatusOK, account)
}

// GET /v1/{cluster}/blockhash
func (r *router) handleGetLatestBlockhash(w http.ResponseWriter, req *http.Request) {
	client, ok := r.dispatchClient(w, req)
	if !ok {
		return
	}
	latest, err := client.GetLatestBlockhash(req.Context(), commitmentFromRequest(req))
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, latest)
}

// GET /v1/{cluster}/slot
func (r *router) handleGetSlot(w http.ResponseWriter, req *http.Request) {
	client, ok := r.dispatchClient(w, req)
	if !ok {
		return
	}
	slot, err := client.GetSlot(req.Context(), commitmentFromRequest(req))
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]uint64{"slot": slot})
}

// GET /v1/{cluster}/height
func (r *router) handleGetBlockHeight(w http.ResponseWriter, req *http.Request) {
	client, ok := r.dispatchClient(w, req)
	if !ok {
		return
	}
	height, err := client.GetBlockHeight(req.Context(), commitmentFromRequest(req))
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]uint64{"blockHeight": height})
}

// GET /v1/{cluster}/health
func (r *router) handleGetHealth(w http.ResponseWriter, req *http.Request) {
	client, ok := r.dispatchClient(w, req)
	if !ok {
		return
	}
	status, err := client.GetHealth(req.Context())
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// GET /v1/{cluster}/epoch
func (r *router) handleGetEpochInfo(w http.ResponseWriter, req *http.Request) {
	client, ok := r.dispatchClient(w, req)
	if !ok {
		return
	}
	info, err := client.GetEpochInfo(req.Context(), commitmentFromRequest(req))
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, info)
}

// GET /v1/{cluster}/transaction/{signature}
func (r *router) handleGetTransaction(w http.ResponseWriter, req *http.Request) {
	sig, err := solana.SignatureFromBase58(req.PathValue("signature"))
	if err != nil {
		r.writeError(w, rpc.NewError(rpc.KindInvalidRequest, "%v", err))
		return
	}
	client, ok := r.dispatchClient(w, req)
	if !ok {
		return
	}
	tx, err := client.GetTransaction(req.Context(), sig)
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, tx)
}

type signatureStatusesRequest struct {
	Signatures               []string `json:"signatures"`
	SearchTransactionHistory bool     `json:"searchTransactionHistory"`
}

// POST /v1/{cluster}/signatures/status
func (r *router) handleSignatureStatuses(w http.ResponseWriter, req *http.Request) {
	var body signatureStatusesRequest
	if err := r.decodeBody(w, req, &body); err != nil {
		r.writeError(w, err)
		return
	}
	sigs := make([]solana.Signature, 0, len(body.Signatures))
	for _, raw := range body.Signatures {
		sig, err := solana.SignatureFromBase58(raw)
		if err != nil {
			r.writeError(w, rpc.NewError(rpc.KindInvalidRequest, "%v", err))
			return
		}
		sigs = append(sigs, sig)
	}
	if len(sigs) == 0 {
		r.writeError(w, rpc.NewError(rpc.KindInvalidRequest, "signatures list is empty"))
		return
	}

	client, ok := r.dispatchClient(w, req)
	if !ok {
		return
	}
	statuses, err := client.GetSignatureStatuses(req.Context(), sigs, body.SearchTransactionHistory)
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]any{"statuses": statuses})
}

/* --------------------------------- Writes -------------------------------- */

type sendTransactionRequest struct {
	Transaction         string            `json:"transaction"`
	SkipPreflight       bool              `json:"skipPreflight,omitempty"`
	PreflightCommitment solana.Commitment `json:"preflightCommitment,omitempty"`
	MaxRetries          *uint64           `json:"maxRetries,omitempty"`
}

func (b sendTransactionRequest) config() rpc.SendTransactionConfig {
	return rpc.SendTransactionConfig{
		SkipPreflight:       b.SkipPreflight,
		PreflightCommitment: b.PreflightCommitment,
		MaxRetries:          b.MaxRetries,
	}
}

// POST /v1/{cluster}/transactions
func (r *router) handleSendTransaction(w http.ResponseWriter, req *http.Request) {
	budget, err := r.callerBudget(req)
	if err != nil {
		r.writeError(w, err)
		return
	}
	var body sendTransactionRequest
	if err := r.decodeBody(w, req, &body); err != nil {
		r.writeError(w, err)
		return
	}
	if body.Transaction == "" {
		r.writeError(w, rpc.NewError(rpc.KindInvalidRequest, "transaction is required"))
		return
	}

	sig, err := r.gateway.SendRawTransaction(req.Context(), selectionFromRequest(req), budget, body.Transaction, body.config())
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]string{"signature": sig.String()})
}

/* --------------------------------- Provider Administration -------------------------------- */

// GET /v1/providers
func (r *router) handleListProviders(w http.ResponseWriter, req *http.Request) {
	r.writeJSON(w, http.StatusOK, map[string]any{"providers": r.gateway.Registry.List()})
}

// POST /v1/providers
func (r *router) handleRegisterProvider(w http.ResponseWriter, req *http.Request) {
	var provider rpc.Provider
	if err := r.decodeBody(w, req, &provider); err != nil {
		r.writeError(w, err)
		return
	}
	caller := callerPrincipal(req)
	provider.Owner = caller

	if err := r.gateway.Registry.Register(req.Context(), caller, provider); err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusCreated, map[string]string{"id": provider.ID})
}

type updateProviderRequest struct {
	URL  *string   `json:"url,omitempty"`
	Auth *rpc.Auth `json:"auth,omitempty"`
}

// PUT /v1/providers/{id}
func (r *router) handleUpdateProvider(w http.ResponseWriter, req *http.Request) {
	var body updateProviderRequest
	if err := r.decodeBody(w, req, &body); err != nil {
		r.writeError(w, err)
		return
	}
	id := req.PathValue("id")
	if err := r.gateway.Registry.Update(req.Context(), callerPrincipal(req), id, body.URL, body.Auth); err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// DELETE /v1/providers/{id}
func (r *router) handleUnregisterProvider(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	if err := r.gateway.Registry.Unregister(req.Context(), callerPrincipal(req), id); err != nil {
		r.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/* --------------------------------- Capability Administration -------------------------------- */

// GET /v1/auth
func (r *router) handleListGrants(w http.ResponseWriter, req *http.Request) {
	r.writeJSON(w, http.StatusOK, map[string]any{"grants": r.gateway.Authorizer.Grants()})
}

type authRequest struct {
	Principal  string `json:"principal"`
	Capability string `json:"capability"`
}

// POST /v1/auth
func (r *router) handleAuthorize(w http.ResponseWriter, req *http.Request) {
	var body authRequest
	if err := r.decodeBody(w, req, &body); err != nil {
		r.writeError(w, err)
		return
	}
	capability, err := rpc.ParseCapability(body.Capability)
	if err != nil {
		r.writeError(w, rpc.NewError(rpc.KindInvalidRequest, "%v", err))
		return
	}
	if err := r.gateway.Authorizer.Authorize(req.Context(), callerPrincipal(req), rpc.Principal(body.Principal), capability); err != nil {
		r.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /v1/auth/{principal}/{capability}
func (r *router) handleDeauthorize(w http.ResponseWriter, req *http.Request) {
	capability, err := rpc.ParseCapability(req.PathValue("capability"))
	if err != nil {
		r.writeError(w, rpc.NewError(rpc.KindInvalidRequest, "%v", err))
		return
	}
	principal := rpc.Principal(req.PathValue("principal"))
	if err := r.gateway.Authorizer.Deauthorize(req.Context(), callerPrincipal(req), principal, capability); err != nil {
		r.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/* --------------------------------- Wallet -------------------------------- */

func (r *router) requireWallet(w http.ResponseWriter) bool {
	if r.gateway.Wallet == nil {
		r.writeError(w, rpc.NewError(rpc.KindInvalidRequest, "wallet is not configured"))
		return false
	}
	return true
}

// GET /v1/wallet/address
func (r *router) handleWalletAddress(w http.ResponseWriter, req *http.Request) {
	if !r.requireWallet(w) {
		return
	}
	caller := callerPrincipal(req)
	if caller.IsAnonymous() {
		r.writeError(w, rpc.NewError(rpc.KindUnauthorized, "the anonymous principal has no wallet"))
		return
	}
	address, err := r.gateway.Wallet.Address(req.Context(), caller)
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]string{"address": address.String()})
}

type walletSignRequest struct {
	// Message is the base64-encoded payload to sign.
	Message string `json:"message"`
}

// POST /v1/wallet/sign
func (r *router) handleWalletSign(w http.ResponseWriter, req *http.Request) {
	if !r.requireWallet(w) {
		return
	}
	caller := callerPrincipal(req)
	if caller.IsAnonymous() {
		r.writeError(w, rpc.NewError(rpc.KindUnauthorized, "the anonymous principal has no wallet"))
		return
	}
	var body walletSignRequest
	if err := r.decodeBody(w, req, &body); err != nil {
		r.writeError(w, err)
		return
	}
	message, err := decodeBase64Field(body.Message, "message")
	if err != nil {
		r.writeError(w, err)
		return
	}
	sig, err := r.gateway.Wallet.SignMessage(req.Context(), caller, message)
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]string{"signature": sig.String()})
}

type transferInstruction struct {
	To       string `json:"to"`
	Lamports uint64 `json:"lamports"`
}

type walletSendRequest struct {
	sendTransactionRequest

	// Transfers assembles a system-transfer transaction funded by the
	// caller's wallet when no pre-serialized transaction is supplied.
	Transfers []transferInstruction `json:"transfers,omitempty"`
}

type walletSendResponse struct {
	JobID     string          `json:"jobId"`
	State     wallet.JobState `json:"state"`
	Signature string          `json:"signature,omitempty"`
	Failure   string          `json:"failure,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// POST /v1/wallet/send/{cluster}
func (r *router) handleWalletSend(w http.ResponseWriter, req *http.Request) {
	if !r.requireWallet(w) {
		return
	}
	caller := callerPrincipal(req)
	if caller.IsAnonymous() {
		r.writeError(w, rpc.NewError(rpc.KindUnauthorized, "the anonymous principal has no wallet"))
		return
	}
	budget, err := r.callerBudget(req)
	if err != nil {
		r.writeError(w, err)
		return
	}
	var body walletSendRequest
	if err := r.decodeBody(w, req, &body); err != nil {
		r.writeError(w, err)
		return
	}
	tx, err := r.walletSendTransaction(req.Context(), caller, body)
	if err != nil {
		r.writeError(w, err)
		return
	}

	job, sendErr := r.gateway.WalletSend(req.Context(), selectionFromRequest(req), budget, caller, tx, body.config())
	if job == nil {
		r.writeError(w, sendErr)
		return
	}

	resp := walletSendResponse{JobID: job.ID, State: job.State()}
	if sig := job.Signature(); !sig.IsZero() {
		resp.Signature = sig.String()
	}
	status := http.StatusOK
	if reason, jobErr := job.Failure(); jobErr != nil {
		resp.Failure = string(reason)
		resp.Error = jobErr.Error()
		status = statusForJobFailure(reason)
	}
	r.writeJSON(w, status, resp)
}

// walletSendTransaction accepts either a pre-serialized base64 transaction
// or a transfer list assembled against the caller's wallet address.
func (r *router) walletSendTransaction(ctx context.Context, caller rpc.Principal, body walletSendRequest) (solana.Transaction, error) {
	if body.Transaction != "" {
		tx, err := solana.TransactionFromBase64(body.Transaction)
		if err != nil {
			return solana.Transaction{}, rpc.NewError(rpc.KindInvalidRequest, "%v", err)
		}
		return tx, nil
	}
	if len(body.Transfers) == 0 {
		return solana.Transaction{}, rpc.NewError(rpc.KindInvalidRequest, "transaction or transfers is required")
	}

	payer, err := r.gateway.Wallet.Address(ctx, caller)
	if err != nil {
		return solana.Transaction{}, err
	}
	instructions := make([]solana.Instruction, 0, len(body.Transfers))
	for _, t := range body.Transfers {
		to, err := solana.PubkeyFromBase58(t.To)
		if err != nil {
			return solana.Transaction{}, rpc.NewError(rpc.KindInvalidRequest, "transfer recipient: %v", err)
		}
		instructions = append(instructions, solana.NewTransferInstruction(payer, to, t.Lamports))
	}

	// The recent blockhash is filled at signing time.
	msg, err := solana.NewMessage(payer, instructions, solana.Blockhash{})
	if err != nil {
		return solana.Transaction{}, rpc.NewError(rpc.KindInvalidRequest, "%v", err)
	}
	return solana.NewTransaction(msg), nil
}

func statusForJobFailure(reason wallet.FailureReason) int {
	switch reason {
	case wallet.FailureTimeout:
		return http.StatusGatewayTimeout
	case wallet.FailureChain:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func decodeBase64Field(raw, field string) ([]byte, error) {
	if raw == "" {
		return nil, rpc.NewError(rpc.KindInvalidRequest, "%s is required", field)
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, rpc.NewError(rpc.KindInvalidRequest, "%s must be base64: %v", field, err)
	}
	return decoded, nil
}
