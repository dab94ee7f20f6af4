package rpc

import (
	"encoding/json"

	"github.com/mfactory-lab/ic-solana/jsonrpc"
)

// Solana JSON-RPC methods the typed API wraps.
// Reference: https://solana.com/docs/rpc/http
const (
	MethodGetAccountInfo       = jsonrpc.Method("getAccountInfo")
	MethodGetBalance           = jsonrpc.Method("getBalance")
	MethodGetBlockHeight       = jsonrpc.Method("getBlockHeight")
	MethodGetEpochInfo         = jsonrpc.Method("getEpochInfo")
	MethodGetHealth            = jsonrpc.Method("getHealth")
	MethodGetLatestBlockhash   = jsonrpc.Method("getLatestBlockhash")
	MethodGetSignatureStatuses = jsonrpc.Method("getSignatureStatuses")
	MethodGetSlot              = jsonrpc.Method("getSlot")
	MethodGetTransaction       = jsonrpc.Method("getTransaction")
	MethodGetVersion           = jsonrpc.Method("getVersion")
	MethodRequestAirdrop       = jsonrpc.Method("requestAirdrop")
	MethodSendTransaction      = jsonrpc.Method("sendTransaction")
)

// Per-method response size estimates, in bytes. Used as the default
// max-response bound (and therefore the cost collateral) when the caller
// does not supply one.
const (
	defaultResponseSizeEstimate = 1024

	// headerSizeLimit is added on top of every estimate to cover HTTP
	// headers included in the billed response size.
	headerSizeLimit = 2 * 1024

	accountInfoSizeEstimate       = 10 * 1024
	balanceSizeEstimate           = 156
	blockHeightSizeEstimate       = 45
	epochInfoSizeEstimate         = 56
	healthSizeEstimate            = 32
	latestBlockhashSizeEstimate   = 156
	signatureStatusesSizeEstimate = 256
	slotSizeEstimate              = 45
	transactionSizeEstimate       = 5 * 1024
	versionSizeEstimate           = 64
	sendTransactionSizeEstimate   = 156
)

var responseSizeEstimates = map[jsonrpc.Method]uint64{
	MethodGetAccountInfo:       accountInfoSizeEstimate,
	MethodGetBalance:           balanceSizeEstimate,
	MethodGetBlockHeight:       blockHeightSizeEstimate,
	MethodGetEpochInfo:         epochInfoSizeEstimate,
	MethodGetHealth:            healthSizeEstimate,
	MethodGetLatestBlockhash:   latestBlockhashSizeEstimate,
	MethodGetSignatureStatuses: signatureStatusesSizeEstimate,
	MethodGetSlot:              slotSizeEstimate,
	MethodGetTransaction:       transactionSizeEstimate,
	MethodGetVersion:           versionSizeEstimate,
	MethodRequestAirdrop:       sendTransactionSizeEstimate,
	MethodSendTransaction:      sendTransactionSizeEstimate,
}

// ResponseSizeEstimate returns the billed response size bound for a method.
func ResponseSizeEstimate(method jsonrpc.Method) uint64 {
	if estimate, ok := responseSizeEstimates[method]; ok {
		return estimate + headerSizeLimit
	}
	return defaultResponseSizeEstimate + headerSizeLimit
}

// mutatingMethods submit state to the chain. The generic passthrough surface
// is read-only and rejects them; only the typed write path may use them.
var mutatingMethods = map[jsonrpc.Method]struct{}{
	MethodSendTransaction: {},
	MethodRequestAirdrop:  {},
}

// IsMutating reports whether the method submits state to the chain.
func IsMutating(method jsonrpc.Method) bool {
	_, ok := mutatingMethods[method]
	return ok
}

// Canonicalizer rewrites a successful result body into the form used for
// cross-provider comparison, stripping fields that legitimately vary between
// providers in non-semantic ways.
type Canonicalizer func(result json.RawMessage) (json.RawMessage, error)

// canonicalizers is the per-method equality policy table. A method with no
// entry is compared with strict structural equality. The shipped entries
// drop the response context (slot freshness) and compare only the value for
// context-wrapped responses.
var canonicalizers = map[jsonrpc.Method]Canonicalizer{
	MethodGetAccountInfo:     canonicalizeContextValue,
	MethodGetBalance:         canonicalizeContextValue,
	MethodGetLatestBlockhash: canonicalizeBlockhashValue,
}

// CanonicalizerFor returns the equality policy for a method.
func CanonicalizerFor(method jsonrpc.Method) Canonicalizer {
	if c, ok := canonicalizers[method]; ok {
		return c
	}
	return nil
}

// canonicalizeContextValue unwraps {"context":{...},"value":V} to V, so two
// providers answering at different slots still agree on the same value.
func canonicalizeContextValue(result json.RawMessage) (json.RawMessage, error) {
	var wrapped struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(result, &wrapped); err != nil || wrapped.Value == nil {
		// Not context-wrapped; compare as-is.
		return result, nil
	}
	return wrapped.Value, nil
}

// canonicalizeBlockhashValue compares getLatestBlockhash answers by the hash
// alone: lastValidBlockHeight moves with slot freshness.
func canonicalizeBlockhashValue(result json.RawMessage) (json.RawMessage, error) {
	var wrapped struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := json.Unmarshal(result, &wrapped); err != nil || wrapped.Value.Blockhash == "" {
		return result, nil
	}
	return json.Marshal(wrapped.Value.Blockhash)
}
