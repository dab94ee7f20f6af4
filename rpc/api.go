package rpc

import (
	"context"
	"encoding/json"

	"github.com/mfactory-lab/ic-solana/jsonrpc"
	"github.com/mfactory-lab/ic-solana/solana"
)

// Typed wrappers over Client.Call for the Solana methods the service
// exposes. Each wrapper owns its params shape and result decoding; the
// dispatch/consensus path underneath is shared.

// contextEnvelope is the {"context":...,"value":...} wrapper many Solana
// read methods use.
type contextEnvelope struct {
	Value json.RawMessage `json:"value"`
}

func unwrapContext(result json.RawMessage) (json.RawMessage, error) {
	var env contextEnvelope
	if err := json.Unmarshal(result, &env); err != nil {
		return nil, wrapError(KindMalformedResponse, err, "decode context envelope")
	}
	return env.Value, nil
}

func decodeResult[T any](result json.RawMessage, method jsonrpc.Method) (T, error) {
	var v T
	if err := json.Unmarshal(result, &v); err != nil {
		return v, wrapError(KindMalformedResponse, err, "decode %q result", method)
	}
	return v, nil
}

type commitmentParam struct {
	Commitment solana.Commitment `json:"commitment,omitempty"`
}

// GetBalance returns the lamport balance of the account.
func (c *Client) GetBalance(ctx context.Context, pubkey solana.Pubkey, commitment solana.Commitment) (uint64, error) {
	result, err := c.Call(ctx, MethodGetBalance, []any{pubkey.String(), commitmentParam{commitment}})
	if err != nil {
		return 0, err
	}
	value, err := unwrapContext(result)
	if err != nil {
		return 0, err
	}
	return decodeResult[uint64](value, MethodGetBalance)
}

// GetAccountInfo returns the account for the pubkey, or nil if it does not
// exist.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey solana.Pubkey, commitment solana.Commitment) (*solana.Account, error) {
	params := []any{pubkey.String(), struct {
		Commitment solana.Commitment `json:"commitment,omitempty"`
		Encoding   string            `json:"encoding"`
	}{commitment, "base64"}}

	result, err := c.Call(ctx, MethodGetAccountInfo, params)
	if err != nil {
		return nil, err
	}
	value, err := unwrapContext(result)
	if err != nil {
		return nil, err
	}
	return decodeResult[*solana.Account](value, MethodGetAccountInfo)
}

// GetLatestBlockhash returns the latest blockhash and its validity horizon.
func (c *Client) GetLatestBlockhash(ctx context.Context, commitment solana.Commitment) (solana.LatestBlockhash, error) {
	result, err := c.Call(ctx, MethodGetLatestBlockhash, []any{commitmentParam{commitment}})
	if err != nil {
		return solana.LatestBlockhash{}, err
	}
	value, err := unwrapContext(result)
	if err != nil {
		return solana.LatestBlockhash{}, err
	}
	return decodeResult[solana.LatestBlockhash](value, MethodGetLatestBlockhash)
}

// GetSlot returns the current slot.
func (c *Client) GetSlot(ctx context.Context, commitment solana.Commitment) (uint64, error) {
	result, err := c.Call(ctx, MethodGetSlot, []any{commitmentParam{commitment}})
	if err != nil {
		return 0, err
	}
	return decodeResult[uint64](result, MethodGetSlot)
}

// GetBlockHeight returns the current block height.
func (c *Client) GetBlockHeight(ctx context.Context, commitment solana.Commitment) (uint64, error) {
	result, err := c.Call(ctx, MethodGetBlockHeight, []any{commitmentParam{commitment}})
	if err != nil {
		return 0, err
	}
	return decodeResult[uint64](result, MethodGetBlockHeight)
}

// GetHealth returns the provider's health status, "ok" when healthy.
func (c *Client) GetHealth(ctx context.Context) (string, error) {
	result, err := c.Call(ctx, MethodGetHealth, nil)
	if err != nil {
		return "", err
	}
	return decodeResult[string](result, MethodGetHealth)
}

// GetVersion returns the provider's node version.
func (c *Client) GetVersion(ctx context.Context) (solana.Version, error) {
	result, err := c.Call(ctx, MethodGetVersion, nil)
	if err != nil {
		return solana.Version{}, err
	}
	return decodeResult[solana.Version](result, MethodGetVersion)
}

// GetEpochInfo returns information about the current epoch.
func (c *Client) GetEpochInfo(ctx context.Context, commitment solana.Commitment) (solana.EpochInfo, error) {
	result, err := c.Call(ctx, MethodGetEpochInfo, []any{commitmentParam{commitment}})
	if err != nil {
		return solana.EpochInfo{}, err
	}
	return decodeResult[solana.EpochInfo](result, MethodGetEpochInfo)
}

// GetTransaction returns the confirmed transaction for a signature, as raw
// JSON: the gateway forwards it without interpretation.
func (c *Client) GetTransaction(ctx context.Context, signature solana.Signature) (json.RawMessage, error) {
	params := []any{signature.String(), struct {
		Encoding                       string `json:"encoding"`
		MaxSupportedTransactionVersion int    `json:"maxSupportedTransactionVersion"`
	}{"json", 0}}
	return c.Call(ctx, MethodGetTransaction, params)
}

// GetSignatureStatuses returns the status of each signature, nil for
// signatures the cluster does not know.
func (c *Client) GetSignatureStatuses(ctx context.Context, signatures []solana.Signature, searchHistory bool) ([]*solana.SignatureStatus, error) {
	sigs := make([]string, len(signatures))
	for i, s := range signatures {
		sigs[i] = s.String()
	}
	params := []any{sigs, struct {
		SearchTransactionHistory bool `json:"searchTransactionHistory"`
	}{searchHistory}}

	result, err := c.Call(ctx, MethodGetSignatureStatuses, params)
	if err != nil {
		return nil, err
	}
	value, err := unwrapContext(result)
	if err != nil {
		return nil, err
	}
	return decodeResult[[]*solana.SignatureStatus](value, MethodGetSignatureStatuses)
}

// SendTransactionConfig tunes transaction submission.
type SendTransactionConfig struct {
	SkipPreflight       bool              `json:"skipPreflight,omitempty"`
	PreflightCommitment solana.Commitment `json:"preflightCommitment,omitempty"`
	MaxRetries          *uint64           `json:"maxRetries,omitempty"`
}

// SendTransaction submits a base64-encoded signed transaction and returns
// its signature.
func (c *Client) SendTransaction(ctx context.Context, base64Tx string, cfg SendTransactionConfig) (solana.Signature, error) {
	params := []any{base64Tx, struct {
		SendTransactionConfig
		Encoding string `json:"encoding"`
	}{cfg, "base64"}}

	result, err := c.Call(ctx, MethodSendTransaction, params)
	if err != nil {
		return solana.Signature{}, err
	}
	sigStr, err := decodeResult[string](result, MethodSendTransaction)
	if err != nil {
		return solana.Signature{}, err
	}
	sig, err := solana.SignatureFromBase58(sigStr)
	if err != nil {
		return solana.Signature{}, wrapError(KindMalformedResponse, err, "decode sendTransaction signature")
	}
	return sig, nil
}

// RequestAirdrop requests lamports for a pubkey on test clusters.
func (c *Client) RequestAirdrop(ctx context.Context, pubkey solana.Pubkey, lamports uint64) (solana.Signature, error) {
	result, err := c.Call(ctx, MethodRequestAirdrop, []any{pubkey.String(), lamports})
	if err != nil {
		return solana.Signature{}, err
	}
	sigStr, err := decodeResult[string](result, MethodRequestAirdrop)
	if err != nil {
		return solana.Signature{}, err
	}
	sig, err := solana.SignatureFromBase58(sigStr)
	if err != nil {
		return solana.Signature{}, wrapError(KindMalformedResponse, err, "decode requestAirdrop signature")
	}
	return sig, nil
}

// Raw performs an arbitrary JSON-RPC call with pre-marshaled params.
func (c *Client) Raw(ctx context.Context, method jsonrpc.Method, params json.RawMessage) (json.RawMessage, error) {
	if len(params) == 0 {
		return c.Call(ctx, method, nil)
	}
	return c.Call(ctx, method, params)
}
