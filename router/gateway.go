package router

import (
	"context"
	"encoding/json"

	"github.com/pokt-network/poktroll/pkg/polylog"

	"github.com/mfactory-lab/ic-solana/config"
	"github.com/mfactory-lab/ic-solana/jsonrpc"
	"github.com/mfactory-lab/ic-solana/rpc"
	"github.com/mfactory-lab/ic-solana/solana"
	"github.com/mfactory-lab/ic-solana/wallet"
)

// Gateway binds the registry, authorizer, transport, and wallet into the
// per-request dispatch flow the HTTP handlers call into.
type Gateway struct {
	Logger     polylog.Logger
	Registry   *rpc.Registry
	Authorizer *rpc.Authorizer
	Transport  rpc.Transport
	Meter      rpc.Meter
	Wallet     *wallet.Service
	RPCConfig  config.RPCConfig
	Clusters   map[string][]string
}

// client builds the dispatch client for one request: the caller's provider
// selection resolved against the registry, with the caller's budget.
func (g *Gateway) client(sel rpc.Selection, budget rpc.Cycles) (*rpc.Client, error) {
	endpoints, err := g.Registry.Resolve(sel, g.Clusters)
	if err != nil {
		return nil, err
	}
	return rpc.NewClient(g.Logger, g.Transport, endpoints, g.Meter, g.RPCConfig.ClientConfig(budget))
}

// Dispatch performs one generic JSON-RPC call against the selection.
// Mutating methods are rejected: writes go through the typed path.
func (g *Gateway) Dispatch(ctx context.Context, sel rpc.Selection, budget rpc.Cycles, method jsonrpc.Method, params json.RawMessage) (json.RawMessage, error) {
	if rpc.IsMutating(method) {
		return nil, rpc.NewError(rpc.KindInvalidRequest, "method %q mutates chain state; use the transaction endpoints", method)
	}
	client, err := g.client(sel, budget)
	if err != nil {
		return nil, err
	}
	return client.Raw(ctx, method, params)
}

// SendRawTransaction submits a pre-signed base64 transaction.
func (g *Gateway) SendRawTransaction(ctx context.Context, sel rpc.Selection, budget rpc.Cycles, base64Tx string, cfg rpc.SendTransactionConfig) (solana.Signature, error) {
	if _, err := solana.TransactionFromBase64(base64Tx); err != nil {
		return solana.Signature{}, rpc.NewError(rpc.KindInvalidRequest, "%v", err)
	}
	client, err := g.client(sel, budget)
	if err != nil {
		return solana.Signature{}, err
	}
	return client.SendTransaction(ctx, base64Tx, cfg)
}

// WalletSend signs the principal's transaction and drives it through
// submission and confirmation.
func (g *Gateway) WalletSend(ctx context.Context, sel rpc.Selection, budget rpc.Cycles, principal rpc.Principal, tx solana.Transaction, cfg rpc.SendTransactionConfig) (*wallet.Job, error) {
	client, err := g.client(sel, budget)
	if err != nil {
		return nil, err
	}
	return g.Wallet.SendTransaction(ctx, client, principal, tx, cfg)
}
