// Package router exposes the gateway over HTTP: the generic JSON-RPC
// passthrough, typed Solana read and write endpoints, provider and
// capability administration, and the wallet surface.
package router

import (
	"fmt"
	"net/http"

	"github.com/pokt-network/poktroll/pkg/polylog"

	"github.com/mfactory-lab/ic-solana/config"
	"github.com/mfactory-lab/ic-solana/health"
)

const clusterPathParam = "cluster"

type router struct {
	mux     *http.ServeMux
	gateway *Gateway
	health  *health.Checker
	config  config.RouterConfig
	logger  polylog.Logger
}

type RouterParams struct {
	Gateway *Gateway
	Health  *health.Checker
	Config  config.RouterConfig
	Logger  polylog.Logger
}

/* --------------------------------- Init -------------------------------- */

// NewRouter creates a new router instance
func NewRouter(params RouterParams) *router {
	r := &router{
		mux:     http.NewServeMux(),
		gateway: params.Gateway,
		health:  params.Health,
		config:  params.Config,
		logger:  params.Logger.With("package", "router"),
	}
	r.handleRoutes()
	return r
}

func (r *router) handleRoutes() {
	// GET /healthz - component ready states
	r.mux.HandleFunc("GET /healthz", r.health.HealthzHandler)

	// POST /v1/rpc/{cluster} - generic read-only JSON-RPC passthrough
	r.mux.HandleFunc(fmt.Sprintf("POST /v1/rpc/{%s}", clusterPathParam), r.handleRPCPassthrough)

	// Typed read endpoints
	r.mux.HandleFunc(fmt.Sprintf("GET /v1/{%s}/balance/{pubkey}", clusterPathParam), r.handleGetBalance)
	r.mux.HandleFunc(fmt.Sprintf("GET /v1/{%s}/account/{pubkey}", clusterPathParam), r.handleGetAccountInfo)
	r.mux.HandleFunc(fmt.Sprintf("GET /v1/{%s}/blockhash", clusterPathParam), r.handleGetLatestBlockhash)
	r.mux.HandleFunc(fmt.Sprintf("GET /v1/{%s}/slot", clusterPathParam), r.handleGetSlot)
	r.mux.HandleFunc(fmt.Sprintf("GET /v1/{%s}/height", clusterPathParam), r.handleGetBlockHeight)
	r.mux.HandleFunc(fmt.Sprintf("GET /v1/{%s}/health", clusterPathParam), r.handleGetHealth)
	r.mux.HandleFunc(fmt.Sprintf("GET /v1/{%s}/epoch", clusterPathParam), r.handleGetEpochInfo)
	r.mux.HandleFunc(fmt.Sprintf("GET /v1/{%s}/transaction/{signature}", clusterPathParam), r.handleGetTransaction)
	r.mux.HandleFunc(fmt.Sprintf("POST /v1/{%s}/signatures/status", clusterPathParam), r.handleSignatureStatuses)

	// Write endpoint: submit a pre-signed transaction
	r.mux.HandleFunc(fmt.Sprintf("POST /v1/{%s}/transactions", clusterPathParam), r.handleSendTransaction)

	// Provider administration
	r.mux.HandleFunc("GET /v1/providers", r.handleListProviders)
	r.mux.HandleFunc("POST /v1/providers", r.handleRegisterProvider)
	r.mux.HandleFunc("PUT /v1/providers/{id}", r.handleUpdateProvider)
	r.mux.HandleFunc("DELETE /v1/providers/{id}", r.handleUnregisterProvider)

	// Capability administration
	r.mux.HandleFunc("GET /v1/auth", r.handleListGrants)
	r.mux.HandleFunc("POST /v1/auth", r.handleAuthorize)
	r.mux.HandleFunc("DELETE /v1/auth/{principal}/{capability}", r.handleDeauthorize)

	// Wallet
	r.mux.HandleFunc("GET /v1/wallet/address", r.handleWalletAddress)
	r.mux.HandleFunc("POST /v1/wallet/sign", r.handleWalletSign)
	r.mux.HandleFunc(fmt.Sprintf("POST /v1/wallet/send/{%s}", clusterPathParam), r.handleWalletSend)
}

// Handler exposes the mux for tests.
func (r *router) Handler() http.Handler {
	return r.mux
}

// Start starts the API server on the specified port
func (r *router) Start() error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", r.config.Port),
		Handler:      r.mux,
		ReadTimeout:  r.config.ReadTimeout,
		WriteTimeout: r.config.WriteTimeout,
		IdleTimeout:  r.config.IdleTimeout,
	}

	r.logger.Info().Msgf("solana gateway running on port %d", r.config.Port)

	if err := server.ListenAndServe(); err != nil {
		return err
	}

	return nil
}
