package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/pokt-network/poktroll/pkg/polylog"
	"github.com/pokt-network/poktroll/pkg/polylog/polyzero"

	configpkg "github.com/mfactory-lab/ic-solana/config"
	"github.com/mfactory-lab/ic-solana/health"
	"github.com/mfactory-lab/ic-solana/metrics"
	"github.com/mfactory-lab/ic-solana/router"
	"github.com/mfactory-lab/ic-solana/rpc"
	"github.com/mfactory-lab/ic-solana/store"
	"github.com/mfactory-lab/ic-solana/wallet"
)

// defaultConfigPath will be appended to the location of
// the executable to get the full path to the config file.
const defaultConfigPath = "config/.config.yaml"

// transportTimeout bounds a single provider outcall at the HTTP layer. The
// per-dispatch deadline is enforced separately through the request context.
const transportTimeout = 60 * time.Second

func main() {
	configPath, err := getConfigPath(defaultConfigPath)
	if err != nil {
		log.Fatalf("failed to get config path: %v", err)
	}

	config, err := configpkg.LoadGatewayConfigFromYAML(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	loggerOpts := []polylog.LoggerOption{
		polyzero.WithLevel(polyzero.ParseLevel(config.Logger.Level)),
	}
	logger := polyzero.NewLogger(loggerOpts...)

	logger.Info().Msgf("Starting solana gateway using config file: %s", configPath)

	ctx := context.Background()

	db, err := store.Open(ctx, store.Backend(config.Database.Backend), config.Database.URI)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer db.Close(ctx)

	recorder := metrics.NewRecorder(logger, db)
	defer recorder.Close()
	if err := recorder.Restore(ctx); err != nil {
		log.Fatalf("failed to restore persisted counters: %v", err)
	}
	if err := recorder.ServeMetrics(fmt.Sprintf(":%d", config.Router.MetricsPort)); err != nil {
		log.Fatalf("failed to start metrics server: %v", err)
	}

	authorizer, err := rpc.NewAuthorizer(ctx, logger, db, rpc.Principal(config.OwnerPrincipal), recorder)
	if err != nil {
		log.Fatalf("failed to initialize authorizer: %v", err)
	}

	registry, err := rpc.NewRegistry(ctx, logger, db, authorizer, config.Providers)
	if err != nil {
		log.Fatalf("failed to initialize provider registry: %v", err)
	}

	var walletService *wallet.Service
	if config.Wallet.Enabled() {
		keyService := wallet.NewHTTPKeyService(config.Wallet.KeyServiceURL)
		walletService = wallet.NewService(logger, keyService, config.Wallet.Config)
	}

	gateway := &router.Gateway{
		Logger:     logger,
		Registry:   registry,
		Authorizer: authorizer,
		Transport:  rpc.NewHTTPTransport(transportTimeout),
		Meter:      recorder,
		Wallet:     walletService,
		RPCConfig:  config.RPC,
		Clusters:   config.Clusters,
	}

	// Until all components are ready, the `/healthz` endpoint returns a 503
	// Service Unavailable status; once all components are ready, 200 OK.
	healthChecker := &health.Checker{
		Logger: logger,
		Components: []health.Check{
			storeCheck{store: db},
		},
	}

	apiRouter := router.NewRouter(router.RouterParams{
		Gateway: gateway,
		Health:  healthChecker,
		Config:  config.Router,
		Logger:  logger,
	})

	// log.Printf is used here to ensure this info is printed to the console regardless of the log level.
	log.Printf("Solana gateway started.\n  Port: %d\n  Store: %s\n  Seed providers: %d",
		config.Router.Port, config.Database.Backend, len(config.Providers))

	// Start the API router.
	// This will block until the router is stopped.
	if err := apiRouter.Start(); err != nil {
		log.Fatalf("failed to start API router: %v", err)
	}
}

// storeCheck reports store reachability to the health checker.
type storeCheck struct {
	store store.Store
}

func (c storeCheck) Name() string { return "store" }

func (c storeCheck) IsAlive() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.store.Ping(ctx) == nil
}

/* -------------------- Gateway Init Helpers -------------------- */

// getConfigPath returns the full path to the config file relative to the executable.
//
// Priority for determining config path:
// - If `-config` flag is set, use its value
// - Otherwise, use defaultConfigPath relative to executable directory
func getConfigPath(defaultConfigPath string) (string, error) {
	var configPath string

	// Check for -config flag override
	flag.StringVar(&configPath, "config", "", "override the default config path")
	flag.Parse()
	if configPath != "" {
		return configPath, nil
	}

	// Get executable directory for default path
	exeDir, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %v", err)
	}

	configPath = filepath.Join(filepath.Dir(exeDir), defaultConfigPath)

	return configPath, nil
}
