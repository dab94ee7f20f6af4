// Package config loads and validates the gateway's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mfactory-lab/ic-solana/rpc"
	"github.com/mfactory-lab/ic-solana/store"
	"github.com/mfactory-lab/ic-solana/wallet"
)

/* ---------------------------------  Gateway Config Struct -------------------------------- */

// GatewayConfig is the top level struct parsed from the YAML config file. It
// contains everything needed to operate the gateway.
type GatewayConfig struct {
	Logger   LoggerConfig   `yaml:"logger_config"`
	Router   RouterConfig   `yaml:"router_config"`
	Database DatabaseConfig `yaml:"database_config"`
	RPC      RPCConfig      `yaml:"rpc_config"`
	Wallet   WalletConfig   `yaml:"wallet_config"`

	// OwnerPrincipal is the administrative identity. It implicitly holds
	// every capability and cannot be anonymous.
	OwnerPrincipal string `yaml:"owner_principal"`

	// Providers seeds the registry at startup. Registrations made through
	// the API are persisted in the store and merged over this list.
	Providers []rpc.Provider `yaml:"providers"`

	// Clusters maps network aliases to provider ids, overriding the public
	// default endpoint for that alias.
	Clusters map[string][]string `yaml:"clusters"`
}

// LoadGatewayConfigFromYAML reads a YAML configuration file from the
// specified path and unmarshals its content into a GatewayConfig instance.
func LoadGatewayConfigFromYAML(path string) (GatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GatewayConfig{}, err
	}
	return parseGatewayConfig(data)
}

func parseGatewayConfig(data []byte) (GatewayConfig, error) {
	var config GatewayConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return GatewayConfig{}, err
	}

	// hydrate required fields and set defaults for optional fields
	config.Logger.hydrateLoggerDefaults()
	config.Router.hydrateRouterDefaults()
	config.Database.hydrateDatabaseDefaults()
	config.RPC.hydrateRPCDefaults()

	return config, config.validate()
}

/* --------------------------------- Gateway Config Private Helpers -------------------------------- */

func (c GatewayConfig) validate() error {
	if err := c.Logger.Validate(); err != nil {
		return err
	}
	if err := c.Database.validate(); err != nil {
		return err
	}
	if err := c.RPC.validate(); err != nil {
		return err
	}
	if rpc.Principal(c.OwnerPrincipal).IsAnonymous() {
		return fmt.Errorf("owner_principal is required and must not be anonymous")
	}

	seen := make(map[string]struct{}, len(c.Providers))
	for _, p := range c.Providers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("seed provider: %w", err)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("seed provider %q listed twice", p.ID)
		}
		seen[p.ID] = struct{}{}
	}

	for alias, ids := range c.Clusters {
		if _, err := rpc.ParseCluster(alias); err != nil {
			return fmt.Errorf("clusters: %w", err)
		}
		if len(ids) == 0 {
			return fmt.Errorf("clusters: alias %q maps to no providers", alias)
		}
		for _, id := range ids {
			if _, ok := seen[id]; !ok {
				return fmt.Errorf("clusters: alias %q names unseeded provider %q", alias, id)
			}
		}
	}

	return nil
}

/* --------------------------------- Database Config -------------------------------- */

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	// Backend is one of "memory", "postgres", "mongo".
	Backend string `yaml:"backend"`
	// URI is the backend connection string. Unused by the memory backend.
	URI string `yaml:"uri"`
}

func (c *DatabaseConfig) hydrateDatabaseDefaults() {
	if c.Backend == "" {
		c.Backend = string(store.BackendMemory)
	}
}

func (c DatabaseConfig) validate() error {
	switch store.Backend(c.Backend) {
	case store.BackendMemory:
		return nil
	case store.BackendPostgres, store.BackendMongo:
		if c.URI == "" {
			return fmt.Errorf("database_config: backend %q requires a uri", c.Backend)
		}
		return nil
	default:
		return fmt.Errorf("database_config: unknown backend %q", c.Backend)
	}
}

/* --------------------------------- Wallet Config -------------------------------- */

// WalletConfig wires the key service and confirmation polling.
type WalletConfig struct {
	// KeyServiceURL is the threshold key service base URL. Empty disables
	// the wallet endpoints.
	KeyServiceURL string `yaml:"key_service_url"`

	wallet.Config `yaml:",inline"`
}

// Enabled reports whether the wallet surface should be served.
func (c WalletConfig) Enabled() bool {
	return c.KeyServiceURL != ""
}
