package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
logger_config:
  level: warn
router_config:
  port: 8080
database_config:
  backend: postgres
  uri: postgres://gateway@localhost:5432/ic_solana
rpc_config:
  demo_mode: true
  consensus_threshold: 2
wallet_config:
  key_service_url: https://keys.example.com
  confirm_timeout: 30s
owner_principal: gateway-owner
providers:
  - id: alchemy
    url: https://solana-mainnet.example.com/v2
    auth:
      bearer_token: secret
  - id: helius
    url: https://rpc.example.com/?api-key=k
clusters:
  mainnet:
    - alchemy
    - helius
`

func Test_ParseGatewayConfig(t *testing.T) {
	c := require.New(t)

	cfg, err := parseGatewayConfig([]byte(validConfigYAML))
	c.NoError(err)

	c.Equal("warn", cfg.Logger.Level)
	c.Equal(8080, cfg.Router.Port)
	c.Equal("postgres", cfg.Database.Backend)
	c.True(cfg.RPC.DemoMode)
	c.Equal(2, cfg.RPC.ConsensusThreshold)
	c.True(cfg.Wallet.Enabled())
	c.Equal(30*time.Second, cfg.Wallet.ConfirmTimeout)
	c.Equal("gateway-owner", cfg.OwnerPrincipal)
	c.Len(cfg.Providers, 2)
	c.Equal([]string{"alchemy", "helius"}, cfg.Clusters["mainnet"])
}

func Test_ParseGatewayConfig_Defaults(t *testing.T) {
	c := require.New(t)

	cfg, err := parseGatewayConfig([]byte("owner_principal: gateway-owner\n"))
	c.NoError(err)

	c.Equal("info", cfg.Logger.Level)
	c.Equal(defaultPort, cfg.Router.Port)
	c.Equal(defaultMetricsPort, cfg.Router.MetricsPort)
	c.Equal(int64(defaultMaxRequestBodyBytes), cfg.Router.MaxRequestBodyBytes)
	c.Equal("memory", cfg.Database.Backend)
	c.False(cfg.RPC.DemoMode)
	c.Equal(uint64(defaultBudget), cfg.RPC.DefaultBudget)
	c.False(cfg.Wallet.Enabled())
}

func Test_ParseGatewayConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing owner",
			yaml: `
providers:
  - id: alchemy
    url: https://solana.example.com
`,
		},
		{
			name: "anonymous owner",
			yaml: `owner_principal: anonymous`,
		},
		{
			name: "duplicate seed providers",
			yaml: `
owner_principal: gateway-owner
providers:
  - id: alchemy
    url: https://a.example.com
  - id: alchemy
    url: https://b.example.com
`,
		},
		{
			name: "provider without url",
			yaml: `
owner_principal: gateway-owner
providers:
  - id: alchemy
`,
		},
		{
			name: "unknown cluster alias",
			yaml: `
owner_principal: gateway-owner
providers:
  - id: alchemy
    url: https://a.example.com
clusters:
  moonnet:
    - alchemy
`,
		},
		{
			name: "alias naming unseeded provider",
			yaml: `
owner_principal: gateway-owner
clusters:
  devnet:
    - ghost
`,
		},
		{
			name: "empty alias",
			yaml: `
owner_principal: gateway-owner
clusters:
  devnet: []
`,
		},
		{
			name: "unknown database backend",
			yaml: `
owner_principal: gateway-owner
database_config:
  backend: sqlite
`,
		},
		{
			name: "postgres without uri",
			yaml: `
owner_principal: gateway-owner
database_config:
  backend: postgres
`,
		},
		{
			name: "unknown log level",
			yaml: `
owner_principal: gateway-owner
logger_config:
  level: loud
`,
		},
		{
			name: "negative consensus threshold",
			yaml: `
owner_principal: gateway-owner
rpc_config:
  consensus_threshold: -1
`,
		},
		{
			name: "not yaml",
			yaml: `{{`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := parseGatewayConfig([]byte(test.yaml))
			require.Error(t, err)
		})
	}
}
