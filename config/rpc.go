package config

import (
	"fmt"
	"time"

	"github.com/mfactory-lab/ic-solana/rpc"
)

/* --------------------------------- RPC Config Defaults -------------------------------- */

const (
	defaultCallTimeout = 30 * time.Second
	defaultRetryDelay  = 500 * time.Millisecond

	// defaultBudget is the per-request cycle allowance applied when the
	// caller does not send one.
	defaultBudget = 10_000_000_000
)

/* --------------------------------- RPC Config Struct -------------------------------- */

// RPCConfig tunes provider dispatch and consensus.
type RPCConfig struct {
	// DemoMode disables budget enforcement. Cost is still metered.
	DemoMode bool `yaml:"demo_mode"`

	// DefaultBudget is the cycle budget applied when the request carries
	// no X-Cycles-Budget header.
	DefaultBudget uint64 `yaml:"default_budget"`

	// CallTimeout bounds a whole multi-provider dispatch.
	CallTimeout time.Duration `yaml:"call_timeout"`

	// RetryDelay is the backoff before the single retry of a transient
	// outcall failure.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// ConsensusThreshold is the minimum number of providers that must agree
	// for a multi-provider result. Zero requires full agreement.
	ConsensusThreshold int `yaml:"consensus_threshold"`
}

/* --------------------------------- RPC Config Private Helpers -------------------------------- */

func (c *RPCConfig) hydrateRPCDefaults() {
	if c.DefaultBudget == 0 {
		c.DefaultBudget = defaultBudget
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = defaultCallTimeout
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = defaultRetryDelay
	}
}

func (c RPCConfig) validate() error {
	if c.ConsensusThreshold < 0 {
		return fmt.Errorf("rpc_config: consensus_threshold must not be negative")
	}
	return nil
}

// ClientConfig renders the section as the dispatch configuration for one
// request, with the caller's budget applied.
func (c RPCConfig) ClientConfig(budget rpc.Cycles) rpc.ClientConfig {
	return rpc.ClientConfig{
		Strategy:    rpc.ConsensusStrategy{Threshold: c.ConsensusThreshold},
		CallTimeout: c.CallTimeout,
		RetryDelay:  c.RetryDelay,
		Budget:      budget,
		DemoMode:    c.DemoMode,
	}
}
