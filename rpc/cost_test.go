package rpc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_RequestCost_Monotonic(t *testing.T) {
	c := require.New(t)

	base := RequestCost(100, 1024)
	c.Greater(base, Cycles(0))

	// Non-decreasing in payload size.
	c.GreaterOrEqual(RequestCost(200, 1024), base)
	c.GreaterOrEqual(RequestCost(10_000, 1024), RequestCost(200, 1024))

	// Non-decreasing in the response bound.
	c.GreaterOrEqual(RequestCost(100, 2048), base)
	c.GreaterOrEqual(RequestCost(100, 1<<20), RequestCost(100, 2048))
}

func Test_CostWithCollateral(t *testing.T) {
	c := require.New(t)

	cost := RequestCost(100, 1024)
	c.Greater(CostWithCollateral(cost), cost)
	c.Equal(CostWithCollateral(cost)-cost, CostWithCollateral(0))
}

func Test_DispatchCost(t *testing.T) {
	tests := []struct {
		name          string
		payloadBytes  uint64
		responseBytes uint64
		providers     int
	}{
		{name: "single provider", payloadBytes: 100, responseBytes: 1024, providers: 1},
		{name: "three providers", payloadBytes: 100, responseBytes: 1024, providers: 3},
		{name: "large payload", payloadBytes: 50_000, responseBytes: 1024, providers: 2},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := require.New(t)

			perCall := RequestCost(test.payloadBytes, test.responseBytes)
			total := DispatchCost(test.payloadBytes, test.responseBytes, test.providers)
			c.Equal(perCall*Cycles(test.providers), total)
		})
	}

	t.Run("should charge nothing for an empty provider set", func(t *testing.T) {
		c := require.New(t)
		c.Equal(Cycles(0), DispatchCost(100, 1024, 0))
		c.Equal(Cycles(0), DispatchCost(100, 1024, -1))
	})

	t.Run("should grow with provider count", func(t *testing.T) {
		c := require.New(t)
		c.Greater(DispatchCost(100, 1024, 3), DispatchCost(100, 1024, 2))
	})
}

func Test_ResponseSizeEstimate(t *testing.T) {
	c := require.New(t)

	// Every estimate covers headers on top of the body bound.
	c.Greater(ResponseSizeEstimate(MethodGetBalance), uint64(headerSizeLimit))

	// Unknown methods fall back to the default bound.
	c.Equal(uint64(defaultResponseSizeEstimate+headerSizeLimit), ResponseSizeEstimate("getRecentPrioritizationFees"))

	// Account payloads dwarf scalar results.
	c.Greater(ResponseSizeEstimate(MethodGetAccountInfo), ResponseSizeEstimate(MethodGetSlot))
}
