package rpc

// Cycle cost model for outbound HTTP calls, mirroring the host platform's
// per-call billing: a fixed base price, per-request-byte and
// per-response-byte rates, all multiplied by the replication factor of the
// subnet issuing the call. Collateral covers the worst-case response size
// and is refunded for smaller responses.
const (
	nodesInSubnet = 34

	ingressOverheadBytes        = 100
	ingressMessageReceivedCost  = 1_200_000
	ingressMessageByteCost      = 2_000
	httpOutcallRequestBaseCost  = 3_000_000
	httpOutcallRequestPerNode   = 60_000
	httpOutcallRequestByteCost  = 400
	httpOutcallResponseByteCost = 800
	canisterOverheadCost        = 1_000_000
	collateralCyclesPerNode     = 10_000_000

	// rpcURLCostBytes approximates the URL size included in each request.
	rpcURLCostBytes = 256
)

// Cycles is the unit the host platform bills outcalls in.
type Cycles = uint64

// RequestCost computes the cycle price of a single outcall given the request
// payload size and the maximum response size. Pure: callable before any
// network activity. Monotonically non-decreasing in both arguments.
func RequestCost(payloadBytes, maxResponseBytes uint64) Cycles {
	ingressBytes := payloadBytes + rpcURLCostBytes + ingressOverheadBytes
	costPerNode := Cycles(ingressMessageReceivedCost) +
		Cycles(ingressMessageByteCost)*ingressBytes +
		Cycles(httpOutcallRequestBaseCost) +
		Cycles(httpOutcallRequestPerNode)*nodesInSubnet +
		Cycles(httpOutcallRequestByteCost)*payloadBytes +
		Cycles(httpOutcallResponseByteCost)*maxResponseBytes +
		Cycles(canisterOverheadCost)
	return costPerNode * nodesInSubnet
}

// CostWithCollateral adds the refundable collateral charged up front.
func CostWithCollateral(cost Cycles) Cycles {
	return cost + collateralCyclesPerNode*nodesInSubnet
}

// DispatchCost is the total price of fanning one payload out to
// providerCount endpoints: each outcall is billed independently.
// Monotonically non-decreasing in payload size and provider count.
func DispatchCost(payloadBytes, maxResponseBytes uint64, providerCount int) Cycles {
	if providerCount < 0 {
		providerCount = 0
	}
	return RequestCost(payloadBytes, maxResponseBytes) * Cycles(providerCount)
}
