package rpc

import "github.com/mfactory-lab/ic-solana/jsonrpc"

// Meter receives per-dispatch observations. Implemented by the metrics
// package; a nil-safe no-op implementation is used in tests.
//
// Cost is metered unconditionally: outcalls are billed regardless of
// outcome, so a failed or abandoned dispatch still reports the cycles spent
// on the calls it issued.
type Meter interface {
	RequestIssued(method jsonrpc.Method, host string)
	ResponseReceived(method jsonrpc.Method, host string, httpStatus int)
	OutcallFailed(method jsonrpc.Method, host string)
	CyclesCharged(method jsonrpc.Method, host string, cycles Cycles)
	InconsistentResult(method jsonrpc.Method)
	PartialFailure(method jsonrpc.Method)

	AuthMeter
}

// NopMeter discards all observations.
type NopMeter struct{}

var _ Meter = NopMeter{}

func (NopMeter) RequestIssued(jsonrpc.Method, string)         {}
func (NopMeter) ResponseReceived(jsonrpc.Method, string, int) {}
func (NopMeter) OutcallFailed(jsonrpc.Method, string)         {}
func (NopMeter) CyclesCharged(jsonrpc.Method, string, Cycles) {}
func (NopMeter) InconsistentResult(jsonrpc.Method)            {}
func (NopMeter) PartialFailure(jsonrpc.Method)                {}
func (NopMeter) AuthEvent(Capability, bool)                   {}
func (NopMeter) Authorized(Capability)                        {}
func (NopMeter) Unauthorized(Capability)                      {}
