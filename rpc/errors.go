package rpc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mfactory-lab/ic-solana/jsonrpc"
)

// ErrorKind tags every gateway error with a machine-readable category so
// callers can pattern-match without string parsing.
type ErrorKind string

const (
	// The caller does not hold the capability required by the operation.
	KindUnauthorized ErrorKind = "unauthorized"

	// A provider with the same id is already registered.
	KindConflict ErrorKind = "conflict"

	// The referenced provider (or grant) does not exist.
	KindNotFound ErrorKind = "not_found"

	// The provider selection resolved to an empty endpoint list.
	KindNoProviders ErrorKind = "no_providers_configured"

	// The request's estimated cycle cost exceeds the caller's budget.
	// Checked before any outcall is issued.
	KindInsufficientCycles ErrorKind = "insufficient_cycles"

	// An outcall failed at the transport level (connect, TLS, non-2xx status).
	KindTransport ErrorKind = "transport_error"

	// A provider returned a body that does not parse as a JSON-RPC response.
	KindMalformedResponse ErrorKind = "malformed_response"

	// A provider returned a well-formed JSON-RPC error object.
	KindRPCError ErrorKind = "jsonrpc_error"

	// Providers returned structurally different successful results.
	KindInconsistent ErrorKind = "inconsistent"

	// The dispatch (or a single outcall) exceeded its deadline.
	KindTimeout ErrorKind = "timeout"

	// The request was rejected before dispatch (bad selection, bad params).
	KindInvalidRequest ErrorKind = "invalid_request"
)

// Error is the typed error returned by all gateway operations.
type Error struct {
	Kind    ErrorKind
	Message string

	// Diverging is set for KindInconsistent: one entry per provider whose
	// canonicalized result differed from the others.
	Diverging []ProviderDigest

	// Failures is set when every provider failed: the per-provider failure
	// list so the caller is not starved of diagnostic information.
	Failures []ProviderFailure

	// RPCError is set for KindRPCError: the provider-reported error object,
	// passed through verbatim.
	RPCError *jsonrpc.ResponseError

	err error
}

// ProviderDigest identifies one provider's divergent answer by a digest of
// its canonicalized result body.
type ProviderDigest struct {
	Provider string `json:"provider"`
	Digest   string `json:"digest"`
}

// ProviderFailure records one provider's terminal failure within a dispatch.
type ProviderFailure struct {
	Provider string    `json:"provider"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Message)
	if len(e.Diverging) > 0 {
		b.WriteString(" [")
		for i, d := range e.Diverging {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%s", d.Provider, d.Digest)
		}
		b.WriteString("]")
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is allows errors.Is matching against kind-only template errors.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewError builds a typed gateway error. For callers outside the package.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return newError(kind, format, args...)
}

func wrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), err: err}
}

// KindOf returns the error kind of err, or an empty kind for non-gateway errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is a gateway error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// AsError extracts the typed gateway error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// retryable reports whether a per-provider failure is transient enough to be
// worth a single retry. Malformed bodies and JSON-RPC error objects are
// deterministic and never retried.
func retryable(kind ErrorKind) bool {
	return kind == KindTransport || kind == KindTimeout
}
