// Package jsonrpc provides the JSON-RPC 2.0 wire types shared by the
// RPC client and the HTTP API surface.
//
// Reference: https://www.jsonrpc.org/specification
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Method is the method named by a JSON-RPC request, e.g. "getBalance".
type Method string

type Version string

const Version2 = Version("2.0")

// Request represents a JSON-RPC 2.0 request.
//
// Specification requirements:
//   - jsonrpc: must be "2.0"
//   - method: string containing the method name
//   - params: structured values (array or object), optional
//   - id: identifier for correlation, always included
type Request struct {
	ID      ID              `json:"id"`
	JSONRPC Version         `json:"jsonrpc"`
	Method  Method          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewRequest builds a version-2.0 request with the supplied id, method and
// params. Params are marshaled eagerly so a malformed value is caught before
// any network activity.
func NewRequest(id ID, method Method, params any) (Request, error) {
	req := Request{
		ID:      id,
		JSONRPC: Version2,
		Method:  method,
	}

	if params == nil {
		return req, nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return Request{}, fmt.Errorf("marshal params for %q: %w", method, err)
	}
	req.Params = raw

	return req, nil
}

func (r Request) Validate() error {
	if r.JSONRPC != Version2 {
		return fmt.Errorf("invalid JSONRPC request: jsonrpc field is %q, expected %q", r.JSONRPC, Version2)
	}
	if r.Method == "" {
		return fmt.Errorf("invalid JSONRPC request: method field is empty")
	}
	return nil
}
