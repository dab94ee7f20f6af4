package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_ID_WireForms(t *testing.T) {
	tests := []struct {
		name    string
		id      ID
		encoded string
	}{
		{name: "int id", id: IDFromInt(42), encoded: `42`},
		{name: "string id", id: IDFromStr("req-1"), encoded: `"req-1"`},
		{name: "zero id", id: ID{}, encoded: `0`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := require.New(t)

			encoded, err := json.Marshal(test.id)
			c.NoError(err)
			c.Equal(test.encoded, string(encoded))

			var decoded ID
			c.NoError(json.Unmarshal(encoded, &decoded))
			c.True(decoded.Equal(test.id))
		})
	}
}

func Test_ID_RejectsStructuredValues(t *testing.T) {
	c := require.New(t)
	var id ID
	c.Error(json.Unmarshal([]byte(`{"nested":1}`), &id))
}

func Test_NewRequest(t *testing.T) {
	c := require.New(t)

	req, err := NewRequest(IDFromInt(1), "getBalance", []any{"pubkey", map[string]string{"commitment": "finalized"}})
	c.NoError(err)
	c.NoError(req.Validate())
	c.JSONEq(`["pubkey",{"commitment":"finalized"}]`, string(req.Params))

	// Params are optional.
	req, err = NewRequest(IDFromInt(2), "getSlot", nil)
	c.NoError(err)
	c.Nil(req.Params)

	// Unmarshalable params fail before any network activity.
	_, err = NewRequest(IDFromInt(3), "getSlot", make(chan int))
	c.Error(err)
}

func Test_Request_Validate(t *testing.T) {
	tests := []struct {
		name    string
		request Request
		valid   bool
	}{
		{
			name:    "valid",
			request: Request{ID: IDFromInt(1), JSONRPC: Version2, Method: "getHealth"},
			valid:   true,
		},
		{
			name:    "wrong version",
			request: Request{ID: IDFromInt(1), JSONRPC: "1.0", Method: "getHealth"},
		},
		{
			name:    "missing method",
			request: Request{ID: IDFromInt(1), JSONRPC: Version2},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.request.Validate()
			if test.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func Test_Response_Validate(t *testing.T) {
	tests := []struct {
		name     string
		response Response
		valid    bool
	}{
		{
			name:     "result",
			response: Response{ID: IDFromInt(1), JSONRPC: Version2, Result: json.RawMessage(`5000`)},
			valid:    true,
		},
		{
			name:     "error",
			response: Response{ID: IDFromInt(1), JSONRPC: Version2, Error: &ResponseError{Code: -32601, Message: "Method not found"}},
			valid:    true,
		},
		{
			name:     "neither result nor error",
			response: Response{ID: IDFromInt(1), JSONRPC: Version2},
		},
		{
			name:     "wrong version",
			response: Response{ID: IDFromInt(1), JSONRPC: "1.0", Result: json.RawMessage(`1`)},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.response.Validate()
			if test.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func Test_ResponseBuilders(t *testing.T) {
	c := require.New(t)

	resp, err := GetResultResponse(IDFromStr("a"), map[string]uint64{"slot": 9})
	c.NoError(err)
	c.NoError(resp.Validate())
	c.JSONEq(`{"slot":9}`, string(resp.Result))

	errResp := GetErrorResponse(IDFromInt(7), -32000, "server error", []string{"detail"})
	c.NoError(errResp.Validate())
	c.EqualError(errResp.Error, "JSON-RPC error -32000: server error")
}
