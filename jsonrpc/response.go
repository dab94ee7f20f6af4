package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Response captures all the fields of a JSON-RPC 2.0 response.
//
// Result is kept as raw JSON: the gateway compares and forwards provider
// results without interpreting them, and typed callers unmarshal the raw
// bytes themselves.
type Response struct {
	ID      ID              `json:"id"`
	JSONRPC Version         `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is the error object of a JSON-RPC response.
type ResponseError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

func (r Response) Validate() error {
	if r.JSONRPC != Version2 {
		return fmt.Errorf("invalid JSONRPC response: jsonrpc field is %q, expected %q", r.JSONRPC, Version2)
	}
	if r.Error == nil && r.Result == nil {
		return fmt.Errorf("invalid JSONRPC response: neither result nor error is set")
	}
	return nil
}

// GetErrorResponse builds a Response carrying the supplied error values.
func GetErrorResponse(id ID, errCode int64, errMsg string, errData any) Response {
	return Response{
		ID:      id,
		JSONRPC: Version2,
		Error: &ResponseError{
			Code:    errCode,
			Message: errMsg,
			Data:    errData,
		},
	}
}

// GetResultResponse builds a success Response with the supplied result value.
func GetResultResponse(id ID, result any) (Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{}, err
	}
	return Response{
		ID:      id,
		JSONRPC: Version2,
		Result:  raw,
	}, nil
}
