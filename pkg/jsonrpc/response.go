package jsonrpc

import (
	"encoding/json"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
)

// Response is a JSON-RPC 2.0 response object.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *a2a.RpcError   `json:"error,omitempty"`
}

func NewResponse(id json.RawMessage, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

func NewErrorResponse(id json.RawMessage, e *a2a.RpcError) Response {
	// Ensure mandatory Code/Message.
	if e == nil {
		e = a2a.ErrInternal
	}

	return Response{JSONRPC: "2.0", ID: id, Error: e}
}
