package jsonrpc

import "encoding/json"

// Request is a JSON-RPC 2.0 request object.  A request without an ID is a
// notification: it is executed but no response is emitted, even on error.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"` // accepts string | number | null
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Notification reports whether the request expects no response.  Only an
// absent id makes a notification; an explicit null id, while discouraged,
// still gets a reply.
func (req *Request) Notification() bool {
	return len(req.ID) == 0
}
