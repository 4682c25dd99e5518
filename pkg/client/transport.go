package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
	"github.com/agentwire/a2a-runtime/pkg/jsonrpc"
)

// Request is the transport-agnostic call the middleware chain passes down.
type Request struct {
	Method  string
	Params  any
	Headers http.Header
}

// Response carries the raw JSON-RPC result plus the HTTP status it rode on.
// Status 0 means the call never reached the wire.
type Response struct {
	Result json.RawMessage
	Status int
}

// Transport executes one request.  Middleware wraps transports.
type Transport func(ctx context.Context, req *Request) (*Response, error)

// Middleware decorates a transport with one cross-cutting concern.
type Middleware func(Transport) Transport

// Chain composes middleware around a transport.  The first middleware is the
// outermost: Chain(t, a, b) runs a, then b, then t.
func Chain(transport Transport, middleware ...Middleware) Transport {
	for i := len(middleware) - 1; i >= 0; i-- {
		transport = middleware[i](transport)
	}

	return transport
}

/*
HTTPTransport is the terminal transport: a JSON-RPC call over HTTP POST.  An
error field in the response surfaces as *a2a.RpcError so middleware can
branch on error codes.
*/
func HTTPTransport(endpoint string, httpClient *http.Client) Transport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	var nextID atomic.Int64

	return func(ctx context.Context, req *Request) (*Response, error) {
		id, _ := json.Marshal(nextID.Add(1))

		rpcReq := jsonrpc.Request{JSONRPC: "2.0", ID: id, Method: req.Method}

		if req.Params != nil {
			params, err := json.Marshal(req.Params)
			if err != nil {
				return nil, err
			}
			rpcReq.Params = params
		}

		body, err := json.Marshal(rpcReq)

		if err != nil {
			return nil, err
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))

		if err != nil {
			return nil, err
		}

		httpReq.Header.Set("Content-Type", "application/json")

		for key, values := range req.Headers {
			for _, value := range values {
				httpReq.Header.Add(key, value)
			}
		}

		httpResp, err := httpClient.Do(httpReq)

		if err != nil {
			return nil, err
		}

		defer httpResp.Body.Close()

		resp := &Response{Status: httpResp.StatusCode}

		// Transient HTTP outcomes rarely carry a JSON-RPC body (proxies and
		// overloaded servers answer in plain text), so classify them before
		// touching the payload.
		switch {
		case httpResp.StatusCode == http.StatusTooManyRequests:
			return resp, a2a.ErrRateLimitExceeded.WithMessagef("endpoint returned status %d", httpResp.StatusCode)
		case httpResp.StatusCode == http.StatusRequestTimeout || httpResp.StatusCode >= 500:
			return resp, a2a.ErrAgentUnavailable.WithMessagef("endpoint returned status %d", httpResp.StatusCode)
		}

		var rpcResp struct {
			Result json.RawMessage `json:"result"`
			Error  *a2a.RpcError   `json:"error"`
		}

		if err := json.NewDecoder(httpResp.Body).Decode(&rpcResp); err != nil {
			return resp, a2a.ErrParseError.WithMessagef("malformed response: %v", err)
		}

		resp.Result = rpcResp.Result

		if rpcResp.Error != nil {
			return resp, rpcResp.Error
		}

		return resp, nil
	}
}

// retryableError reports whether the failure class is worth retrying.
// Transport-level failures always are; RPC errors only when the server
// signalled a transient condition.
func retryableError(err error) bool {
	rpcErr, ok := err.(*a2a.RpcError)

	if !ok {
		return true
	}

	switch rpcErr.Code {
	case a2a.ErrRateLimitExceeded.Code,
		a2a.ErrAgentUnavailable.Code,
		a2a.ErrResourceExhausted.Code,
		a2a.ErrInternal.Code:
		return true
	}

	return false
}

// retryableStatus limits retries to transient HTTP outcomes.  Zero means the
// request never got a response.
func retryableStatus(status int) bool {
	return status == 0 ||
		status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= 500
}
