package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
)

// DefaultMaxBodyBytes bounds an inbound request body; anything larger is
// rejected with HTTP 413 before parsing.
const DefaultMaxBodyBytes = 4 << 20

// HandlerFunc processes the raw params field and returns a result or an
// *a2a.RpcError.  Returning (nil, nil) is treated as a null result.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, *a2a.RpcError)

/*
Server multiplexes JSON-RPC method names to handler functions.  It accepts a
single request object or a batch, applies notification semantics, and never
lets a handler panic escape to the transport.
*/
type Server struct {
	mu           sync.RWMutex
	handlers     map[string]HandlerFunc
	maxBodyBytes int64
	debug        bool
	logger       *log.Logger
}

type ServerOption func(*Server)

func WithMaxBodyBytes(n int64) ServerOption {
	return func(s *Server) { s.maxBodyBytes = n }
}

// WithDebug surfaces panic text in error Data.  Off by default so internal
// faults never leak detail to remote callers.
func WithDebug(debug bool) ServerOption {
	return func(s *Server) { s.debug = debug }
}

func WithLogger(logger *log.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

func NewServer(opts ...ServerOption) *Server {
	srv := &Server{
		handlers:     make(map[string]HandlerFunc),
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       log.Default(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

func (srv *Server) Register(method string, h HandlerFunc) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.handlers[method] = h
}

// Methods returns the registered method names.
func (srv *Server) Methods() []string {
	srv.mu.RLock()
	defer srv.mu.RUnlock()

	methods := make([]string, 0, len(srv.handlers))
	for method := range srv.handlers {
		methods = append(methods, method)
	}
	return methods
}

func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST supported", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, srv.maxBodyBytes+1))

	if err != nil {
		respondError(w, http.StatusBadRequest, nil, a2a.ErrParseError)
		return
	}

	if int64(len(body)) > srv.maxBodyBytes {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	responses, hasResponses := srv.Dispatch(r.Context(), body)

	if !hasResponses {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := json.NewEncoder(w).Encode(responses); err != nil {
		srv.logger.Error("failed to encode response", "error", err)
	}
}

/*
Dispatch parses and executes a raw JSON-RPC payload (single or batch) and
returns the value to encode.  hasResponses is false when every request was a
notification and no body should be written.
*/
func (srv *Server) Dispatch(ctx context.Context, body []byte) (any, bool) {
	body = bytes.TrimSpace(body)

	if len(body) == 0 {
		return NewErrorResponse(nil, a2a.ErrInvalidRequest), true
	}

	if body[0] == '[' {
		var batch []json.RawMessage

		if err := json.Unmarshal(body, &batch); err != nil {
			return NewErrorResponse(nil, a2a.ErrParseError), true
		}

		// An empty batch is an Invalid Request per the JSON-RPC spec.
		if len(batch) == 0 {
			return NewErrorResponse(nil, a2a.ErrInvalidRequest), true
		}

		responses := make([]Response, 0, len(batch))

		for _, raw := range batch {
			var req Request

			if err := json.Unmarshal(raw, &req); err != nil {
				responses = append(responses, NewErrorResponse(nil, a2a.ErrInvalidRequest))
				continue
			}

			resp := srv.Handle(ctx, &req)

			// Notifications have no ID: skip sending a response.
			if !req.Notification() {
				responses = append(responses, resp)
			}
		}

		if len(responses) == 0 {
			return nil, false
		}

		return responses, true
	}

	var req Request

	if err := json.Unmarshal(body, &req); err != nil {
		// Well-formed JSON that is not a request object is an Invalid
		// Request; only broken JSON is a parse error.
		if json.Valid(body) {
			return NewErrorResponse(nil, a2a.ErrInvalidRequest), true
		}
		return NewErrorResponse(nil, a2a.ErrParseError), true
	}

	resp := srv.Handle(ctx, &req)

	if req.Notification() {
		return nil, false
	}

	return resp, true
}

// Handle executes a single decoded request.
func (srv *Server) Handle(ctx context.Context, req *Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			srv.logger.Error("handler panic", "method", req.Method, "panic", r)

			rpcErr := a2a.ErrInternal
			if srv.debug {
				rpcErr = rpcErr.WithData(map[string]any{"panic": r})
			}
			resp = NewErrorResponse(req.ID, rpcErr)
		}
	}()

	if req.JSONRPC != "2.0" {
		return NewErrorResponse(req.ID, a2a.ErrInvalidRequest)
	}

	srv.mu.RLock()
	h, ok := srv.handlers[req.Method]
	srv.mu.RUnlock()

	if !ok {
		return NewErrorResponse(req.ID, a2a.ErrMethodNotFound)
	}

	result, rpcErr := h(ctx, req.Params)

	if rpcErr != nil {
		return NewErrorResponse(req.ID, rpcErr)
	}

	return NewResponse(req.ID, result)
}

func respondError(w http.ResponseWriter, status int, id json.RawMessage, e *a2a.RpcError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(NewErrorResponse(id, e))
}
