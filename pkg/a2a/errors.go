package a2a

import "fmt"

/*
RpcError represents a JSON-RPC error response.  The sentinels below cover the
reserved JSON-RPC codes plus the A2A extension range -32001…-32010.
*/
type RpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

var (
	ErrParseError     = &RpcError{Code: -32700, Message: "Parse error"}
	ErrInvalidRequest = &RpcError{Code: -32600, Message: "Invalid Request"}
	ErrMethodNotFound = &RpcError{Code: -32601, Message: "Method not found"}
	ErrInvalidParams  = &RpcError{Code: -32602, Message: "Invalid params"}
	ErrInternal       = &RpcError{Code: -32603, Message: "Internal error"}

	ErrTaskNotFound            = &RpcError{Code: -32001, Message: "Task not found"}
	ErrTaskNotCancelable       = &RpcError{Code: -32002, Message: "Task cannot be canceled"}
	ErrInvalidTaskState        = &RpcError{Code: -32003, Message: "Invalid task state transition"}
	ErrAuthenticationRequired  = &RpcError{Code: -32004, Message: "Authentication required"}
	ErrAuthorizationFailed     = &RpcError{Code: -32005, Message: "Authorization failed"}
	ErrRateLimitExceeded       = &RpcError{Code: -32006, Message: "Rate limit exceeded"}
	ErrAgentUnavailable        = &RpcError{Code: -32007, Message: "Agent unavailable"}
	ErrProtocolVersionMismatch = &RpcError{Code: -32008, Message: "Protocol version mismatch"}
	ErrCapabilityNotSupported  = &RpcError{Code: -32009, Message: "Capability not supported"}
	ErrResourceExhausted       = &RpcError{Code: -32010, Message: "Resource exhausted"}
)

// WithMessagef creates a *copy* of an RpcError with a formatted message.
// It does not modify the original sentinel.
func (e *RpcError) WithMessagef(format string, args ...any) *RpcError {
	newErr := *e
	newErr.Message = fmt.Sprintf(format, args...)
	return &newErr
}

// WithData creates a copy carrying structured detail in the Data field.
func (e *RpcError) WithData(data any) *RpcError {
	newErr := *e
	newErr.Data = data
	return &newErr
}

// Is allows errors.Is matching against the sentinels by code.
func (e *RpcError) Is(target error) bool {
	other, ok := target.(*RpcError)
	return ok && other.Code == e.Code
}
