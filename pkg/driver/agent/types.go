package agent

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the JSON-RPC protocol version.
const Version = "2.0"

// Methods used by the transport.
const (
	MethodPing                 = "ping"
	MethodToolkit              = "getToolkitType"
	MethodFindElements         = "findElements"
	MethodGetElementProperties = "getElementProperties"
)

// Standard and agent-specific error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeElementNotFound  = -32000
	CodeMultipleElements = -32001
	CodeNotInteractable  = -32002
	CodeTimeout          = -32003
	CodeStaleElement     = -32004
)

// Request is a JSON-RPC request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      uint64 `json:"id"`
}

// Response is a JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      uint64          `json:"id"`
}

// RPCError is an error reported by the agent.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("agent error %d: %s", e.Code, e.Message)
}

// IsNotFound reports whether err is the agent's element-not-found error.
func IsNotFound(err error) bool {
	return hasCode(err, CodeElementNotFound)
}

// IsStale reports whether err says the element no longer exists.
func IsStale(err error) bool {
	return hasCode(err, CodeStaleElement)
}

func hasCode(err error, code int) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == code
}
