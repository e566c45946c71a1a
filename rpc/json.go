// Package rpc carries the JSON-RPC 2.0 wire format shared by the
// in-process provider, the HTTP server and the remote fork client.
package rpc

import (
	"encoding/json"
	"fmt"
)

// JSON-RPC 2.0 error codes, plus the -32000..-32099 server range used
// for execution errors.
const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603

	// Server error range.
	ErrCodeServer            = -32000
	ErrCodeTransactionReject = -32003
)

// Request is one JSON-RPC call.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is one JSON-RPC reply.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewError builds an error object.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorWithData builds an error object carrying extra data, used
// for revert payloads.
func NewErrorWithData(code int, message string, data interface{}) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

// NewResponse marshals result into a success response.
func NewResponse(id json.RawMessage, result interface{}) *Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return ErrorResponse(id, NewError(ErrCodeInternal, err.Error()))
	}
	return &Response{JSONRPC: "2.0", ID: id, Result: raw}
}

// ErrorResponse builds a failure response.
func ErrorResponse(id json.RawMessage, rpcErr *Error) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: rpcErr}
}
