// Package rpc serves the game client over a JSON-RPC 2.0 HTTP endpoint.
package rpc

import (
	"encoding/json"
	"errors"

	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/storage"
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error represents a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeUnauthorized   = -32000
)

// Application error codes, one per error class.
const (
	CodeInvalidTransition = -32001
	CodeNotFound          = -32002
	CodeBusy              = -32003
	CodeProofFailed       = -32010
	CodeSubmissionFailed  = -32011
	CodePersistenceFailed = -32012
)

// codeFor maps an error to the code of its class.
func codeFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrInvalidDocument):
		return CodeInvalidParams
	case errors.Is(err, core.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, core.ErrTransitionInProgress):
		return CodeBusy
	case errors.Is(err, core.ErrProofGenerationFailed):
		return CodeProofFailed
	case errors.Is(err, core.ErrSubmissionFailed):
		return CodeSubmissionFailed
	case errors.Is(err, core.ErrPersistenceFailed):
		return CodePersistenceFailed
	case core.IsValidation(err):
		return CodeInvalidTransition
	default:
		return CodeInternalError
	}
}

func errResponse(id any, code int, msg string) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: msg},
	}
}

func failResponse(id any, err error) Response {
	return errResponse(id, codeFor(err), err.Error())
}

func okResponse(id, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}
