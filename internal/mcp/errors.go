// Package mcp implements the Model Context Protocol server for snipsearch.
package mcp

import (
	"context"
	"errors"
	"fmt"

	snerrors "github.com/Aman-CERP/snipsearch/internal/errors"
)

// Custom MCP error codes for snipsearch.
const (
	// ErrCodeIndexUnavailable indicates the search-index service could not be reached.
	ErrCodeIndexUnavailable = -32001

	// ErrCodeIndexRejected indicates the service answered with an error payload.
	ErrCodeIndexRejected = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeMalformedResponse indicates an unreadable service response.
	ErrCodeMalformedResponse = -32004

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Sentinel errors for internal use.
var (
	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrNotConfigured indicates an optional collaborator was not wired in.
	ErrNotConfigured = errors.New("not configured")
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	// Cancellation first: a SnipError may wrap it.
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	}

	var se *snerrors.SnipError
	if errors.As(err, &se) {
		return mapSnipError(se)
	}

	switch {
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Tool not found."}
	case errors.Is(err, ErrNotConfigured):
		return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool '%s' not found.", name)}
}

func mapSnipError(se *snerrors.SnipError) *MCPError {
	message := se.Message
	if se.Suggestion != "" {
		message = fmt.Sprintf("%s %s", se.Message, se.Suggestion)
	}

	switch se.Code {
	case snerrors.ErrCodeIndexUnavailable, snerrors.ErrCodeRefreshFailed:
		return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
	case snerrors.ErrCodeIndexRejected:
		return &MCPError{Code: ErrCodeIndexRejected, Message: message}
	case snerrors.ErrCodeMalformedResponse:
		return &MCPError{Code: ErrCodeMalformedResponse, Message: message}
	}

	if se.Category == snerrors.CategoryValidation {
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	}
	return &MCPError{Code: ErrCodeInternalError, Message: message}
}
