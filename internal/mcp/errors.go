package mcp

import (
	"errors"
	"fmt"

	mserrors "github.com/mosaicsearch/mosaic/internal/errors"
)

// Custom MCP error codes, in the JSON-RPC implementation-defined range.
const (
	// ErrCodeRetrievalUnavailable indicates every search branch failed.
	ErrCodeRetrievalUnavailable = -32001

	// ErrCodeEmbeddingUnavailable indicates query embedding failed.
	ErrCodeEmbeddingUnavailable = -32002

	// ErrCodeContentNotFound indicates a cited record no longer exists.
	ErrCodeContentNotFound = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError is an MCP protocol error with a JSON-RPC code.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError builds an invalid-params protocol error.
func NewInvalidParamsError(message string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: message}
}

// MapError converts pipeline errors to MCP protocol errors. Validation
// failures surface as invalid params so clients can correct the call;
// infrastructure failures get dedicated codes.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var merr *mserrors.MosaicError
	if !errors.As(err, &merr) {
		return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
	}

	msg := merr.Message
	if merr.Suggestion != "" {
		msg = msg + " (" + merr.Suggestion + ")"
	}

	switch {
	case mserrors.IsValidation(merr):
		return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
	case merr.Code == mserrors.ErrCodeEmbeddingUnavailable:
		return &MCPError{Code: ErrCodeEmbeddingUnavailable, Message: msg}
	case merr.Code == mserrors.ErrCodeRetrievalUnavailable,
		merr.Code == mserrors.ErrCodeIndexUnavailable:
		return &MCPError{Code: ErrCodeRetrievalUnavailable, Message: msg}
	case merr.Code == mserrors.ErrCodeContentNotFound:
		return &MCPError{Code: ErrCodeContentNotFound, Message: msg}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: msg}
	}
}
