// Package errors defines the structured error type the gateway surfaces to
// clients and the constructors for the translation-layer error taxonomy.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error codes used by the translation layer.
const (
	// CodeAllowlistRejected marks a front-spec/config-type pair outside the
	// active allowlist. Policy, never retried.
	CodeAllowlistRejected = "allowlist_rejected"
	// CodeUnsupportedFeature marks a request capability the target upstream
	// cannot express.
	CodeUnsupportedFeature = "unsupported_feature"
	// CodeFrameIntegrity marks a binary frame whose CRC validation failed.
	// Fatal to the stream it occurred on.
	CodeFrameIntegrity = "frame_integrity"
	// CodeChunkDecode marks a single malformed stream chunk. Logged and
	// skipped; the stream continues.
	CodeChunkDecode = "chunk_decode"
	// CodeMalformedUpstream marks a non-streaming upstream response missing
	// required fields.
	CodeMalformedUpstream = "malformed_upstream_response"
)

// AppError represents a structured application error.
type AppError struct {
	// HTTPStatusCode is the HTTP status code to return.
	HTTPStatusCode int `json:"-"`
	// Code is an internal error code string.
	Code string `json:"code"`
	// Message is the user-facing error message.
	Message string `json:"message"`
	// Details provides additional error context (optional).
	Details map[string]interface{} `json:"details,omitempty"`
	// Err is the underlying error (not marshaled to JSON).
	Err error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// ToJSON returns the JSON byte representation of the error.
func (e *AppError) ToJSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

// New creates a new AppError.
func New(statusCode int, code, message string, err error) *AppError {
	return &AppError{
		HTTPStatusCode: statusCode,
		Code:           code,
		Message:        message,
		Err:            err,
	}
}

// NewAllowlistRejected builds the fail-closed policy error returned before
// any upstream call is attempted.
func NewAllowlistRejected(message string) *AppError {
	return New(http.StatusForbidden, CodeAllowlistRejected, message, nil)
}

// NewUnsupportedFeature reports a request capability with no representation
// in the target upstream schema.
func NewUnsupportedFeature(message string) *AppError {
	return New(http.StatusBadRequest, CodeUnsupportedFeature, message, nil)
}

// NewFrameIntegrity reports a CRC or structural failure in the binary event
// stream. The stream it occurred on must be terminated.
func NewFrameIntegrity(err error) *AppError {
	return New(http.StatusBadGateway, CodeFrameIntegrity, "upstream event stream failed integrity check", err)
}

// NewChunkDecode reports a single malformed stream chunk.
func NewChunkDecode(err error) *AppError {
	return New(http.StatusBadGateway, CodeChunkDecode, "malformed upstream stream chunk", err)
}

// NewMalformedUpstream reports an upstream response body missing fields the
// translation needs.
func NewMalformedUpstream(message string, err error) *AppError {
	return New(http.StatusBadGateway, CodeMalformedUpstream, message, err)
}
