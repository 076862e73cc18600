// Package ipc implements the plugin side of the host protocol.
//
// The host writes one JSON request per line to the plugin's stdin and reads
// one JSON response per line from its stdout. Plugins log to stderr only.
package ipc

import (
	"encoding/json"
	"fmt"
	"io"

	apperrors "github.com/FocuswithJustin/strutils/core/errors"
)

// Response statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Protocol commands understood by every plugin.
const (
	CommandMetadata  = "metadata"
	CommandSignature = "signature"
	CommandRun       = "run"
	CommandSelfcheck = "selfcheck"
)

// Request is the incoming JSON request from the host.
type Request struct {
	ID      string                 `json:"id,omitempty"`
	Command string                 `json:"command"`
	Args    map[string]interface{} `json:"args,omitempty"`
}

// Response is the outgoing JSON response to the host. ID echoes the request.
type Response struct {
	ID     string      `json:"id,omitempty"`
	Status string      `json:"status"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
	Code   string      `json:"code,omitempty"`
}

// Error codes classify failed responses so hosts can map them back to
// typed errors.
const (
	CodeNotFound     = "not_found"
	CodeInvalidInput = "invalid_input"
	CodeUnsupported  = "unsupported"
	CodeInternal     = "internal"
)

// ErrorCode classifies err.
func ErrorCode(err error) string {
	switch {
	case apperrors.Is(err, apperrors.ErrNotFound):
		return CodeNotFound
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		return CodeInvalidInput
	case apperrors.Is(err, apperrors.ErrUnsupported):
		return CodeUnsupported
	}
	return CodeInternal
}

// OK builds a success response for req.
func OK(req *Request, result interface{}) *Response {
	return &Response{ID: requestID(req), Status: StatusOK, Result: result}
}

// Fail builds an error response for req. req may be nil when the request
// could not be decoded.
func Fail(req *Request, msg string) *Response {
	return &Response{ID: requestID(req), Status: StatusError, Error: msg, Code: CodeInternal}
}

// FailErr builds an error response classified by ErrorCode.
func FailErr(req *Request, err error) *Response {
	return &Response{ID: requestID(req), Status: StatusError, Error: err.Error(), Code: ErrorCode(err)}
}

func requestID(req *Request) string {
	if req == nil {
		return ""
	}
	return req.ID
}

// ReadRequest decodes a single request from r.
func ReadRequest(r io.Reader) (*Request, error) {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return &req, nil
}

// WriteResponse encodes resp to w followed by a newline.
func WriteResponse(w io.Writer, resp *Response) error {
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return nil
}
