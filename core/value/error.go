package value

import (
	"fmt"

	apperrors "github.com/FocuswithJustin/strutils/core/errors"
)

// Error codes attached to labeled errors.
const (
	CodeTypeMismatch = "strutils::type_mismatch"
	CodeGeneric      = "strutils::error"
)

// ErrorLabel points a message at a span of source text.
type ErrorLabel struct {
	Text string `json:"text"`
	Span Span   `json:"span"`
}

// LabeledError is an error that can be rendered against the host's source
// text. It survives JSON round trips; the Go cause does not, but Unwrap
// falls back to the sentinel implied by Code.
type LabeledError struct {
	Msg    string       `json:"msg"`
	Labels []ErrorLabel `json:"labels,omitempty"`
	Code   string       `json:"code,omitempty"`
	Help   string       `json:"help,omitempty"`

	cause error
}

func (e *LabeledError) Error() string {
	return e.Msg
}

func (e *LabeledError) Unwrap() error {
	if e.cause != nil {
		return e.cause
	}
	if e.Code == CodeTypeMismatch {
		return apperrors.ErrTypeMismatch
	}
	return nil
}

// NewTypeMismatch reports that a command at dst received a value of type
// actual, found at src, where it only accepts expected.
func NewTypeMismatch(expected, actual string, dst, src Span) *LabeledError {
	return &LabeledError{
		Msg:  "Input type not supported.",
		Code: CodeTypeMismatch,
		Labels: []ErrorLabel{
			{Text: fmt.Sprintf("only %s input data is supported", expected), Span: dst},
			{Text: fmt.Sprintf("input type: %s", actual), Span: src},
		},
		cause: apperrors.NewTypeMismatch(expected, actual),
	}
}

// FromError converts err into a LabeledError pointing at span. A
// LabeledError is returned as is.
func FromError(err error, span Span) *LabeledError {
	var le *LabeledError
	if apperrors.As(err, &le) {
		return le
	}
	code := CodeGeneric
	if apperrors.Is(err, apperrors.ErrTypeMismatch) {
		code = CodeTypeMismatch
	}
	return &LabeledError{
		Msg:    err.Error(),
		Code:   code,
		Labels: []ErrorLabel{{Text: err.Error(), Span: span}},
		cause:  err,
	}
}
