package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Error codes carried back to the offending caller. Only the sender of a
// failed request ever sees one of these; they never reach another room.
const (
	CodeAuthentication = 1001 // bad or expired credential at connect
	CodeAuthorization  = 1002 // join/send by a non-participant
	CodeValidation     = 1003 // empty content, unsupported or oversized media
	CodeExhausted      = 1004 // outbound queue overflow, receiver dropped
	CodeNotFound       = 1005
	CodeInternal       = 1006 // persistence failure, retryable
)

var (
	ErrAuthentication = NewCodeError(CodeAuthentication, "authentication failed")
	ErrAuthorization  = NewCodeError(CodeAuthorization, "not a participant")
	ErrValidation     = NewCodeError(CodeValidation, "invalid request")
	ErrExhausted      = NewCodeError(CodeExhausted, "receiver queue overflow")
	ErrNotFound       = NewCodeError(CodeNotFound, "not found")
	ErrInternal       = NewCodeError(CodeInternal, "internal error")
)

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// WithDetail returns a copy carrying extra context; the original sentinel
// stays comparable via errors.Is.
func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

func (e *CodeError) Is(err error) bool {
	var ce *CodeError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == e.Code
}

// CodeOf extracts the taxonomy code, defaulting to CodeInternal for
// untagged errors.
func CodeOf(err error) int {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeInternal
}
