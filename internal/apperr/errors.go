// Package apperr defines Maestra's error taxonomy: every error surfaced to a
// caller is classified into one of a small number of buckets so the HTTP
// front can translate it to a status code with errors.Is/errors.As instead
// of string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the taxonomy bucket an error belongs to.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindValidation
	KindUpstreamTimeout
	KindUpstreamRejection
	KindDependencyDown
)

// Error wraps an underlying cause with a taxonomy Kind and a caller-facing
// detail message.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Cause)
	}

	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newErr(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

func NotFound(detail string) *Error {
	return newErr(KindNotFound, detail, nil)
}

func NotFoundf(format string, args ...interface{}) *Error {
	return newErr(KindNotFound, fmt.Sprintf(format, args...), nil)
}

func Conflict(detail string) *Error {
	return newErr(KindConflict, detail, nil)
}

func Conflictf(format string, args ...interface{}) *Error {
	return newErr(KindConflict, fmt.Sprintf(format, args...), nil)
}

func Validation(detail string) *Error {
	return newErr(KindValidation, detail, nil)
}

func Validationf(format string, args ...interface{}) *Error {
	return newErr(KindValidation, fmt.Sprintf(format, args...), nil)
}

func UpstreamTimeout(detail string) *Error {
	return newErr(KindUpstreamTimeout, detail, nil)
}

func UpstreamRejection(detail string) *Error {
	return newErr(KindUpstreamRejection, detail, nil)
}

func DependencyDown(detail string, cause error) *Error {
	return newErr(KindDependencyDown, detail, cause)
}

func Internal(detail string, cause error) *Error {
	return newErr(KindInternal, detail, cause)
}

// Wrap attaches a detail message to cause without reclassifying it if cause
// is already an *Error; otherwise it becomes an Internal error.
func Wrap(cause error, detail string) error {
	if cause == nil {
		return nil
	}

	var ae *Error
	if errors.As(cause, &ae) {
		return newErr(ae.Kind, fmt.Sprintf("%s: %s", detail, ae.Detail), ae.Cause)
	}

	return newErr(KindInternal, detail, cause)
}

// KindOf extracts the taxonomy bucket of err, defaulting to KindInternal if
// err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}

	return KindInternal
}
