package core

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrTooLarge is returned when a file exceeds the configured read limit.
var ErrTooLarge = errors.New("file too large")

type ErrorKind string

const (
	KindLoad           ErrorKind = "LoadError"
	KindParse          ErrorKind = "ParseError"
	KindValidation     ErrorKind = "ValidationError"
	KindDispatch       ErrorKind = "DispatchError"
	KindTargetNotFound ErrorKind = "TargetNotFoundError"
)

// Sentinels for errors.Is, one per kind.
var (
	ErrLoad           = &Error{Kind: KindLoad}
	ErrParse          = &Error{Kind: KindParse}
	ErrValidation     = &Error{Kind: KindValidation}
	ErrDispatch       = &Error{Kind: KindDispatch}
	ErrTargetNotFound = &Error{Kind: KindTargetNotFound}
)

// Error is the failure of one unit of work: a resource load, a configuration
// validation, or a single action dispatch. Index is the position of the action
// in the configuration as written, -1 when the error is not about one action.
type Error struct {
	Kind     ErrorKind
	Resource string
	Index    int
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	if e.Resource != "" {
		sb.WriteString(" [")
		sb.WriteString(e.Resource)
		sb.WriteString("]")
	}
	if e.Index >= 0 && e.Kind != KindLoad && e.Kind != KindParse {
		_, _ = fmt.Fprintf(&sb, " action #%d", e.Index)
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error of the same kind, so the package sentinels work with
// errors.Is regardless of resource or index.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Index: -1, Message: fmt.Sprintf(format, args...)}
}

func ValidationErrorf(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

func DispatchErrorf(format string, args ...any) *Error {
	return newError(KindDispatch, format, args...)
}

func TargetNotFoundErrorf(format string, args ...any) *Error {
	return newError(KindTargetNotFound, format, args...)
}

// KindOf reports the kind of err, or "" when err carries no *Error.
func KindOf(err error) ErrorKind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return ""
}
