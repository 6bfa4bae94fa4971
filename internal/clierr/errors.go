// Package clierr classifies user-facing failures and maps them to exit codes.
package clierr

import (
	"errors"
	"fmt"
)

type Category int

const (
	// Runtime is the zero value: an unclassified operational failure.
	Runtime Category = iota
	NotFound
	Declined
	External
	Usage
)

func (c Category) String() string {
	switch c {
	case NotFound:
		return "not found"
	case Declined:
		return "declined"
	case External:
		return "external"
	case Usage:
		return "usage"
	default:
		return "runtime"
	}
}

type Error struct {
	Category   Category
	Message    string
	Suggestion string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Message != "" {
		return e.Message + ": " + e.Cause.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Category.String()
}

func (e *Error) Unwrap() error { return e.Cause }

func New(c Category, format string, args ...any) *Error {
	return &Error{Category: c, Message: fmt.Sprintf(format, args...)}
}

func Wrap(c Category, cause error, format string, args ...any) *Error {
	return &Error{Category: c, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

func NotFoundf(format string, args ...any) *Error { return New(NotFound, format, args...) }
func Usagef(format string, args ...any) *Error    { return New(Usage, format, args...) }
func Externalf(format string, args ...any) *Error { return New(External, format, args...) }

// ErrDeclined is returned when the user answers no to a confirmation.
var ErrDeclined = &Error{Category: Declined, Message: "cancelled"}

// CategoryOf returns the category of the first *Error in err's chain.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return Runtime
}

func Is(err error, c Category) bool {
	var e *Error
	return errors.As(err, &e) && e.Category == c
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if CategoryOf(err) == Usage {
		return 2
	}
	return 1
}

// Format renders err as the single status line shown to the user.
func Format(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	var e *Error
	if errors.As(err, &e) && e.Suggestion != "" {
		msg += "\n  try: " + e.Suggestion
	}
	return msg
}
