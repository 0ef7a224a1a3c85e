// Package apperr classifies service errors so transport and logging layers
// can react to the class instead of string-matching messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind partitions errors by how the caller should react.
type Kind uint8

const (
	// KindUnknown covers errors that escaped classification.
	KindUnknown Kind = iota
	// KindConfiguration is fatal for the call: a misassembled service, such
	// as a puzzle kind with no registered solver.
	KindConfiguration
	// KindValidation is recoverable: an illegal move or transition. Session
	// state is unchanged and the caller may retry.
	KindValidation
	// KindNotFound means the referenced session or player does not exist.
	KindNotFound
	// KindData means a persistence or cache backend failed. Consumers
	// usually degrade rather than abort.
	KindData
)

var kindNames = map[Kind]string{
	KindUnknown:       "unknown",
	KindConfiguration: "configuration",
	KindValidation:    "validation",
	KindNotFound:      "not_found",
	KindData:          "data",
}

// String returns the lowercase class name used in logs and API payloads.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// E is the unified service error. Cause chains the lower-level error for
// errors.Is / errors.As traversal.
type E struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *E) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Cause }

// New builds a classified error with a formatted message.
func New(k Kind, format string, a ...any) *E {
	return &E{Kind: k, Message: fmt.Sprintf(format, a...)}
}

// Wrap classifies an underlying error. If cause is already an *E its Kind is
// preserved unless kind overrides it with something more specific.
func Wrap(kind Kind, cause error, format string, a ...any) *E {
	if kind == KindUnknown {
		var inner *E
		if errors.As(cause, &inner) {
			kind = inner.Kind
		}
	}
	return &E{Kind: kind, Message: fmt.Sprintf(format, a...), Cause: cause}
}

// KindOf extracts the class of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Convenience constructors for the common classes.

func Configuration(format string, a ...any) *E { return New(KindConfiguration, format, a...) }
func Validation(format string, a ...any) *E    { return New(KindValidation, format, a...) }
func NotFound(format string, a ...any) *E      { return New(KindNotFound, format, a...) }
func Data(format string, a ...any) *E          { return New(KindData, format, a...) }

// IsValidation reports whether err is classified as recoverable input error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFound reports whether err refers to a missing session or player.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsData reports whether err is a backend failure the caller may degrade on.
func IsData(err error) bool { return KindOf(err) == KindData }
