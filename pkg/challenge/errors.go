package challenge

import "errors"

// Kind classifies a rejected request so callers can branch without
// matching on message text.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindConflict
	KindNotFound
)

// Error is the typed result returned when a transition or lookup is
// rejected. The engine never logs or retries; every rejection surfaces
// to the immediate caller as one of these.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func validation(reason string) *Error { return &Error{Kind: KindValidation, Reason: reason} }
func conflict(reason string) *Error   { return &Error{Kind: KindConflict, Reason: reason} }
func notFound(reason string) *Error   { return &Error{Kind: KindNotFound, Reason: reason} }

// IsValidation reports whether err is a validation rejection.
func IsValidation(err error) bool { return kindOf(err) == KindValidation }

// IsConflict reports whether err is a business-rule conflict.
func IsConflict(err error) bool { return kindOf(err) == KindConflict }

// IsNotFound reports whether err refers to a missing record.
func IsNotFound(err error) bool { return kindOf(err) == KindNotFound }

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
