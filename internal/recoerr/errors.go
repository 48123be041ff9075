// Package recoerr defines the shared error taxonomy used across the
// recommendation core and its store/API layers.
package recoerr

import "fmt"

// Kind enumerates the semantic failure categories a kernel, predictor, or
// store call can report. It deliberately stays a flat enumeration rather
// than per-kind exported struct types, mirroring the source ErrorKind enum
// it is grounded on.
type Kind int

const (
	DivisionByZero Kind = iota
	IndeterminateForm
	EmptyRatings
	NoMatchingRatings
	EmptyKNearestNeighbors
	IndexOutOfBound
	NotFoundByID
	NotFoundByName
	NotFoundByCustom
	BsonConvert
	CastingValue
	ValueConvert
	InsertRatingFailed
	UpdateRatingFailed
	RemoveRatingFailed
)

func (k Kind) String() string {
	switch k {
	case DivisionByZero:
		return "division by zero"
	case IndeterminateForm:
		return "indeterminate form"
	case EmptyRatings:
		return "empty ratings"
	case NoMatchingRatings:
		return "no matching ratings"
	case EmptyKNearestNeighbors:
		return "empty k nearest neighbors"
	case IndexOutOfBound:
		return "index out of bound"
	case NotFoundByID:
		return "not found by id"
	case NotFoundByName:
		return "not found by name"
	case NotFoundByCustom:
		return "not found by custom query"
	case BsonConvert:
		return "bson conversion failed"
	case CastingValue:
		return "value casting failed"
	case ValueConvert:
		return "value conversion failed"
	case InsertRatingFailed:
		return "insert rating failed"
	case UpdateRatingFailed:
		return "update rating failed"
	case RemoveRatingFailed:
		return "remove rating failed"
	default:
		return "unknown error"
	}
}

// Error wraps a Kind with optional context, and an optional cause for
// store-layer errors that need to surface an underlying failure.
type Error struct {
	Kind    Kind
	Context string
	Cause   error
}

func (e *Error) Error() string {
	if e.Context != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Cause)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Context)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, satisfying
// errors.Is(err, recoerr.New(kind)).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// New builds a bare Error for the given kind, usable as an errors.Is target.
func New(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Wrap builds an Error with context for the given kind.
func Wrap(kind Kind, context string) *Error {
	return &Error{Kind: kind, Context: context}
}

// WrapCause builds an Error with context and an underlying cause.
func WrapCause(kind Kind, context string, cause error) *Error {
	return &Error{Kind: kind, Context: context, Cause: cause}
}
