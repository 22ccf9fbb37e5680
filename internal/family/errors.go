package family

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("member not found")
	ErrSelfReference      = errors.New("member cannot be its own parent")
	ErrCycleDetected      = errors.New("new parent is a descendant of the member")
	ErrChallengeExhausted = errors.New("no members available for an identity challenge")
	ErrValidation         = errors.New("invalid member record")
)

// Kind classifies an error returned by this package. The kind alone is
// enough to render a user-facing message.
type Kind string

const (
	KindNone               Kind = ""
	KindNotFound           Kind = "not_found"
	KindSelfReference      Kind = "self_reference"
	KindCycleDetected      Kind = "cycle_detected"
	KindChallengeExhausted Kind = "challenge_exhausted"
	KindValidation         Kind = "validation_error"
	KindInternal           Kind = "internal"
)

// KindOf maps err to its Kind. Errors not produced by this package are
// KindInternal; a nil error is KindNone.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrSelfReference):
		return KindSelfReference
	case errors.Is(err, ErrCycleDetected):
		return KindCycleDetected
	case errors.Is(err, ErrChallengeExhausted):
		return KindChallengeExhausted
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindInternal
	}
}

// Message returns the message shown to a person for this kind of failure.
func (k Kind) Message() string {
	switch k {
	case KindNone:
		return ""
	case KindNotFound:
		return "That family member could not be found."
	case KindSelfReference:
		return "A person cannot be their own parent."
	case KindCycleDetected:
		return "Cannot reparent into your own descendant: that would create a loop in the family tree."
	case KindChallengeExhausted:
		return "There are not enough family members to build an identity check."
	case KindValidation:
		return "A family member record is missing required information."
	default:
		return "Something went wrong. Please try again."
	}
}

// ValidationError reports a malformed member record in a snapshot.
type ValidationError struct {
	Index    int
	MemberID int64
	Field    string
	Message  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("member[%d] (id %d): %s: %s", e.Index, e.MemberID, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
