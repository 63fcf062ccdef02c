// Package apperr defines the error taxonomy shared by the gallery and its
// presentation layers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure.
type Kind string

const (
	KindCaptureCancelled   Kind = "capture_cancelled"
	KindCaptureUnavailable Kind = "capture_unavailable"
	KindStorageWrite       Kind = "storage_write"
	KindPersist            Kind = "persist"
	KindCorruptIndex       Kind = "corrupt_index"
	KindNotFound           Kind = "not_found"
	KindValidation         Kind = "validation"
	KindShare              Kind = "share"
)

var (
	ErrCaptureCancelled   = errors.New("capture cancelled")
	ErrCaptureUnavailable = errors.New("capture unavailable")
	ErrStorageWrite       = errors.New("storage write failed")
	ErrPersist            = errors.New("persist failed")
	ErrCorruptIndex       = errors.New("corrupt index")
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrShare              = errors.New("share failed")

	// ErrShareCancelled is reported by sharers when the user dismisses the
	// share sheet. It is an outcome, not an operation error.
	ErrShareCancelled = errors.New("share cancelled")
)

var sentinels = map[Kind]error{
	KindCaptureCancelled:   ErrCaptureCancelled,
	KindCaptureUnavailable: ErrCaptureUnavailable,
	KindStorageWrite:       ErrStorageWrite,
	KindPersist:            ErrPersist,
	KindCorruptIndex:       ErrCorruptIndex,
	KindNotFound:           ErrNotFound,
	KindValidation:         ErrValidation,
	KindShare:              ErrShare,
}

// Error wraps an underlying error with the operation and its kind.
type Error struct {
	Op   string
	Kind Kind
	ID   string // optional: photo id the operation targeted
	Err  error
}

// New returns an *Error for op with the given kind.
func New(op string, kind Kind, id string, err error) *Error {
	return &Error{Op: op, Kind: kind, ID: id, Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.ID != "" {
		base += fmt.Sprintf(" (id=%s)", e.ID)
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is makes errors.Is(err, ErrNotFound) and friends match on kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for kind, s := range sentinels {
		if errors.Is(err, s) {
			return kind
		}
	}
	return ""
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
