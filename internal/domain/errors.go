package domain

import (
	"fmt"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is returned by the store when a looked-up entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique key (empID, email, userId+trainingId) is already taken.
var ErrDuplicate = errors.New("duplicate key")

// FieldError describes a problem with one input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError rejects malformed input locally.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(msg string, flds ...FieldError) error {
	return &ValidationError{Err: errors.New(msg), Fields: flds}
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return "validation failed"
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ReferentialIntegrityError reports a reference to an entity missing from the store.
// It is reported, never healed implicitly.
type ReferentialIntegrityError struct {
	Entity       string             // "user", "training" or "module"
	ID           primitive.ObjectID // the dangling reference
	ReferencedBy primitive.ObjectID
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("%s %s referenced by %s does not exist", e.Entity, e.ID.Hex(), e.ReferencedBy.Hex())
}

// DataInconsistencyWarning flags a record whose stored pass flag disagrees with its
// computed strict completion. It is surfaced to operators, not corrected.
type DataInconsistencyWarning struct {
	ProgressID primitive.ObjectID
	StoredPass bool
	StrictPct  float64
}

func (w *DataInconsistencyWarning) Error() string {
	return fmt.Sprintf("progress %s: pass=%t but strict completion is %.2f%%", w.ProgressID.Hex(), w.StoredPass, w.StrictPct)
}

// TransientIOError wraps a store or external API failure that may succeed on retry.
type TransientIOError struct {
	Op  string
	Err error
}

func (e *TransientIOError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransientIOError) Unwrap() error { return e.Err }

// IsTransient reports whether err (or anything it wraps) is a TransientIOError.
func IsTransient(err error) bool {
	var t *TransientIOError
	return errors.As(err, &t)
}
