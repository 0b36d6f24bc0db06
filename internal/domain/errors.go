package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Ledger error classes. Typed errors below wrap one of these so callers
// can branch with errors.Is.
var (
	// ErrValidation is returned when input fails validation
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrInsufficientRemainder is returned when a write-off exceeds the reservation remainder
	ErrInsufficientRemainder = errors.New("insufficient reservation remainder")

	// ErrInsufficientStock is returned when a write-off would exceed what the stock item holds
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrOrderNotFound is returned when no order matches an external event
	ErrOrderNotFound = errors.New("order not found")

	// ErrUnparsableMaterial is returned when a material string has no grade or no NxNxN pattern
	ErrUnparsableMaterial = errors.New("unparsable material")

	// ErrNoSuitableReservation is returned when no open reservation matches an external event
	ErrNoSuitableReservation = errors.New("no suitable reservation")

	// ErrPersistence is returned when the table store fails to load or save a table
	ErrPersistence = errors.New("persistence failure")
)

// ValidationError carries per-field validation messages
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a validation error for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ReferenceError names the entity that could not be resolved
type ReferenceError struct {
	Entity string
	ID     int
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *ReferenceError) Unwrap() error { return ErrNotFound }

// NotFound builds a ReferenceError.
func NotFound(entity string, id int) *ReferenceError {
	return &ReferenceError{Entity: entity, ID: id}
}

// RemainderError reports a quantity larger than what a reservation still holds
type RemainderError struct {
	ReservationID int
	Requested     int
	Remaining     int
}

func (e *RemainderError) Error() string {
	return fmt.Sprintf("reservation %d has %d remaining, requested %d", e.ReservationID, e.Remaining, e.Requested)
}

func (e *RemainderError) Unwrap() error { return ErrInsufficientRemainder }

// PersistenceError reports a table store failure. Written lists the tables
// that were already replaced before the failure.
type PersistenceError struct {
	Table   string
	Op      string
	Written []string
	Err     error
}

func (e *PersistenceError) Error() string {
	msg := fmt.Sprintf("failed to %s table %s: %v", e.Op, e.Table, e.Err)
	if len(e.Written) > 0 {
		msg += fmt.Sprintf(" (already written: %s)", strings.Join(e.Written, ", "))
	}
	return msg
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// ValidationMessages provides human-readable validation error messages
// These map validator tags to user-friendly messages
var ValidationMessages = map[string]string{
	"required": "This field is required",
	"max":      "Exceeds maximum length",
	"min":      "Below minimum length",
	"gte":      "Must be greater than or equal to minimum value",
	"gt":       "Must be greater than minimum value",
	"lte":      "Must be less than or equal to maximum value",
	"lt":       "Must be less than maximum value",
	"oneof":    "Must be one of the allowed values",
	"numeric":  "Must be a numeric value",
}

// GetValidationMessage returns a human-readable message for a validation tag
func GetValidationMessage(tag string) string {
	if msg, ok := ValidationMessages[tag]; ok {
		return msg
	}
	return "Validation failed: " + tag
}
