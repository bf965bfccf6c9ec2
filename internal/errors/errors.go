// LOCATION: internal/errors/errors.go
//
// Consolidated error definitions for the entire project.
//
// This file provides:
// - Sentinel errors for every failure class in the acquisition pipeline
// - Error category checking functions
// - Error wrapping utilities
//
// The categories mirror the containment policy of the run loop: transient
// and per-segment errors are logged and contained; only fatal errors abort
// a run, and only before acquisition begins.

package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Adapter errors. ErrNoData is the "nothing ready yet" condition and is
	// distinct from ErrDeviceUnreachable so callers never conflate an idle
	// sensor with a dead one.
	ErrNoData             = errors.New("no sample ready")
	ErrDeviceUnreachable  = errors.New("device unreachable")
	ErrReadFailed         = errors.New("sample read failed")
	ErrAdapterInit        = errors.New("adapter initialization failed")
	ErrBusUnavailable     = errors.New("bus unavailable")
	ErrUnsupportedFamily  = errors.New("unsupported sensor family")

	// Storage errors
	ErrStorageWrite    = errors.New("segment write failed")
	ErrUnknownEncoding = errors.New("unknown segment encoding")
	ErrCorruptSegment  = errors.New("corrupt segment file")

	// Archive errors
	ErrManifestWrite  = errors.New("manifest write failed")
	ErrDispatchFailed = errors.New("archiver dispatch failed")
	ErrArchivePartial = errors.New("archive partially completed")

	// Validation errors
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrInvalidPolicy   = errors.New("invalid cap policy")
	ErrMissingField    = errors.New("missing required field")

	// Fatal errors. A run aborts at startup if one of these occurs.
	ErrNoUsableSensors = errors.New("no usable sensors")
	ErrOutputDir       = errors.New("output directory not creatable")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// IsNoData returns true if err only means no sample was ready.
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}

// IsTransient returns true if err is a per-tick adapter failure that the
// scheduler contains by skipping the affected sensor for that tick.
func IsTransient(err error) bool {
	return errors.Is(err, ErrDeviceUnreachable) ||
		errors.Is(err, ErrReadFailed)
}

// IsStorage returns true if err is a segment persistence failure. The
// affected segment's data is lost; the run continues.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorageWrite) ||
		errors.Is(err, ErrUnknownEncoding) ||
		errors.Is(err, ErrCorruptSegment)
}

// IsDispatch returns true if err is an archive dispatch failure. Backlog
// and manifest are preserved on disk for manual recovery.
func IsDispatch(err error) bool {
	return errors.Is(err, ErrManifestWrite) ||
		errors.Is(err, ErrDispatchFailed)
}

// IsValidation returns true if err is a configuration validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidDuration) ||
		errors.Is(err, ErrInvalidPolicy) ||
		errors.Is(err, ErrMissingField)
}

// IsFatal returns true if err must abort the run before acquisition.
func IsFatal(err error) bool {
	return errors.Is(err, ErrNoUsableSensors) ||
		errors.Is(err, ErrOutputDir)
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewInvalidValue creates an invalid value error.
func NewInvalidValue(field string, value interface{}, reason string) error {
	return fmt.Errorf("invalid %s '%v': %s: %w", field, value, reason, ErrInvalidConfig)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// HasErrors returns true if there are any errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns the first error for errors.Is/As support.
func (v *ValidationErrors) Unwrap() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v.Errors[0]
}
