// Package errors provides the typed errors shared by the reference parser and
// the collaborators built on top of it (catalog loaders, passage client, API).
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a book, passage or dataset was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates input that could not be parsed or validated
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnavailable indicates an upstream service failed or timed out
	ErrUnavailable = errors.New("unavailable")
	// ErrUnsupported indicates an unsupported operation or dataset format
	ErrUnsupported = errors.New("unsupported")
)

// ParseError is raised when a reference (or a dataset) cannot be parsed.
// For dictated references Input carries the offending raw text.
type ParseError struct {
	Format  string // What was being parsed (e.g., "reference", "catalog", "synonyms")
	Input   string // Raw input, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	format := e.Format
	if format == "" {
		format = "reference"
	}
	if e.Input != "" {
		return fmt.Sprintf("could not parse %s from %q: %s", format, e.Input, e.Message)
	}
	return fmt.Sprintf("could not parse %s: %s", format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// Is matches ErrInvalidInput even when an underlying error is set.
func (e *ParseError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NotFoundError represents a missing book, passage or file.
type NotFoundError struct {
	Resource string // Type of resource (e.g., "book", "passage", "catalog")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError represents a dataset or configuration validation failure.
type ValidationError struct {
	Field   string // Field or key that failed validation
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// IOError represents a failed read, write or network exchange.
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "fetch", "open")
	Path      string // File path or URL involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// UnsupportedError represents an unsupported dataset format or feature.
type UnsupportedError struct {
	Feature string
	Reason  string
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupported
}

// NewParse creates a ParseError for a dictated reference.
func NewParse(input, message string) *ParseError {
	return &ParseError{
		Format:  "reference",
		Input:   input,
		Message: message,
	}
}

// NewParseFormat creates a ParseError for some other format.
func NewParseFormat(format, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		Message: message,
		Err:     err,
	}
}

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsParse reports whether err is (or wraps) a *ParseError.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
