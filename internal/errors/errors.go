// Package errors defines the coded application errors that components return
// across their boundaries. The gateway surface only inspects codes, never raw
// error text from upstream libraries.
package errors

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown    = "UNKNOWN"
	CodeValidation = "VALIDATION"
	CodeConfig     = "CONFIG"
	CodeGeneration = "GENERATION"
	CodeUpstream   = "UPSTREAM"
	CodeRelay      = "RELAY"
	CodeDatabase   = "DATABASE"
)

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// codedError carries the code, message and cause shared by all error types.
type codedError struct {
	code    string
	message string
	err     error
}

func (e *codedError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *codedError) Code() string {
	return e.code
}

func (e *codedError) Unwrap() error {
	return e.err
}

// Message returns the error message without the wrapped cause.
func (e *codedError) Message() string {
	return e.message
}

// Code returns the code of the first ApplicationError in err's chain,
// or CodeUnknown if it doesn't.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

// ValidationError reports a malformed or incomplete client request.
type ValidationError struct {
	codedError
}

func NewValidationError(message string) error {
	return &ValidationError{codedError{code: CodeValidation, message: message}}
}

// ConfigError reports a missing or invalid process-wide setting.
type ConfigError struct {
	codedError
}

func NewConfigError(message string, cause error) error {
	return &ConfigError{codedError{code: CodeConfig, message: message, err: cause}}
}

// GenerationError reports a failed call to the language model backend.
type GenerationError struct {
	codedError
}

func NewGenerationError(message string, cause error) error {
	return &GenerationError{codedError{code: CodeGeneration, message: message, err: cause}}
}

// UpstreamError reports a non-success HTTP response from a backend service.
// Status and Body are kept verbatim for diagnosis.
type UpstreamError struct {
	codedError
	Status int
	Body   string
}

func NewUpstreamError(status int, body string) error {
	return &UpstreamError{
		codedError: codedError{code: CodeUpstream, message: fmt.Sprintf("upstream responded with status %d", status)},
		Status:     status,
		Body:       body,
	}
}

// RelayError reports a transport failure while reaching the email backend.
type RelayError struct {
	codedError
}

func NewRelayError(message string, cause error) error {
	return &RelayError{codedError{code: CodeRelay, message: message, err: cause}}
}

// DatabaseError reports a storage-layer failure.
type DatabaseError struct {
	codedError
}

func NewDatabaseError(message string, cause error) error {
	return &DatabaseError{codedError{code: CodeDatabase, message: message, err: cause}}
}
