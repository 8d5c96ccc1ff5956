// Package errors provides domain-specific error types and sentinel errors
// for the command handlers and upstream clients.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for command handling.
// Use errors.Is() to check these errors in your code.
var (
	// ErrCaseNotFound indicates the Case API returned zero matches.
	ErrCaseNotFound = errors.New("no case data found")

	// ErrInvalidCaseNumber indicates no valid case number was found in the
	// message text or the room name.
	ErrInvalidCaseNumber = errors.New("invalid case number")

	// ErrAccessDenied indicates the sender is not allowed to use
	// case-data commands.
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidEmail indicates a malformed email address.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrNotConfigured indicates the bot has no Spark credentials yet.
	ErrNotConfigured = errors.New("bot not configured")
)

// UpstreamError represents a non-2xx response from an upstream API
// (Case API or Spark API).
type UpstreamError struct {
	API         string // "caseapi" or "spark"
	StatusCode  int
	Description string // upstream-provided error description, if any
	Err         error
}

func (e *UpstreamError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s error (status=%d): %s", e.API, e.StatusCode, e.Description)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error (status=%d): %v", e.API, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s error (status=%d)", e.API, e.StatusCode)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError creates a new upstream error.
func NewUpstreamError(api string, statusCode int, description string) *UpstreamError {
	return &UpstreamError{
		API:         api,
		StatusCode:  statusCode,
		Description: description,
	}
}
