// Package errors provides standardized error handling for the Versewall
// display host
package errors

import (
	"errors"
	"fmt"
)

// Common sentinel errors that can be used across the application
var (
	// ErrNotFound indicates a requested resource doesn't exist
	ErrNotFound = errors.New("resource not found")

	// ErrDiscoveryTimeout indicates no matching display was found on the
	// network before the resolve deadline. Non-fatal: callers fall back
	// to the cloud transport.
	ErrDiscoveryTimeout = errors.New("discovery timed out")

	// ErrDisplayMismatch indicates a handshake named a display other
	// than this host
	ErrDisplayMismatch = errors.New("display mismatch")

	// ErrTenantMismatch indicates the token's tenant claim doesn't match
	// the host's tenant
	ErrTenantMismatch = errors.New("tenant mismatch")

	// ErrTransportClosed indicates a transport was closed under an
	// in-flight operation
	ErrTransportClosed = errors.New("transport closed")

	// ErrRelayUnavailable indicates the relay broker cannot be reached
	ErrRelayUnavailable = errors.New("relay unavailable")

	// ErrNotPaired indicates the host has no claimed identity yet
	ErrNotPaired = errors.New("display not paired")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")
)

// Error represents a domain error with additional context
type Error struct {
	// Code is a machine-readable error code
	Code string
	// Message is a human-readable error description
	Message string
	// Op describes the operation that failed
	Op string
	// Err is the underlying error
	Err error
}

// Error implements the error interface with a formatted message
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for error chain handling
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given details
func NewError(code string, message string, op string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// IsNotFound returns true if err represents a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDiscoveryTimeout returns true if err represents a discovery timeout
func IsDiscoveryTimeout(err error) bool {
	return errors.Is(err, ErrDiscoveryTimeout)
}

// IsDisplayMismatch returns true if err represents a rejected handshake
func IsDisplayMismatch(err error) bool {
	return errors.Is(err, ErrDisplayMismatch)
}

// IsTransportClosed returns true if err represents a closed transport
func IsTransportClosed(err error) bool {
	return errors.Is(err, ErrTransportClosed)
}

// IsRelayUnavailable returns true if err represents an unreachable relay
func IsRelayUnavailable(err error) bool {
	return errors.Is(err, ErrRelayUnavailable)
}
