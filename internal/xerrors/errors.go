// SPDX-License-Identifier: MIT

// Package xerrors defines the ingestion error taxonomy. Every failure a
// caller can observe maps onto one sentinel so callers can branch with
// errors.Is at the boundary, and onto a short user-facing category for
// display. Internal detail stays in the wrapped error and the logs.
package xerrors

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrMalformedHeader      = errors.New("feed: malformed header")
	ErrParse                = errors.New("feed: malformed data")
	ErrAuthenticationFailed = errors.New("source: authentication failed")
	ErrNetwork              = errors.New("transport: network failure")
	ErrNotFound             = errors.New("resource not found")
	ErrQuota                = errors.New("source: quota exceeded")
	ErrStorage              = errors.New("store: operation failed")
	ErrCancelled            = errors.New("operation cancelled")
)

// Category is the short, user-visible classification of an error.
type Category string

const (
	CategoryAuthentication Category = "authentication"
	CategoryQuota          Category = "quota"
	CategoryNetwork        Category = "network"
	CategoryNotFound       Category = "not-found"
	CategoryParse          Category = "parse"
	CategoryStorage        Category = "storage"
	CategoryCancelled      Category = "cancelled"
	CategoryUnknown        Category = "unknown"
)

// Categorize maps any error onto its user-facing category.
func Categorize(err error) Category {
	switch {
	case err == nil:
		return CategoryUnknown
	case errors.Is(err, ErrAuthenticationFailed):
		return CategoryAuthentication
	case errors.Is(err, ErrQuota):
		return CategoryQuota
	case errors.Is(err, ErrNetwork):
		return CategoryNetwork
	case errors.Is(err, ErrNotFound):
		return CategoryNotFound
	case errors.Is(err, ErrMalformedHeader), errors.Is(err, ErrParse):
		return CategoryParse
	case errors.Is(err, ErrStorage):
		return CategoryStorage
	case errors.Is(err, ErrCancelled):
		return CategoryCancelled
	default:
		return CategoryUnknown
	}
}

// UserMessage returns a short display string for the error's category.
func UserMessage(err error) string {
	switch Categorize(err) {
	case CategoryAuthentication:
		return "Authentication failed. Check your username and password."
	case CategoryQuota:
		return "The provider rejected the request due to account limits."
	case CategoryNetwork:
		return "Could not reach the server. Check your connection and retry."
	case CategoryNotFound:
		return "The requested resource was not found."
	case CategoryParse:
		return "The feed could not be read. The source may be invalid."
	case CategoryStorage:
		return "A local storage error occurred."
	case CategoryCancelled:
		return "The operation was cancelled."
	default:
		return "An unexpected error occurred."
	}
}

// IngestError wraps a sentinel with operation context.
type IngestError struct {
	Sentinel  error
	Operation string // e.g. "m3u parse", "xtream get_vod_streams"
	Status    int    // HTTP status when applicable
	Detail    string // internal detail, logged but never shown to users
	Err       error  // nested lower-level error
}

func (e *IngestError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *IngestError) Unwrap() error {
	return e.Sentinel
}

// Wrap builds an IngestError around a sentinel.
func Wrap(sentinel error, operation string, err error) *IngestError {
	return &IngestError{Sentinel: sentinel, Operation: operation, Err: err}
}
