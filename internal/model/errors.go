package model

import (
	"errors"
	"fmt"
)

// ErrorKind is a closed set of error classifications surfaced to callers.
// Callers should branch on Kind (or errors.Is against the sentinel values
// below) rather than on error strings.
type ErrorKind string

const (
	// KindKinvey is a generic client-side invariant violation (bad args, bad state).
	KindKinvey ErrorKind = "Kinvey"
	// KindInvalidCredentials means the server rejected the token and refresh failed or was unavailable.
	KindInvalidCredentials ErrorKind = "InvalidCredentials"
	// KindInvalidGrant means the refresh token itself was rejected.
	KindInvalidGrant ErrorKind = "InvalidGrant"
	// KindNoActiveUser means Session auth was requested with no active user.
	KindNoActiveUser ErrorKind = "NoActiveUser"
	// KindNotFound means an entity, collection, or id was not found.
	KindNotFound ErrorKind = "NotFound"
	// KindSync covers sync-queue invariant violations: push already running,
	// invalid op merge, missing _id while recording an intent.
	KindSync ErrorKind = "Sync"
	// KindInvalidCachedQuery means the server rejected a delta-set since token;
	// caller must fall back to a full pull.
	KindInvalidCachedQuery ErrorKind = "InvalidCachedQuery"
	// KindMissingConfiguration means delta-set isn't configured on the collection.
	KindMissingConfiguration ErrorKind = "MissingConfiguration"
	// KindServerError covers 5xx responses.
	KindServerError ErrorKind = "ServerError"
	// KindTimeout means the request exceeded its configured timeout.
	KindTimeout ErrorKind = "Timeout"
	// KindNoResponse means the transport yielded nothing (connection reset, no body).
	KindNoResponse ErrorKind = "NoResponse"
)

// StoreError is the single error type the core returns. Kind is always one
// of the closed ErrorKind values; Cause, when present, is the underlying
// transport or persister error and is reachable via errors.Unwrap/errors.As.
type StoreError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is(err, &StoreError{Kind: KindNotFound}) style matching
// on Kind alone, ignoring Message/Cause.
func (e *StoreError) Is(target error) bool {
	var t *StoreError
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// NewError constructs a StoreError with no underlying cause.
func NewError(kind ErrorKind, message string) *StoreError {
	return &StoreError{Kind: kind, Message: message}
}

// WrapError constructs a StoreError wrapping a lower-level cause.
func WrapError(kind ErrorKind, message string, cause error) *StoreError {
	return &StoreError{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the ErrorKind of err if it is (or wraps) a *StoreError,
// and reports whether one was found.
func KindOf(err error) (ErrorKind, bool) {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

// IsKind reports whether err is a *StoreError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

var (
	// ErrNotFound is a sentinel usable with errors.Is for "entity not found"
	// without caring about the message text.
	ErrNotFound = &StoreError{Kind: KindNotFound}
	// ErrSync is a sentinel usable with errors.Is for any Sync-kind failure.
	ErrSync = &StoreError{Kind: KindSync}
)
