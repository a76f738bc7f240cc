package kinvey

import "github.com/cbre360/js-sdk/internal/model"

// ErrorKind is a closed set of error classifications surfaced to callers.
// Callers should branch on Kind (or errors.Is against the sentinel values
// below) rather than on error strings. Alias of internal/model.ErrorKind.
type ErrorKind = model.ErrorKind

const (
	// KindKinvey is a generic client-side invariant violation (bad args, bad state).
	KindKinvey = model.KindKinvey
	// KindInvalidCredentials means the server rejected the token and refresh failed or was unavailable.
	KindInvalidCredentials = model.KindInvalidCredentials
	// KindInvalidGrant means the refresh token itself was rejected.
	KindInvalidGrant = model.KindInvalidGrant
	// KindNoActiveUser means Session auth was requested with no active user.
	KindNoActiveUser = model.KindNoActiveUser
	// KindNotFound means an entity, collection, or id was not found.
	KindNotFound = model.KindNotFound
	// KindSync covers sync-queue invariant violations: push already running,
	// invalid op merge, missing _id while recording an intent.
	KindSync = model.KindSync
	// KindInvalidCachedQuery means the server rejected a delta-set since token;
	// caller must fall back to a full pull.
	KindInvalidCachedQuery = model.KindInvalidCachedQuery
	// KindMissingConfiguration means delta-set isn't configured on the collection.
	KindMissingConfiguration = model.KindMissingConfiguration
	// KindServerError covers 5xx responses.
	KindServerError = model.KindServerError
	// KindTimeout means the request exceeded its configured timeout.
	KindTimeout = model.KindTimeout
	// KindNoResponse means the transport yielded nothing (connection reset, no body).
	KindNoResponse = model.KindNoResponse
)

// StoreError is the single error type the core returns. Kind is always one
// of the closed ErrorKind values; Cause, when present, is the underlying
// transport or persister error and is reachable via errors.Unwrap/errors.As.
// Alias of internal/model.StoreError.
type StoreError = model.StoreError

// NewError constructs a StoreError with no underlying cause.
func NewError(kind ErrorKind, message string) *StoreError { return model.NewError(kind, message) }

// WrapError constructs a StoreError wrapping a lower-level cause.
func WrapError(kind ErrorKind, message string, cause error) *StoreError {
	return model.WrapError(kind, message, cause)
}

// KindOf extracts the ErrorKind of err if it is (or wraps) a *StoreError,
// and reports whether one was found.
func KindOf(err error) (ErrorKind, bool) { return model.KindOf(err) }

// IsKind reports whether err is a *StoreError of the given kind.
func IsKind(err error, kind ErrorKind) bool { return model.IsKind(err, kind) }

var (
	// ErrNotFound is a sentinel usable with errors.Is for "entity not found"
	// without caring about the message text.
	ErrNotFound = model.ErrNotFound
	// ErrSync is a sentinel usable with errors.Is for any Sync-kind failure.
	ErrSync = model.ErrSync
)
