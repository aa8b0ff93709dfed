package errors

import "errors"

var (
	ErrInvalidRequest           = errors.New("invalid contribution request")
	ErrPendingActivityConflict  = errors.New("a session for another activity is still pending")
	ErrConcurrentSessionStart   = errors.New("another session was started concurrently")
	ErrLanguageNotFound         = errors.New("language not found")
	ErrActivityNotAvailable     = errors.New("activity is not available for this language")
	ErrCandidatesNotFound       = errors.New("no candidates available")
	ErrAllocationTimeout        = errors.New("candidate allocation did not settle in time")
	ErrItemNotFound             = errors.New("item not found")
	ErrNoActiveSession          = errors.New("no active session")
	ErrExternalWriteFailed      = errors.New("external corpus write failed")
	ErrExternalLookupFailed     = errors.New("external corpus lookup failed")
	ErrRepositoryInvariantBroke = errors.New("repository invariant violated")
	ErrStoreContention          = errors.New("store lock contention, retry the request")
)
