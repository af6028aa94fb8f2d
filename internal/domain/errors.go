package domain

import "errors"

// Core error taxonomy. All of these are recoverable by the caller; the ledger
// and alert store stay usable after any single failed operation.
var (
	// ErrInvalidArgument indicates a non-positive quantity/price or an otherwise
	// malformed input. Rejected before any state mutation.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInsufficientHoldings indicates a sell request for more than the current
	// position quantity. No partial fills, no short-selling.
	ErrInsufficientHoldings = errors.New("insufficient holdings")

	// ErrPersistenceUnavailable indicates a load/save failure in the persistence
	// gateway. On save the in-memory mutation is kept and the caller is expected
	// to retry the save; on load the owner falls back to an empty default.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")

	// ErrMalformedState indicates persisted state that failed to parse or failed
	// shape validation. Treated like a missing key, but logged so silent data
	// loss stays visible.
	ErrMalformedState = errors.New("malformed persisted state")

	// ErrAlertNotFound indicates an alert rule ID that does not exist.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrUnknownCondition indicates an alert condition outside the closed set.
	// Unknown conditions are a construction-time error, never a silent no-op.
	ErrUnknownCondition = errors.New("unknown alert condition")
)
