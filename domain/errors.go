package domain

import "errors"

// Error taxonomy. Authorization and validation errors are decided locally,
// before any remote write is attempted; ErrMutationFailed wraps a rejected or
// timed-out remote write and triggers rollback at the caller.
var (
	ErrPermissionDenied          = errors.New("permission denied")
	ErrNotFound                  = errors.New("not found")
	ErrDuplicateMember           = errors.New("user is already a member of this project")
	ErrProtected                 = errors.New("the super-admin cannot be removed from any project")
	ErrOwnershipTransferRequired = errors.New("the project owner cannot be removed; transfer ownership first")
	ErrSelfRemoval               = errors.New("you cannot remove yourself")

	// ErrConflictNormalizationRequired signals that the gap between two
	// adjacent ordering keys is below the precision floor and the whole
	// partition must be renumbered before the insertion can be retried.
	ErrConflictNormalizationRequired = errors.New("ordering key normalization required")

	ErrMutationFailed = errors.New("mutation failed")
	ErrStreamDegraded = errors.New("subscription degraded, serving stale data")
	ErrValidation     = errors.New("validation failed")
)
