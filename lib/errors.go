package liboralynx

import (
	"golang.org/x/xerrors"
)

// Authorization
var (
	// ErrNotOwner is returned when an administrative call is not made by the owner.
	ErrNotOwner = xerrors.New("caller is not the owner")
	// ErrNotProvider is returned when a submission or request is not made by a registered provider.
	ErrNotProvider = xerrors.New("caller is not a registered provider")
	// ErrPaused is returned while the instance is paused.
	ErrPaused = xerrors.New("instance is paused")
)

// Throttling
var (
	// ErrCooldownActive is returned when the caller acted less than a cooldown ago.
	ErrCooldownActive = xerrors.New("cooldown still active")
	// ErrInvalidCooldown is returned when the cooldown is set to zero or a negative duration.
	ErrInvalidCooldown = xerrors.New("cooldown must be positive")
	// ErrSubmissionRejected is returned when a submission does not satisfy the configured submission rule.
	ErrSubmissionRejected = xerrors.New("submission rejected by rule")
)

// Batch lifecycle
var (
	// ErrInvalidBatch is returned for unknown or already closed batches on administrative calls.
	ErrInvalidBatch = xerrors.New("invalid batch")
	// ErrBatchClosed is returned when appending to a missing or closed batch.
	ErrBatchClosed = xerrors.New("batch closed")
	// ErrEmptyBatch is returned when aggregating a batch without observations.
	ErrEmptyBatch = xerrors.New("empty batch")
)

// Protocol safety
var (
	// ErrReplayAttempt is returned for callbacks on unknown or already fulfilled requests.
	ErrReplayAttempt = xerrors.New("replay attempt")
	// ErrStateMismatch is returned when the aggregate changed since the request was issued.
	ErrStateMismatch = xerrors.New("state mismatch")
	// ErrInvalidProof is returned when the oracle proof does not validate.
	ErrInvalidProof = xerrors.New("invalid proof")
)

// Misc
var (
	// ErrUnsupported is returned by a ciphertext runtime for operations it cannot evaluate.
	ErrUnsupported = xerrors.New("unsupported homomorphic operation")
	// ErrInvalidIdentity is returned for malformed identities or signatures.
	ErrInvalidIdentity = xerrors.New("invalid identity")
	// ErrAlreadySetup is returned when an instance is set up twice.
	ErrAlreadySetup = xerrors.New("instance already set up")
	// ErrNotSetup is returned when an instance is used before being set up.
	ErrNotSetup = xerrors.New("instance not set up")
	// ErrDuplicateQuery is returned when a signed query is received twice.
	ErrDuplicateQuery = xerrors.New("duplicate query")
)
