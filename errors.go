package callout

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("callout: no store configured")
	ErrStoreClosed     = errors.New("callout: store closed")
	ErrMigrationFailed = errors.New("callout: migration failed")

	// Registration errors. These surface synchronously from Start, before
	// anything is persisted or dispatched.
	ErrNoCalls           = errors.New("callout: continuation has no calls")
	ErrTooManyCalls      = errors.New("callout: too many calls in continuation")
	ErrDuplicateLabel    = errors.New("callout: duplicate call label")
	ErrInvalidDescriptor = errors.New("callout: invalid call descriptor")
	ErrHandlerNotFound   = errors.New("callout: no resume handler registered")

	// Not found errors.
	ErrContinuationNotFound = errors.New("callout: continuation not found")
	ErrArchiveNotFound      = errors.New("callout: archive entry not found")

	// Conflict errors.
	ErrContinuationExists = errors.New("callout: continuation already exists")

	// State errors.
	ErrInvalidState       = errors.New("callout: invalid state transition")
	ErrAlreadyFinalized   = errors.New("callout: continuation already finalized")
	ErrChainLimitExceeded = errors.New("callout: chain depth limit exceeded")
)
