package repositories

import "errors"

var (
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotificationNotFound = errors.New("notification not found")

	// Validation failures on create.
	ErrEmptyBody      = errors.New("message body is empty")
	ErrParentNotFound = errors.New("parent message not found")
	ErrParentMismatch = errors.New("parent message belongs to a different conversation")

	ErrNotSender   = errors.New("only the sender can edit the message")
	ErrNotReceiver = errors.New("only the receiver can mark the message read")

	// ErrEditConflict is returned after the internal retry budget for
	// concurrent edits of the same message is exhausted.
	ErrEditConflict = errors.New("message edit conflict")

	// ErrCleanupFailed means an account cleanup transaction rolled back.
	// It is never retried automatically.
	ErrCleanupFailed = errors.New("account cleanup failed")

	ErrThreadTooDeep = errors.New("reply thread exceeds depth limit")
)
