package delivery

import "errors"

// Domain-level errors for the delivery core.
var (
	// ErrMessageNotFound signals a dispatch or mutation referencing a
	// message missing from the store. Permanent; callers must not retry.
	ErrMessageNotFound = errors.New("delivery: message not found")

	// ErrRoomNotFound signals a dissolved or unknown room. Permanent.
	ErrRoomNotFound = errors.New("delivery: room not found")

	// ErrVersionConflict signals a compare-and-swap that lost the race.
	// Transient; re-read and retry.
	ErrVersionConflict = errors.New("delivery: message version conflict")

	// ErrTerminalState signals a mutation against a RECALLED or
	// DESTROYED message. Callers handle it as an idempotent no-op.
	ErrTerminalState = errors.New("delivery: message in terminal state")

	// ErrConcurrentModificationExceeded is raised after the bounded
	// CAS retry budget is spent without a successful swap.
	ErrConcurrentModificationExceeded = errors.New("delivery: concurrent modification retries exceeded")

	// ErrAmbiguousTarget rejects a message setting both or neither of
	// recipient and room.
	ErrAmbiguousTarget = errors.New("delivery: exactly one of recipient_id and room_id must be set")

	// ErrNotRecipient rejects a read receipt from a user the message
	// was not addressed to.
	ErrNotRecipient = errors.New("delivery: user is not a recipient of this message")

	// ErrNotSender rejects a recall from anyone but the original sender.
	ErrNotSender = errors.New("delivery: only the sender may recall a message")

	// ErrRoomFull rejects adding members beyond the configured group cap.
	ErrRoomFull = errors.New("delivery: room member limit reached")
)
