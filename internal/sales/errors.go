package sales

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidTransition indicates the requested event is illegal from the
	// document's current (or derived) state.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrMissingRejectionReason indicates a reject call without a reason.
	ErrMissingRejectionReason = errors.New("rejection reason required")
	// ErrInvalidReopenDate indicates a reopen deadline that is not strictly in the future.
	ErrInvalidReopenDate = errors.New("reopen date must be in the future")
	// ErrAlreadyConverted indicates the document already references an invoice.
	ErrAlreadyConverted = errors.New("document already converted")
	// ErrNotEditable indicates an edit or delete outside DRAFT, or on a converted document.
	ErrNotEditable = errors.New("document not editable in current state")
	// ErrValidation indicates malformed input (empty lines, non-positive total, bad rate).
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a concurrent modification detected at commit.
	ErrConflict = errors.New("document modified concurrently")
	// ErrForbidden indicates the actor lacks the capability for the event.
	ErrForbidden = errors.New("forbidden")
)

// InvalidTransitionError identifies the current state and the requested event.
type InvalidTransitionError struct {
	From  Status
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: cannot %s from %s", e.Event, e.From)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
