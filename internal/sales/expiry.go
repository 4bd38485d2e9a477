package sales

import "time"

// expirable holds the stored states subject to the validity deadline.
var expirable = map[Status]bool{
	StatusSent:      true,
	StatusAccepted:  true,
	StatusDelivered: true,
}

// IsExpired is a pure predicate: true iff the document awaits customer action
// and its validity deadline lies strictly in the past. It has no side effects
// and is evaluated on every read and before every guarded mutation.
func IsExpired(d *Document, now time.Time) bool {
	if !expirable[d.Status] {
		return false
	}
	if d.ValidUntil == nil {
		return false
	}
	return now.After(*d.ValidUntil)
}

// CheckReopen validates the reopen guard: the document must currently present
// as expired, must not be converted, and the new deadline must be strictly
// after now. Audit stamps from before the expiry are left untouched.
func CheckReopen(d *Document, newValidUntil time.Time, now time.Time) error {
	if d.Converted() {
		return ErrAlreadyConverted
	}
	if !IsExpired(d, now) {
		return &InvalidTransitionError{From: EffectiveStatus(d, now), Event: EventReopen}
	}
	if !newValidUntil.After(now) {
		return ErrInvalidReopenDate
	}
	return nil
}
