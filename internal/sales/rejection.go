package sales

import (
	"strings"
	"time"
)

// Recorder enforces the rejection-reason invariant and stamps rejection
// metadata. Rejected documents are terminal: immutable and permanently
// excluded from conversion.
type Recorder struct{}

// Reject applies the rejection to the document in place. The caller is
// responsible for the capability check and the atomic commit.
func (Recorder) Reject(d *Document, actor int64, reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrMissingRejectionReason
	}
	if _, err := Transition(d, EventReject, now); err != nil {
		return err
	}
	d.Status = StatusRejected
	d.RejectionReason = &reason
	if d.RejectedBy == nil {
		d.RejectedBy = &actor
		at := now
		d.RejectedAt = &at
	}
	return nil
}
