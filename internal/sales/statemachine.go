package sales

import "time"

// transitions lists the legal stored-status moves per event. Expiry is not
// listed: it is a derived state, never written by an event (see EffectiveStatus).
var transitions = map[Event]map[Status]Status{
	EventSend:    {StatusDraft: StatusSent},
	EventAccept:  {StatusSent: StatusAccepted},
	EventReject:  {StatusSent: StatusRejected},
	EventFulfill: {StatusAccepted: StatusDelivered},
	EventReopen:  {StatusExpired: StatusDraft},
}

// EffectiveStatus derives the status a reader must observe at the given time.
// A SENT, ACCEPTED or DELIVERED document whose validity deadline has passed
// presents as EXPIRED without any stored transition.
func EffectiveStatus(d *Document, now time.Time) Status {
	if IsExpired(d, now) {
		return StatusExpired
	}
	return d.Status
}

// Transition validates the event against the document's derived state and
// returns the target status. The same "now" must be used for every expiry
// check within one request.
func Transition(d *Document, ev Event, now time.Time) (Status, error) {
	from := EffectiveStatus(d, now)

	targets, ok := transitions[ev]
	if !ok {
		return "", &InvalidTransitionError{From: from, Event: ev}
	}
	to, ok := targets[from]
	if !ok {
		return "", &InvalidTransitionError{From: from, Event: ev}
	}
	if to == StatusDelivered && !d.KindDescriptor().HasDelivered {
		return "", &InvalidTransitionError{From: from, Event: ev}
	}
	return to, nil
}

// conversionEligible holds the states a document may be converted from.
// Fulfilment is not a gate: SENT and ACCEPTED orders convert directly.
var conversionEligible = map[Status]bool{
	StatusSent:      true,
	StatusAccepted:  true,
	StatusDelivered: true,
}

// CanConvert checks conversion eligibility against the derived state.
// Conversion leaves the status untouched, so it is guarded here rather than
// in the transition table.
func CanConvert(d *Document, now time.Time) error {
	if d.Converted() {
		return ErrAlreadyConverted
	}
	from := EffectiveStatus(d, now)
	if !conversionEligible[from] {
		return &InvalidTransitionError{From: from, Event: EventConvert}
	}
	return nil
}

// CanEdit reports whether the document accepts mutations to its line items,
// currency or dates. Only never-converted drafts are mutable.
func CanEdit(d *Document, now time.Time) error {
	if d.Converted() {
		return ErrAlreadyConverted
	}
	if EffectiveStatus(d, now) != StatusDraft {
		return ErrNotEditable
	}
	return nil
}

// CanDelete reports whether the document may be removed.
func CanDelete(d *Document, now time.Time) error {
	return CanEdit(d, now)
}
