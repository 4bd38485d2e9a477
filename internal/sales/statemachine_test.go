package sales

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func testDoc(kind Kind, status Status) *Document {
	return &Document{
		ID:     uuid.New(),
		Kind:   kind.Name,
		Status: status,
	}
}

func TestTransitionTable(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		kind   Kind
		from   Status
		event  Event
		to     Status
		errors bool
	}{
		{name: "send draft", kind: KindQuote, from: StatusDraft, event: EventSend, to: StatusSent},
		{name: "accept sent", kind: KindQuote, from: StatusSent, event: EventAccept, to: StatusAccepted},
		{name: "reject sent", kind: KindQuote, from: StatusSent, event: EventReject, to: StatusRejected},
		{name: "fulfill accepted order", kind: KindOrder, from: StatusAccepted, event: EventFulfill, to: StatusDelivered},
		{name: "send sent", kind: KindQuote, from: StatusSent, event: EventSend, errors: true},
		{name: "accept draft", kind: KindQuote, from: StatusDraft, event: EventAccept, errors: true},
		{name: "accept rejected", kind: KindQuote, from: StatusRejected, event: EventAccept, errors: true},
		{name: "reject accepted", kind: KindOrder, from: StatusAccepted, event: EventReject, errors: true},
		{name: "fulfill sent order", kind: KindOrder, from: StatusSent, event: EventFulfill, errors: true},
		{name: "fulfill accepted quote", kind: KindQuote, from: StatusAccepted, event: EventFulfill, errors: true},
		{name: "reopen draft", kind: KindQuote, from: StatusDraft, event: EventReopen, errors: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := testDoc(tc.kind, tc.from)
			to, err := Transition(doc, tc.event, now)
			if tc.errors {
				require.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.to, to)
		})
	}
}

func TestEffectiveStatusDerivesExpiry(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	past := timePtr(now.Add(-time.Hour))
	future := timePtr(now.Add(time.Hour))

	sent := testDoc(KindQuote, StatusSent)
	sent.ValidUntil = past
	require.Equal(t, StatusExpired, EffectiveStatus(sent, now))

	sent.ValidUntil = future
	require.Equal(t, StatusSent, EffectiveStatus(sent, now))

	sent.ValidUntil = nil
	require.Equal(t, StatusSent, EffectiveStatus(sent, now))

	draft := testDoc(KindQuote, StatusDraft)
	draft.ValidUntil = past
	require.Equal(t, StatusDraft, EffectiveStatus(draft, now))

	rejected := testDoc(KindQuote, StatusRejected)
	rejected.ValidUntil = past
	require.Equal(t, StatusRejected, EffectiveStatus(rejected, now))

	delivered := testDoc(KindOrder, StatusDelivered)
	delivered.ValidUntil = past
	require.Equal(t, StatusExpired, EffectiveStatus(delivered, now))
}

func TestExpiryBoundaryIsInclusive(t *testing.T) {
	deadline := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	doc := testDoc(KindQuote, StatusSent)
	doc.ValidUntil = &deadline

	require.False(t, IsExpired(doc, deadline))
	require.True(t, IsExpired(doc, deadline.Add(time.Nanosecond)))
}

func TestTransitionFromExpired(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	doc := testDoc(KindQuote, StatusSent)
	doc.ValidUntil = timePtr(now.Add(-time.Minute))

	_, err := Transition(doc, EventAccept, now)
	require.ErrorIs(t, err, ErrInvalidTransition)

	var tErr *InvalidTransitionError
	require.ErrorAs(t, err, &tErr)
	require.Equal(t, StatusExpired, tErr.From)
}

func TestCanConvert(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	require.ErrorIs(t, CanConvert(testDoc(KindQuote, StatusDraft), now), ErrInvalidTransition)
	require.NoError(t, CanConvert(testDoc(KindQuote, StatusSent), now))
	require.NoError(t, CanConvert(testDoc(KindQuote, StatusAccepted), now))
	require.NoError(t, CanConvert(testDoc(KindOrder, StatusDelivered), now))
	require.ErrorIs(t, CanConvert(testDoc(KindQuote, StatusRejected), now), ErrInvalidTransition)

	expired := testDoc(KindQuote, StatusSent)
	expired.ValidUntil = timePtr(now.Add(-time.Hour))
	require.ErrorIs(t, CanConvert(expired, now), ErrInvalidTransition)

	converted := testDoc(KindQuote, StatusAccepted)
	converted.ConvertedInvoiceID = strPtr("inv-1")
	require.ErrorIs(t, CanConvert(converted, now), ErrAlreadyConverted)
}

func TestCanEdit(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, CanEdit(testDoc(KindQuote, StatusDraft), now))
	require.ErrorIs(t, CanEdit(testDoc(KindQuote, StatusSent), now), ErrNotEditable)
	require.ErrorIs(t, CanEdit(testDoc(KindQuote, StatusRejected), now), ErrNotEditable)

	converted := testDoc(KindQuote, StatusDraft)
	converted.ConvertedInvoiceID = strPtr("inv-1")
	require.ErrorIs(t, CanEdit(converted, now), ErrAlreadyConverted)
}

func TestCheckReopen(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	future := now.Add(72 * time.Hour)

	live := testDoc(KindQuote, StatusSent)
	live.ValidUntil = timePtr(now.Add(time.Hour))
	require.ErrorIs(t, CheckReopen(live, future, now), ErrInvalidTransition)

	expired := testDoc(KindQuote, StatusSent)
	expired.ValidUntil = timePtr(now.Add(-time.Hour))
	require.NoError(t, CheckReopen(expired, future, now))
	require.ErrorIs(t, CheckReopen(expired, now.Add(-time.Minute), now), ErrInvalidReopenDate)
	require.ErrorIs(t, CheckReopen(expired, now, now), ErrInvalidReopenDate)

	converted := testDoc(KindQuote, StatusSent)
	converted.ValidUntil = timePtr(now.Add(-time.Hour))
	converted.ConvertedInvoiceID = strPtr("inv-1")
	require.ErrorIs(t, CheckReopen(converted, future, now), ErrAlreadyConverted)
}

func TestRejectRecorder(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	var rec Recorder

	doc := testDoc(KindQuote, StatusSent)
	require.ErrorIs(t, rec.Reject(doc, 7, "   ", now), ErrMissingRejectionReason)
	require.Equal(t, StatusSent, doc.Status)

	require.NoError(t, rec.Reject(doc, 7, "  price too high  ", now))
	require.Equal(t, StatusRejected, doc.Status)
	require.NotNil(t, doc.RejectionReason)
	require.Equal(t, "price too high", *doc.RejectionReason)
	require.NotNil(t, doc.RejectedBy)
	require.Equal(t, int64(7), *doc.RejectedBy)
	require.True(t, errors.Is(rec.Reject(doc, 7, "again", now), ErrInvalidTransition))
}
