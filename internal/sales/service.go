package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// importConcurrency bounds parallel rows during bulk import.
const importConcurrency = 4

// Authorizer answers capability checks for an actor.
type Authorizer interface {
	CanPerform(ctx context.Context, actor int64, action string) (bool, error)
}

// AuditRecorder persists lifecycle events.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service drives the document lifecycle: it loads the document, asks the
// state machine whether the transition is legal, applies the guards, executes
// the side effects and commits atomically against the loaded version.
type Service struct {
	repo     Repository
	rates    RateSource
	convert  *Converter
	authz    Authorizer
	audit    AuditRecorder
	calc     *Calculator
	rejector Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the engine with its collaborators.
func NewService(repo Repository, rates RateSource, invoicer Invoicer, authz Authorizer, audit AuditRecorder, calc *Calculator, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		rates:   rates,
		convert: NewConverter(invoicer),
		authz:   authz,
		audit:   audit,
		calc:    calc,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) authorize(ctx context.Context, actor int64, kind Kind, ev Event) error {
	action, ok := kind.Capabilities[ev]
	if !ok {
		return fmt.Errorf("%w: %s not permitted for %s", ErrForbidden, ev, kind.Name)
	}
	allowed, err := s.authz.CanPerform(ctx, actor, action)
	if err != nil {
		return fmt.Errorf("capability check: %w", err)
	}
	if !allowed {
		return fmt.Errorf("%w: %s", ErrForbidden, action)
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor int64, ev Event, doc *Document) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   string(ev),
		Entity:   doc.Kind,
		EntityID: doc.ID.String(),
		Meta:     map[string]any{"ref_number": doc.RefNumber, "status": string(doc.Status)},
		At:       s.now(),
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}

func buildLines(inputs []LineInput) []LineItem {
	lines := make([]LineItem, 0, len(inputs))
	for i, in := range inputs {
		line := LineItem{
			ProductID:   in.ProductID,
			Description: in.Description,
			Quantity:    decimal.NewFromFloat(in.Quantity),
			UnitPrice:   decimal.NewFromFloat(in.UnitPrice),
			LineOrder:   in.LineOrder,
		}
		if line.LineOrder == 0 {
			line.LineOrder = i + 1
		}
		lines = append(lines, line)
	}
	return lines
}

// Create opens a new DRAFT document. The exchange rate is fetched fresh and
// recomputed again on every draft edit until the document is sent.
func (s *Service) Create(ctx context.Context, req CreateDocumentRequest, actor int64) (*Document, error) {
	kind, ok := KindByName(req.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: unknown document kind %q", ErrValidation, req.Kind)
	}
	if err := s.authorize(ctx, actor, kind, EventCreate); err != nil {
		return nil, err
	}

	now := s.now()
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: at least one line item required", ErrValidation)
	}
	if req.ValidUntil != nil && !req.ValidUntil.After(now) {
		return nil, fmt.Errorf("%w: valid_until must be in the future", ErrValidation)
	}

	lines := buildLines(req.Lines)
	total, err := SumLines(lines)
	if err != nil {
		return nil, err
	}

	rate, err := s.rates.Rate(ctx, req.Currency, now)
	if err != nil {
		return nil, fmt.Errorf("fetch exchange rate: %w", err)
	}
	equivalent, err := s.calc.Equivalent(total, rate)
	if err != nil {
		return nil, err
	}

	refNumber, err := s.repo.NextRefNumber(ctx, kind, req.DocumentDate)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		ID:               uuid.New(),
		Kind:             kind.Name,
		RefNumber:        refNumber,
		DocumentDate:     req.DocumentDate,
		CustomerID:       req.CustomerID,
		StoreID:          req.StoreID,
		Status:           StatusDraft,
		Currency:         req.Currency,
		ExchangeRate:     rate,
		TotalAmount:      total,
		SystemCurrency:   s.calc.SystemCurrency(),
		EquivalentAmount: equivalent,
		ValidUntil:       req.ValidUntil,
		Version:          1,
		CreatedBy:        actor,
		CreatedAt:        now,
		UpdatedBy:        actor,
		UpdatedAt:        now,
		Lines:            lines,
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	s.record(ctx, actor, EventCreate, doc)
	return doc, nil
}

// Edit mutates a draft. Line items, currency and the exchange-rate snapshot
// are mutable only here; the rate is re-fetched on every edit.
func (s *Service) Edit(ctx context.Context, id uuid.UUID, req EditDocumentRequest, actor int64) (*Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := CanEdit(doc, now); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, doc.KindDescriptor(), EventEdit); err != nil {
		return nil, err
	}

	if req.DocumentDate != nil {
		doc.DocumentDate = *req.DocumentDate
	}
	if req.ValidUntil != nil {
		if !req.ValidUntil.After(now) {
			return nil, fmt.Errorf("%w: valid_until must be in the future", ErrValidation)
		}
		doc.ValidUntil = req.ValidUntil
	}
	if req.Currency != nil {
		doc.Currency = *req.Currency
	}
	if req.Lines != nil {
		if len(*req.Lines) == 0 {
			return nil, fmt.Errorf("%w: at least one line item required", ErrValidation)
		}
		doc.Lines = buildLines(*req.Lines)
	}

	total, err := SumLines(doc.Lines)
	if err != nil {
		return nil, err
	}
	doc.TotalAmount = total

	rate, err := s.rates.Rate(ctx, doc.Currency, now)
	if err != nil {
		return nil, fmt.Errorf("fetch exchange rate: %w", err)
	}
	doc.ExchangeRate = rate
	if doc.EquivalentAmount, err = s.calc.Equivalent(total, rate); err != nil {
		return nil, err
	}

	return s.commit(ctx, doc, actor, EventEdit, now)
}

// Delete removes a never-converted draft.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor int64) error {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	now := s.now()
	if err := CanDelete(doc, now); err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, doc.KindDescriptor(), EventDelete); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, doc.Version); err != nil {
		return err
	}
	s.record(ctx, actor, EventDelete, doc)
	return nil
}

// Send dispatches a draft to the customer and freezes the currency snapshot.
func (s *Service) Send(ctx context.Context, id uuid.UUID, actor int64) (*Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	to, err := Transition(doc, EventSend, now)
	if err != nil {
		return nil, err
	}
	if len(doc.Lines) == 0 {
		return nil, fmt.Errorf("%w: cannot send a document without line items", ErrValidation)
	}
	if !doc.TotalAmount.IsPositive() {
		return nil, fmt.Errorf("%w: cannot send a document with non-positive total", ErrValidation)
	}
	if err := s.authorize(ctx, actor, doc.KindDescriptor(), EventSend); err != nil {
		return nil, err
	}

	doc.Status = to
	if doc.SentBy == nil {
		at := now
		doc.SentBy = &actor
		doc.SentAt = &at
	}
	return s.commit(ctx, doc, actor, EventSend, now)
}

// Accept records the customer's acceptance.
func (s *Service) Accept(ctx context.Context, id uuid.UUID, actor int64) (*Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	to, err := Transition(doc, EventAccept, now)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, doc.KindDescriptor(), EventAccept); err != nil {
		return nil, err
	}

	doc.Status = to
	if doc.AcceptedBy == nil {
		at := now
		doc.AcceptedBy = &actor
		doc.AcceptedAt = &at
	}
	return s.commit(ctx, doc, actor, EventAccept, now)
}

// Reject records the customer's rejection with its mandatory reason.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string, actor int64) (*Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.rejector.Reject(doc, actor, reason, now); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, doc.KindDescriptor(), EventReject); err != nil {
		return nil, err
	}
	return s.commit(ctx, doc, actor, EventReject, now)
}

// Fulfill marks an accepted order as delivered. Quotes have no delivery leg.
func (s *Service) Fulfill(ctx context.Context, id uuid.UUID, actor int64) (*Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	to, err := Transition(doc, EventFulfill, now)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, doc.KindDescriptor(), EventFulfill); err != nil {
		return nil, err
	}

	doc.Status = to
	if doc.DeliveredBy == nil {
		at := now
		doc.DeliveredBy = &actor
		doc.DeliveredAt = &at
	}
	return s.commit(ctx, doc, actor, EventFulfill, now)
}

// Reopen reverses an expired document back to DRAFT with a new, validated
// deadline. The rate snapshot is not refreshed; only a later draft edit is.
func (s *Service) Reopen(ctx context.Context, id uuid.UUID, newValidUntil time.Time, actor int64) (*Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := CheckReopen(doc, newValidUntil, now); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, doc.KindDescriptor(), EventReopen); err != nil {
		return nil, err
	}

	doc.Status = StatusDraft
	doc.ValidUntil = &newValidUntil
	return s.commit(ctx, doc, actor, EventReopen, now)
}

// Convert materializes the document into a standalone invoice. The status is
// unchanged; the stored invoice id makes the document immutable. A second
// call fails fast with ErrAlreadyConverted and creates nothing.
func (s *Service) Convert(ctx context.Context, id uuid.UUID, asOf *time.Time, actor int64) (*Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := CanConvert(doc, now); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, doc.KindDescriptor(), EventConvert); err != nil {
		return nil, err
	}

	invoiceDate := now
	if asOf != nil {
		invoiceDate = *asOf
	}
	if err := s.convert.Convert(ctx, doc, invoiceDate, now); err != nil {
		return nil, err
	}
	return s.commit(ctx, doc, actor, EventConvert, now)
}

// Get loads a document, presenting the derived status.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor int64) (*Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, doc.KindDescriptor(), EventView); err != nil {
		return nil, err
	}
	doc.Status = EffectiveStatus(doc, s.now())
	return doc, nil
}

// List returns documents matching the filter, presenting derived statuses.
// A single "now" is used for the whole request so a document cannot flicker
// between expired and non-expired mid-listing.
func (s *Service) List(ctx context.Context, req ListDocumentsRequest, actor int64) ([]Document, int, error) {
	kinds := []Kind{KindQuote, KindOrder}
	if req.Kind != nil {
		kind, ok := KindByName(*req.Kind)
		if !ok {
			return nil, 0, fmt.Errorf("%w: unknown document kind %q", ErrValidation, *req.Kind)
		}
		kinds = []Kind{kind}
	}
	for _, kind := range kinds {
		if err := s.authorize(ctx, actor, kind, EventView); err != nil {
			return nil, 0, err
		}
	}

	now := s.now()
	docs, total, err := s.repo.List(ctx, req, now)
	if err != nil {
		return nil, 0, err
	}
	for i := range docs {
		docs[i].Status = EffectiveStatus(&docs[i], now)
	}
	return docs, total, nil
}

// Import creates documents in bulk. Rows are independent: one row's failure
// neither aborts nor rolls back another row's success.
func (s *Service) Import(ctx context.Context, rows []CreateDocumentRequest, actor int64) []ImportResult {
	results := make([]ImportResult, len(rows))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(importConcurrency)

	for i, row := range rows {
		g.Go(func() error {
			results[i].Index = i
			doc, err := s.Create(ctx, row, actor)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].ID = &doc.ID
			results[i].RefNumber = doc.RefNumber
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// commit stamps the mutation audit fields and persists against the loaded
// version. A version mismatch surfaces as ErrConflict without partial effect.
func (s *Service) commit(ctx context.Context, doc *Document, actor int64, ev Event, now time.Time) (*Document, error) {
	expected := doc.Version
	doc.UpdatedBy = actor
	doc.UpdatedAt = now
	if err := s.repo.Save(ctx, doc, expected); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("%s %s: %w", ev, doc.RefNumber, ErrConflict)
		}
		return nil, err
	}
	s.record(ctx, actor, ev, doc)
	return doc, nil
}
