package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSent      Status = "SENT"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusExpired   Status = "EXPIRED"
	StatusDelivered Status = "DELIVERED"
)

type Event string

const (
	EventSend    Event = "send"
	EventAccept  Event = "accept"
	EventReject  Event = "reject"
	EventFulfill Event = "fulfill"
	EventReopen  Event = "reopen"
	EventConvert Event = "convert"
	EventEdit    Event = "edit"
	EventDelete  Event = "delete"
	EventView    Event = "view"
	EventCreate  Event = "create"
)

// Kind describes one concrete document variant. The two variants share the
// state machine; the descriptor carries what differs between them.
type Kind struct {
	Name         string
	RefPrefix    string
	HasDelivered bool
	Capabilities map[Event]string
}

var (
	KindQuote = Kind{
		Name:      "QUOTE",
		RefPrefix: "QT",
		Capabilities: map[Event]string{
			EventView:    "sales.quote.view",
			EventCreate:  "sales.quote.create",
			EventEdit:    "sales.quote.edit",
			EventDelete:  "sales.quote.delete",
			EventSend:    "sales.quote.send",
			EventAccept:  "sales.quote.accept",
			EventReject:  "sales.quote.reject",
			EventReopen:  "sales.quote.reopen",
			EventConvert: "sales.quote.convert",
		},
	}

	KindOrder = Kind{
		Name:         "ORDER",
		RefPrefix:    "SO",
		HasDelivered: true,
		Capabilities: map[Event]string{
			EventView:    "sales.order.view",
			EventCreate:  "sales.order.create",
			EventEdit:    "sales.order.edit",
			EventDelete:  "sales.order.delete",
			EventSend:    "sales.order.send",
			EventAccept:  "sales.order.accept",
			EventReject:  "sales.order.reject",
			EventFulfill: "sales.order.fulfill",
			EventReopen:  "sales.order.reopen",
			EventConvert: "sales.order.convert",
		},
	}
)

// KindByName resolves a stored kind name to its descriptor.
func KindByName(name string) (Kind, bool) {
	switch name {
	case KindQuote.Name:
		return KindQuote, true
	case KindOrder.Name:
		return KindOrder, true
	}
	return Kind{}, false
}

type LineItem struct {
	ID          int64           `json:"id" db:"id"`
	DocumentID  uuid.UUID       `json:"document_id" db:"document_id"`
	ProductID   int64           `json:"product_id" db:"product_id"`
	Description *string         `json:"description,omitempty" db:"description"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total" db:"line_total"`
	LineOrder   int             `json:"line_order" db:"line_order"`
}

// Document is the shared representation of a quote or an order.
//
// ExchangeRate and EquivalentAmount form the currency snapshot: they are
// recomputed on every draft edit and frozen the moment the document is sent.
// ConvertedInvoiceID is orthogonal to Status; a SENT, ACCEPTED or DELIVERED
// document may simultaneously be converted.
type Document struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Kind         string    `json:"kind" db:"kind"`
	RefNumber    string    `json:"ref_number" db:"ref_number"`
	DocumentDate time.Time `json:"document_date" db:"document_date"`
	CustomerID   int64     `json:"customer_id" db:"customer_id"`
	StoreID      int64     `json:"store_id" db:"store_id"`
	Status       Status    `json:"status" db:"status"`

	Currency         string          `json:"currency" db:"currency"`
	ExchangeRate     decimal.Decimal `json:"exchange_rate" db:"exchange_rate"`
	TotalAmount      decimal.Decimal `json:"total_amount" db:"total_amount"`
	SystemCurrency   string          `json:"system_currency" db:"system_currency"`
	EquivalentAmount decimal.Decimal `json:"equivalent_amount" db:"equivalent_amount"`

	ValidUntil      *time.Time `json:"valid_until,omitempty" db:"valid_until"`
	RejectionReason *string    `json:"rejection_reason,omitempty" db:"rejection_reason"`

	SentBy      *int64     `json:"sent_by,omitempty" db:"sent_by"`
	SentAt      *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	AcceptedBy  *int64     `json:"accepted_by,omitempty" db:"accepted_by"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty" db:"accepted_at"`
	RejectedBy  *int64     `json:"rejected_by,omitempty" db:"rejected_by"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty" db:"rejected_at"`
	DeliveredBy *int64     `json:"delivered_by,omitempty" db:"delivered_by"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`

	ConvertedInvoiceID  *string `json:"converted_invoice_id,omitempty" db:"converted_invoice_id"`
	ConvertedInvoiceRef *string `json:"converted_invoice_ref,omitempty" db:"converted_invoice_ref"`

	Version   int64     `json:"version" db:"version"`
	CreatedBy int64     `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedBy int64     `json:"updated_by" db:"updated_by"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	Lines []LineItem `json:"lines,omitempty" db:"-"`
}

// Converted reports whether a successful conversion has produced an invoice.
func (d *Document) Converted() bool {
	return d.ConvertedInvoiceID != nil && *d.ConvertedInvoiceID != ""
}

// KindDescriptor resolves the document's kind descriptor.
func (d *Document) KindDescriptor() Kind {
	k, _ := KindByName(d.Kind)
	return k
}

type LineInput struct {
	ProductID   int64   `json:"product_id" validate:"required,gt=0"`
	Description *string `json:"description,omitempty"`
	Quantity    float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	LineOrder   int     `json:"line_order" validate:"gte=0"`
}

type CreateDocumentRequest struct {
	Kind         string      `json:"kind" validate:"required,oneof=QUOTE ORDER"`
	DocumentDate time.Time   `json:"document_date" validate:"required"`
	CustomerID   int64       `json:"customer_id" validate:"required,gt=0"`
	StoreID      int64       `json:"store_id" validate:"required,gt=0"`
	Currency     string      `json:"currency" validate:"required,len=3"`
	ValidUntil   *time.Time  `json:"valid_until,omitempty"`
	Lines        []LineInput `json:"lines" validate:"required,min=1,dive"`
}

type EditDocumentRequest struct {
	DocumentDate *time.Time   `json:"document_date,omitempty"`
	Currency     *string      `json:"currency,omitempty" validate:"omitempty,len=3"`
	ValidUntil   *time.Time   `json:"valid_until,omitempty"`
	Lines        *[]LineInput `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
}

type ListDocumentsRequest struct {
	Kind       *string    `json:"kind,omitempty" validate:"omitempty,oneof=QUOTE ORDER"`
	Status     *Status    `json:"status,omitempty"`
	CustomerID *int64     `json:"customer_id,omitempty"`
	StoreID    *int64     `json:"store_id,omitempty"`
	DateFrom   *time.Time `json:"date_from,omitempty"`
	DateTo     *time.Time `json:"date_to,omitempty"`
	Converted  *bool      `json:"converted,omitempty"`
	Sort       string     `json:"sort,omitempty" validate:"omitempty,oneof=date -date ref -ref total -total"`
	Limit      int        `json:"limit" validate:"gte=0,lte=1000"`
	Offset     int        `json:"offset" validate:"gte=0"`
}

type ImportResult struct {
	Index     int        `json:"index"`
	ID        *uuid.UUID `json:"id,omitempty"`
	RefNumber string     `json:"ref_number,omitempty"`
	Error     string     `json:"error,omitempty"`
}
