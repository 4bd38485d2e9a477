package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceLine is one invoice position built from a document line.
type InvoiceLine struct {
	ProductID   int64           `json:"product_id"`
	Description *string         `json:"description,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// InvoiceRequest is the payload submitted to the invoice-creation collaborator.
// Amounts come from the document's frozen snapshot, never recomputed.
type InvoiceRequest struct {
	SourceRef        string          `json:"source_ref"`
	SourceKind       string          `json:"source_kind"`
	CustomerID       int64           `json:"customer_id"`
	StoreID          int64           `json:"store_id"`
	Currency         string          `json:"currency"`
	ExchangeRate     decimal.Decimal `json:"exchange_rate"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	SystemCurrency   string          `json:"system_currency"`
	EquivalentAmount decimal.Decimal `json:"equivalent_amount"`
	InvoiceDate      time.Time       `json:"invoice_date"`
	Lines            []InvoiceLine   `json:"lines"`
}

// InvoiceResult identifies the invoice created by the collaborator.
type InvoiceResult struct {
	ID  string `json:"id"`
	Ref string `json:"ref"`
}

// Invoicer is the external invoice-creation service.
type Invoicer interface {
	CreateInvoice(ctx context.Context, req InvoiceRequest) (InvoiceResult, error)
}

// Converter materializes an eligible document into a standalone invoice.
// The engine performs no retries: a retry after a confirmed success fails
// fast with ErrAlreadyConverted, a retry after a failed attempt (no invoice
// id stored) is safely repeatable.
type Converter struct {
	invoicer Invoicer
}

// NewConverter constructs the conversion engine.
func NewConverter(invoicer Invoicer) *Converter {
	return &Converter{invoicer: invoicer}
}

// Convert checks eligibility, submits the invoice payload and stamps the
// returned identifiers on the document. The status is left unchanged; the
// caller commits the stamped document atomically.
func (c *Converter) Convert(ctx context.Context, d *Document, asOf time.Time, now time.Time) error {
	if err := CanConvert(d, now); err != nil {
		return err
	}

	lines := make([]InvoiceLine, 0, len(d.Lines))
	for _, l := range d.Lines {
		lines = append(lines, InvoiceLine{
			ProductID:   l.ProductID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			LineTotal:   l.LineTotal,
		})
	}

	res, err := c.invoicer.CreateInvoice(ctx, InvoiceRequest{
		SourceRef:        d.RefNumber,
		SourceKind:       d.Kind,
		CustomerID:       d.CustomerID,
		StoreID:          d.StoreID,
		Currency:         d.Currency,
		ExchangeRate:     d.ExchangeRate,
		TotalAmount:      d.TotalAmount,
		SystemCurrency:   d.SystemCurrency,
		EquivalentAmount: d.EquivalentAmount,
		InvoiceDate:      asOf,
		Lines:            lines,
	})
	if err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}

	d.ConvertedInvoiceID = &res.ID
	d.ConvertedInvoiceRef = &res.Ref
	return nil
}
