package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository persists documents. Save and Delete take the version the caller
// loaded; a mismatch at commit time surfaces as ErrConflict.
type Repository interface {
	Create(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id uuid.UUID) (*Document, error)
	Save(ctx context.Context, doc *Document, expectedVersion int64) error
	Delete(ctx context.Context, id uuid.UUID, expectedVersion int64) error
	List(ctx context.Context, req ListDocumentsRequest, now time.Time) ([]Document, int, error)
	NextRefNumber(ctx context.Context, kind Kind, date time.Time) (string, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed document store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const documentColumns = `
	id, kind, ref_number, document_date, customer_id, store_id, status,
	currency, exchange_rate::text, total_amount::text, system_currency, equivalent_amount::text,
	valid_until, rejection_reason,
	sent_by, sent_at, accepted_by, accepted_at, rejected_by, rejected_at, delivered_by, delivered_at,
	converted_invoice_id, converted_invoice_ref,
	version, created_by, created_at, updated_by, updated_at`

func (r *repository) Create(ctx context.Context, doc *Document) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO sales_documents (
				id, kind, ref_number, document_date, customer_id, store_id, status,
				currency, exchange_rate, total_amount, system_currency, equivalent_amount,
				valid_until, version, created_by, created_at, updated_by, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
			doc.ID, doc.Kind, doc.RefNumber, doc.DocumentDate, doc.CustomerID, doc.StoreID, doc.Status,
			doc.Currency, doc.ExchangeRate.String(), doc.TotalAmount.String(), doc.SystemCurrency, doc.EquivalentAmount.String(),
			doc.ValidUntil, doc.Version, doc.CreatedBy, doc.CreatedAt, doc.UpdatedBy, doc.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		return insertLines(ctx, tx, doc.ID, doc.Lines)
	})
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM sales_documents WHERE id = $1`, documentColumns), id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	lines, err := r.loadLines(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.Lines = lines
	return doc, nil
}

func (r *repository) Save(ctx context.Context, doc *Document, expectedVersion int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE sales_documents SET
				document_date = $3, status = $4, currency = $5, exchange_rate = $6,
				total_amount = $7, equivalent_amount = $8, valid_until = $9, rejection_reason = $10,
				sent_by = $11, sent_at = $12, accepted_by = $13, accepted_at = $14,
				rejected_by = $15, rejected_at = $16, delivered_by = $17, delivered_at = $18,
				converted_invoice_id = $19, converted_invoice_ref = $20,
				version = version + 1, updated_by = $21, updated_at = $22
			WHERE id = $1 AND version = $2`,
			doc.ID, expectedVersion,
			doc.DocumentDate, doc.Status, doc.Currency, doc.ExchangeRate.String(),
			doc.TotalAmount.String(), doc.EquivalentAmount.String(), doc.ValidUntil, doc.RejectionReason,
			doc.SentBy, doc.SentAt, doc.AcceptedBy, doc.AcceptedAt,
			doc.RejectedBy, doc.RejectedAt, doc.DeliveredBy, doc.DeliveredAt,
			doc.ConvertedInvoiceID, doc.ConvertedInvoiceRef,
			doc.UpdatedBy, doc.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return r.versionMismatch(ctx, tx, doc.ID)
		}
		doc.Version = expectedVersion + 1

		if _, err := tx.Exec(ctx, `DELETE FROM sales_document_lines WHERE document_id = $1`, doc.ID); err != nil {
			return fmt.Errorf("delete lines: %w", err)
		}
		return insertLines(ctx, tx, doc.ID, doc.Lines)
	})
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID, expectedVersion int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM sales_document_lines WHERE document_id = $1`, id); err != nil {
			return fmt.Errorf("delete lines: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM sales_documents WHERE id = $1 AND version = $2`, id, expectedVersion)
		if err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return r.versionMismatch(ctx, tx, id)
		}
		return nil
	})
}

// versionMismatch distinguishes a missing row from a concurrent update.
func (r *repository) versionMismatch(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sales_documents WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func (r *repository) List(ctx context.Context, req ListDocumentsRequest, now time.Time) ([]Document, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	argPos := 1

	add := func(cond string, val interface{}) {
		conditions = append(conditions, fmt.Sprintf(cond, argPos))
		args = append(args, val)
		argPos++
	}

	if req.Kind != nil {
		add("kind = $%d", *req.Kind)
	}
	if req.CustomerID != nil {
		add("customer_id = $%d", *req.CustomerID)
	}
	if req.StoreID != nil {
		add("store_id = $%d", *req.StoreID)
	}
	if req.DateFrom != nil {
		add("document_date >= $%d", *req.DateFrom)
	}
	if req.DateTo != nil {
		add("document_date <= $%d", *req.DateTo)
	}
	if req.Converted != nil {
		if *req.Converted {
			conditions = append(conditions, "converted_invoice_id IS NOT NULL")
		} else {
			conditions = append(conditions, "converted_invoice_id IS NULL")
		}
	}
	if req.Status != nil {
		// EXPIRED is derived: an expirable stored status plus a passed deadline.
		if *req.Status == StatusExpired {
			conditions = append(conditions, fmt.Sprintf(
				"status IN ('SENT','ACCEPTED','DELIVERED') AND valid_until IS NOT NULL AND valid_until < $%d", argPos))
			args = append(args, now)
			argPos++
		} else {
			add("status = $%d", string(*req.Status))
			conditions = append(conditions, fmt.Sprintf(
				"NOT (status IN ('SENT','ACCEPTED','DELIVERED') AND valid_until IS NOT NULL AND valid_until < $%d)", argPos))
			args = append(args, now)
			argPos++
		}
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM sales_documents %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM sales_documents %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		documentColumns, whereClause, orderClause(req.Sort), argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, *doc)
	}
	return docs, total, rows.Err()
}

// orderClause whitelists sort keys; a leading "-" flips to descending.
func orderClause(sort string) string {
	direction := "ASC"
	if strings.HasPrefix(sort, "-") {
		direction = "DESC"
		sort = sort[1:]
	}
	switch sort {
	case "date":
		return fmt.Sprintf("document_date %s, ref_number %s", direction, direction)
	case "ref":
		return "ref_number " + direction
	case "total":
		return fmt.Sprintf("equivalent_amount %s, ref_number ASC", direction)
	default:
		return "document_date DESC, ref_number DESC"
	}
}

func (r *repository) NextRefNumber(ctx context.Context, kind Kind, date time.Time) (string, error) {
	var seq int64
	period := date.Format("200601")
	err := r.pool.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, period, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq
	`, kind.RefPrefix, period).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("next ref number: %w", err)
	}
	return fmt.Sprintf("%s-%s-%04d", kind.RefPrefix, date.Format("0601"), seq), nil
}

func insertLines(ctx context.Context, tx pgx.Tx, docID uuid.UUID, lines []LineItem) error {
	for _, l := range lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO sales_document_lines (document_id, product_id, description, quantity, unit_price, line_total, line_order)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			docID, l.ProductID, l.Description, l.Quantity.String(), l.UnitPrice.String(), l.LineTotal.String(), l.LineOrder,
		)
		if err != nil {
			return fmt.Errorf("insert line: %w", err)
		}
	}
	return nil
}

func (r *repository) loadLines(ctx context.Context, docID uuid.UUID) ([]LineItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, document_id, product_id, description, quantity::text, unit_price::text, line_total::text, line_order
		FROM sales_document_lines WHERE document_id = $1 ORDER BY line_order, id`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []LineItem
	for rows.Next() {
		var l LineItem
		var description pgtype.Text
		var quantity, unitPrice, lineTotal string
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.ProductID, &description, &quantity, &unitPrice, &lineTotal, &l.LineOrder); err != nil {
			return nil, err
		}
		if description.Valid {
			val := description.String
			l.Description = &val
		}
		if l.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("parse quantity: %w", err)
		}
		if l.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, fmt.Errorf("parse unit price: %w", err)
		}
		if l.LineTotal, err = decimal.NewFromString(lineTotal); err != nil {
			return nil, fmt.Errorf("parse line total: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	var exchangeRate, totalAmount, equivalentAmount string
	var validUntil, sentAt, acceptedAt, rejectedAt, deliveredAt pgtype.Timestamptz
	var rejectionReason, convertedID, convertedRef pgtype.Text
	var sentBy, acceptedBy, rejectedBy, deliveredBy pgtype.Int8

	err := row.Scan(
		&d.ID, &d.Kind, &d.RefNumber, &d.DocumentDate, &d.CustomerID, &d.StoreID, &d.Status,
		&d.Currency, &exchangeRate, &totalAmount, &d.SystemCurrency, &equivalentAmount,
		&validUntil, &rejectionReason,
		&sentBy, &sentAt, &acceptedBy, &acceptedAt, &rejectedBy, &rejectedAt, &deliveredBy, &deliveredAt,
		&convertedID, &convertedRef,
		&d.Version, &d.CreatedBy, &d.CreatedAt, &d.UpdatedBy, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if d.ExchangeRate, err = decimal.NewFromString(exchangeRate); err != nil {
		return nil, fmt.Errorf("parse exchange rate: %w", err)
	}
	if d.TotalAmount, err = decimal.NewFromString(totalAmount); err != nil {
		return nil, fmt.Errorf("parse total amount: %w", err)
	}
	if d.EquivalentAmount, err = decimal.NewFromString(equivalentAmount); err != nil {
		return nil, fmt.Errorf("parse equivalent amount: %w", err)
	}

	if validUntil.Valid {
		val := validUntil.Time
		d.ValidUntil = &val
	}
	if rejectionReason.Valid {
		val := rejectionReason.String
		d.RejectionReason = &val
	}
	if sentBy.Valid {
		val := sentBy.Int64
		d.SentBy = &val
	}
	if sentAt.Valid {
		val := sentAt.Time
		d.SentAt = &val
	}
	if acceptedBy.Valid {
		val := acceptedBy.Int64
		d.AcceptedBy = &val
	}
	if acceptedAt.Valid {
		val := acceptedAt.Time
		d.AcceptedAt = &val
	}
	if rejectedBy.Valid {
		val := rejectedBy.Int64
		d.RejectedBy = &val
	}
	if rejectedAt.Valid {
		val := rejectedAt.Time
		d.RejectedAt = &val
	}
	if deliveredBy.Valid {
		val := deliveredBy.Int64
		d.DeliveredBy = &val
	}
	if deliveredAt.Valid {
		val := deliveredAt.Time
		d.DeliveredAt = &val
	}
	if convertedID.Valid {
		val := convertedID.String
		d.ConvertedInvoiceID = &val
	}
	if convertedRef.Valid {
		val := convertedRef.String
		d.ConvertedInvoiceRef = &val
	}
	return &d, nil
}
