// Package fx supplies exchange rates. The engine snapshots a rate into each
// draft document; historical documents keep their frozen rate even when the
// store later receives newer quotes.
package fx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrRateNotFound indicates no rate is on record for the currency and date.
var ErrRateNotFound = errors.New("exchange rate not found")

// Store reads rates from the fx_rates table.
type Store struct {
	pool           *pgxpool.Pool
	systemCurrency string
}

// NewStore constructs the pgx-backed rate source.
func NewStore(pool *pgxpool.Pool, systemCurrency string) *Store {
	return &Store{pool: pool, systemCurrency: systemCurrency}
}

// Rate returns the most recent rate for the currency not newer than asOf.
// The base currency always converts at 1.
func (s *Store) Rate(ctx context.Context, code string, asOf time.Time) (decimal.Decimal, error) {
	if code == s.systemCurrency {
		return decimal.NewFromInt(1), nil
	}

	var raw string
	err := s.pool.QueryRow(ctx, `
		SELECT rate::text FROM fx_rates
		WHERE currency = $1 AND valid_from <= $2
		ORDER BY valid_from DESC LIMIT 1`, code, asOf).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrRateNotFound, code)
		}
		return decimal.Zero, fmt.Errorf("fx: query rate: %w", err)
	}

	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fx: parse rate: %w", err)
	}
	return rate, nil
}
