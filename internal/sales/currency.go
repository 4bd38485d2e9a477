package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// rateScale is the precision exchange rates are carried at. Rates are never
// rounded before multiplication.
const rateScale = 6

// defaultMinorUnits applies when a currency is unknown to the CLDR tables.
const defaultMinorUnits = 2

// RateSource supplies exchange rates from the organization's rate store.
type RateSource interface {
	Rate(ctx context.Context, code string, asOf time.Time) (decimal.Decimal, error)
}

// Calculator converts a document's native-currency total into the
// base-currency equivalent using the document's frozen rate snapshot.
type Calculator struct {
	systemCurrency string
	minorUnits     int32
}

// NewCalculator constructs a calculator for the organization's base currency.
func NewCalculator(systemCurrency string) *Calculator {
	return &Calculator{
		systemCurrency: systemCurrency,
		minorUnits:     minorUnits(systemCurrency),
	}
}

// SystemCurrency returns the base currency code.
func (c *Calculator) SystemCurrency() string {
	return c.systemCurrency
}

// ValidateRate checks that a rate is positive and carries at most six
// fractional digits.
func ValidateRate(rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return fmt.Errorf("%w: exchange rate must be positive", ErrValidation)
	}
	if rate.Exponent() < -rateScale {
		return fmt.Errorf("%w: exchange rate precision exceeds %d decimals", ErrValidation, rateScale)
	}
	return nil
}

// Equivalent computes total × rate rounded half-up to the base currency's
// minor-unit precision. The rate participates at full precision.
func (c *Calculator) Equivalent(total, rate decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateRate(rate); err != nil {
		return decimal.Zero, err
	}
	if total.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: total amount must not be negative", ErrValidation)
	}
	// decimal.Round is half away from zero, which equals half-up for the
	// non-negative amounts produced here.
	return total.Mul(rate).Round(c.minorUnits), nil
}

// minorUnits looks up the minor-unit scale for an ISO 4217 code.
func minorUnits(code string) int32 {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return defaultMinorUnits
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// SumLines recomputes line totals and the document total from quantities and
// unit prices. Quantities must be positive, unit prices non-negative.
func SumLines(lines []LineItem) (decimal.Decimal, error) {
	total := decimal.Zero
	for i := range lines {
		if !lines[i].Quantity.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: line %d quantity must be positive", ErrValidation, i+1)
		}
		if lines[i].UnitPrice.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: line %d unit price must not be negative", ErrValidation, i+1)
		}
		lines[i].LineTotal = lines[i].Quantity.Mul(lines[i].UnitPrice)
		total = total.Add(lines[i].LineTotal)
	}
	return total, nil
}
