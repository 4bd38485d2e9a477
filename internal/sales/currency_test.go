package sales

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestEquivalentRoundsHalfUp(t *testing.T) {
	calc := NewCalculator("USD")

	got, err := calc.Equivalent(dec("1000.00"), dec("2.654321"))
	require.NoError(t, err)
	require.True(t, got.Equal(dec("2654.32")), "got %s", got)

	got, err = calc.Equivalent(dec("1.00"), dec("1.005"))
	require.NoError(t, err)
	require.True(t, got.Equal(dec("1.01")), "got %s", got)

	got, err = calc.Equivalent(dec("0"), dec("2.5"))
	require.NoError(t, err)
	require.True(t, got.IsZero())
}

func TestEquivalentMinorUnitsPerCurrency(t *testing.T) {
	jpy := NewCalculator("JPY")
	got, err := jpy.Equivalent(dec("100.50"), dec("1"))
	require.NoError(t, err)
	require.True(t, got.Equal(dec("101")), "got %s", got)

	usd := NewCalculator("USD")
	got, err = usd.Equivalent(dec("100.504"), dec("1"))
	require.NoError(t, err)
	require.True(t, got.Equal(dec("100.50")), "got %s", got)
}

func TestValidateRate(t *testing.T) {
	require.NoError(t, ValidateRate(dec("0.000001")))
	require.NoError(t, ValidateRate(dec("15400.25")))
	require.ErrorIs(t, ValidateRate(dec("0")), ErrValidation)
	require.ErrorIs(t, ValidateRate(dec("-1.5")), ErrValidation)
	require.ErrorIs(t, ValidateRate(dec("0.1234567")), ErrValidation)
}

func TestEquivalentRejectsNegativeTotal(t *testing.T) {
	calc := NewCalculator("USD")
	_, err := calc.Equivalent(dec("-10"), dec("1.5"))
	require.ErrorIs(t, err, ErrValidation)
}

func TestSumLines(t *testing.T) {
	lines := []LineItem{
		{Quantity: dec("2"), UnitPrice: dec("10.25")},
		{Quantity: dec("1.5"), UnitPrice: dec("4")},
	}
	total, err := SumLines(lines)
	require.NoError(t, err)
	require.True(t, total.Equal(dec("26.50")), "got %s", total)
	require.True(t, lines[0].LineTotal.Equal(dec("20.50")))
	require.True(t, lines[1].LineTotal.Equal(dec("6")))

	_, err = SumLines([]LineItem{{Quantity: dec("0"), UnitPrice: dec("1")}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = SumLines([]LineItem{{Quantity: dec("1"), UnitPrice: dec("-1")}})
	require.ErrorIs(t, err, ErrValidation)
}
