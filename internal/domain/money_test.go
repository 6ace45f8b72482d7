package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteAddOnFee(t *testing.T) {
	q := QuoteAddOnFee(decimal.NewFromInt(100), decimal.NewFromFloat(0.035))

	assert.Equal(t, "3.5", q.FeePercent.String())
	assert.Equal(t, "3.5", q.FeeAmount.String())
	assert.Equal(t, "100", q.NetAmount.String())
	assert.Equal(t, "103.5", q.GrossAmount.String())
}

func TestQuoteAddOnFeeRounding(t *testing.T) {
	// 33.33 * 0.035 = 1.16655, rounds to 4 places.
	q := QuoteAddOnFee(decimal.NewFromFloat(33.33), decimal.NewFromFloat(0.035))

	assert.Equal(t, "1.1666", q.FeeAmount.String())
	assert.Equal(t, "34.4966", q.GrossAmount.String())
}

func TestQuoteDeductedFee(t *testing.T) {
	q := QuoteDeductedFee(decimal.NewFromInt(200), decimal.NewFromFloat(0.05))

	assert.Equal(t, "5", q.FeePercent.String())
	assert.Equal(t, "10", q.FeeAmount.String())
	assert.Equal(t, "190", q.NetAmount.String())
	assert.Equal(t, "200", q.GrossAmount.String())
}

func TestSwapReturnProfit(t *testing.T) {
	// 1000 settlement units into an asset frozen at 50; by settlement the
	// asset trades at 60, so the position liquidates 20% up.
	toAmount, backAmount, err := SwapReturn(
		decimal.NewFromInt(1000),
		decimal.NewFromInt(1),
		decimal.NewFromInt(50),
		decimal.NewFromInt(60),
		decimal.NewFromInt(1),
	)
	require.NoError(t, err)

	assert.Equal(t, "20", toAmount.String())
	assert.Equal(t, "1200", backAmount.String())
}

func TestSwapReturnLoss(t *testing.T) {
	_, backAmount, err := SwapReturn(
		decimal.NewFromInt(1000),
		decimal.NewFromInt(1),
		decimal.NewFromInt(50),
		decimal.NewFromInt(40),
		decimal.NewFromInt(1),
	)
	require.NoError(t, err)

	assert.Equal(t, "800", backAmount.String())
}

func TestSwapReturnFlatPricesBreakEven(t *testing.T) {
	toAmount, backAmount, err := SwapReturn(
		decimal.NewFromFloat(123.45),
		decimal.NewFromInt(1),
		decimal.NewFromFloat(0.37),
		decimal.NewFromFloat(0.37),
		decimal.NewFromInt(1),
	)
	require.NoError(t, err)

	assert.True(t, backAmount.Equal(decimal.NewFromFloat(123.45)),
		"expected break-even payout, got %s (held %s)", backAmount, toAmount)
}

func TestSwapReturnRejectsZeroPrices(t *testing.T) {
	_, _, err := SwapReturn(decimal.NewFromInt(10), decimal.NewFromInt(1), decimal.Zero, decimal.NewFromInt(1), decimal.NewFromInt(1))
	assert.Error(t, err)

	_, _, err = SwapReturn(decimal.NewFromInt(10), decimal.NewFromInt(1), decimal.NewFromInt(2), decimal.NewFromInt(1), decimal.Zero)
	assert.Error(t, err)
}

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "$1200.00", FormatUSD(decimal.NewFromInt(1200)))
	assert.Equal(t, "$3.50", FormatUSD(decimal.NewFromFloat(3.5)))
}
