package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Monetary amounts are shopspring decimals end to end. Balances persist
// with 4 decimal places, prices with 10.
const (
	BalancePlaces = 4
	PricePlaces   = 10
)

// FeeQuote is the split computed once at transaction creation. Settlement
// reads the stored quote back instead of recomputing it, so the amount
// quoted to the user and the amount moved at settlement always match.
type FeeQuote struct {
	FeePercent  decimal.Decimal `json:"fee_percent"`
	FeeAmount   decimal.Decimal `json:"fee_amount"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	GrossAmount decimal.Decimal `json:"gross_amount"`
}

// QuoteAddOnFee prices a fee charged on top of the base amount: the payer
// owes base+fee, the record keeps the base. Used for merchant deposits.
func QuoteAddOnFee(base, rate decimal.Decimal) FeeQuote {
	fee := base.Mul(rate).Round(BalancePlaces)
	return FeeQuote{
		FeePercent:  rate.Mul(decimal.NewFromInt(100)),
		FeeAmount:   fee,
		NetAmount:   base,
		GrossAmount: base.Add(fee),
	}
}

// QuoteDeductedFee prices a fee taken out of the gross amount: the payer
// parts with gross, the receiving side is paid gross-fee. Used for P2P
// withdrawals.
func QuoteDeductedFee(gross, rate decimal.Decimal) FeeQuote {
	fee := gross.Mul(rate).Round(BalancePlaces)
	return FeeQuote{
		FeePercent:  rate.Mul(decimal.NewFromInt(100)),
		FeeAmount:   fee,
		NetAmount:   gross.Sub(fee),
		GrossAmount: gross,
	}
}

// SwapReturn computes the settlement payout for a time-delayed swap.
//
//	toAmount   = amount * fromPriceNow / originalToPrice
//	backAmount = toAmount * toPriceNow / backPriceNow
//
// The first leg converts at the destination price frozen when the swap was
// created; the second liquidates at live prices. Profit or loss is therefore
// a pure function of destination-asset drift between the two instants.
func SwapReturn(amount, fromPriceNow, originalToPrice, toPriceNow, backPriceNow decimal.Decimal) (toAmount, backAmount decimal.Decimal, err error) {
	if originalToPrice.IsZero() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("original destination price is zero")
	}
	if backPriceNow.IsZero() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("return asset price is zero")
	}
	toAmount = amount.Mul(fromPriceNow).Div(originalToPrice)
	backAmount = toAmount.Mul(toPriceNow).Div(backPriceNow).Round(BalancePlaces)
	return toAmount, backAmount, nil
}

// FormatUSD renders an amount the way notifications show it.
func FormatUSD(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
