// Package offer validates a concrete Offer against the Order it proposes
// to fulfil.
package offer

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/klingon-exchange/n3xb-core/internal/trade"
)

// tolerance is the ±0.1% slack allowed on bond and rate arithmetic.
var tolerance = decimal.NewFromFloat(0.001)

// Validate runs the eight sequential checks against order in order,
// returning the first failing reason. A zero RejectReason means the offer
// validates.
func Validate(order trade.Order, off trade.Offer) trade.RejectReason {
	if !order.MakerObligation.Kinds.Contains(off.MakerObligation.Kind) {
		return trade.RejectMakerObligationKindInvalid
	}

	if order.MakerObligation.AmountMin != nil {
		min := *order.MakerObligation.AmountMin
		if off.MakerObligation.Amount.LessThan(min) || off.MakerObligation.Amount.GreaterThan(order.MakerObligation.Amount) {
			return trade.RejectMakerObligationAmountInvalid
		}
	} else if !off.MakerObligation.Amount.Equal(order.MakerObligation.Amount) {
		return trade.RejectMakerObligationAmountInvalid
	}

	transactedSats, err := transactedSatAmount(off)
	if err != nil {
		return trade.RejectTransactedSatAmountFractional
	}

	if reason := checkBond(order.TradeDetails.MakerBondPct, off.MakerObligation.BondAmount, transactedSats,
		trade.RejectMakerBondInvalid); reason != "" {
		return reason
	}

	if !order.TakerObligation.Kinds.Contains(off.TakerObligation.Kind) {
		return trade.RejectTakerObligationKindInvalid
	}

	if order.TakerObligation.LimitRate != nil {
		expected := off.MakerObligation.Amount.Mul(*order.TakerObligation.LimitRate)
		if !withinTolerance(off.TakerObligation.Amount, expected) {
			return trade.RejectTakerObligationAmountInvalid
		}
	}

	if off.MarketOracleUsed != nil {
		return trade.RejectMarketOracleInvalid
	}

	if reason := checkBond(order.TradeDetails.TakerBondPct, off.TakerObligation.BondAmount, transactedSats,
		trade.RejectTakerBondInvalid); reason != "" {
		return reason
	}

	var offerPow uint64
	if off.PowDifficulty != nil {
		offerPow = *off.PowDifficulty
	}
	if offerPow < order.PowDifficulty {
		return trade.RejectPowTooHigh
	}

	return ""
}

// checkBond validates a bond amount against a configured percentage of the
// transacted sat amount, symmetric between maker and taker.
func checkBond(pct *int, bondAmount *decimal.Decimal, transactedSats decimal.Decimal, onFail trade.RejectReason) trade.RejectReason {
	if pct == nil {
		if bondAmount != nil {
			return onFail
		}
		return ""
	}
	if bondAmount == nil {
		return onFail
	}
	expected := transactedSats.Mul(decimal.NewFromInt(int64(*pct))).Div(decimal.NewFromInt(100))
	if !withinTolerance(*bondAmount, expected) {
		return onFail
	}
	return ""
}

// transactedSatAmount returns the Bitcoin-side obligation amount of the
// offer, erroring if it is not integer-valued (fractional satoshis).
func transactedSatAmount(off trade.Offer) (decimal.Decimal, error) {
	var amount decimal.Decimal
	switch {
	case off.MakerObligation.Kind.Category == trade.CategoryBitcoin:
		amount = off.MakerObligation.Amount
	case off.TakerObligation.Kind.Category == trade.CategoryBitcoin:
		amount = off.TakerObligation.Amount
	default:
		return decimal.Zero, fmt.Errorf("offer: neither side is a Bitcoin obligation")
	}
	if !amount.Equal(amount.Truncate(0)) {
		return decimal.Zero, fmt.Errorf("offer: transacted sat amount %s is fractional", amount)
	}
	return amount, nil
}

// withinTolerance reports whether actual is within ±0.1% of expected.
func withinTolerance(actual, expected decimal.Decimal) bool {
	if expected.IsZero() {
		return actual.IsZero()
	}
	diff := actual.Sub(expected).Abs()
	allowed := expected.Abs().Mul(tolerance)
	return diff.LessThanOrEqual(allowed)
}
