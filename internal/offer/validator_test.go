package offer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/klingon-exchange/n3xb-core/internal/trade"
)

func baseOrder() trade.Order {
	rate := decimal.NewFromInt(50000)
	return trade.Order{
		TradeUUID: trade.NewTradeUUID(),
		MakerObligation: trade.MakerObligationTerms{
			Kinds:  trade.NewObligationSet(trade.Bitcoin("Lightning")),
			Amount: decimal.NewFromInt(100000),
		},
		TakerObligation: trade.TakerObligationTerms{
			Kinds:     trade.NewObligationSet(trade.Fiat("USD", "")),
			LimitRate: &rate,
		},
		TradeDetails: trade.TradeDetails{
			Parameters: trade.NewParameterSet(),
		},
		EngineName:    "n3xb-simple-escrow",
		PowDifficulty: 8,
	}
}

func baseOffer() trade.Offer {
	pow := uint64(8)
	return trade.Offer{
		OfferUUID: trade.NewTradeUUID(),
		MakerObligation: trade.OfferObligation{
			Kind:   trade.Bitcoin("Lightning"),
			Amount: decimal.NewFromInt(100000),
		},
		TakerObligation: trade.OfferObligation{
			Kind:   trade.Fiat("USD", ""),
			Amount: decimal.NewFromFloat(5000000000), // 100000 sats * 50000
		},
		PowDifficulty: &pow,
	}
}

func TestValidateAccepts(t *testing.T) {
	assert.Equal(t, trade.RejectReason(""), Validate(baseOrder(), baseOffer()))
}

func TestValidateWrongMakerKind(t *testing.T) {
	off := baseOffer()
	off.MakerObligation.Kind = trade.Bitcoin("OnChain")
	assert.Equal(t, trade.RejectMakerObligationKindInvalid, Validate(baseOrder(), off))
}

func TestValidateMakerAmountOutsideRange(t *testing.T) {
	order := baseOrder()
	min := decimal.NewFromInt(50000)
	order.MakerObligation.AmountMin = &min
	off := baseOffer()
	off.MakerObligation.Amount = decimal.NewFromInt(10)
	assert.Equal(t, trade.RejectMakerObligationAmountInvalid, Validate(order, off))
}

func TestValidateMakerAmountExactRequired(t *testing.T) {
	off := baseOffer()
	off.MakerObligation.Amount = decimal.NewFromInt(99999)
	assert.Equal(t, trade.RejectMakerObligationAmountInvalid, Validate(baseOrder(), off))
}

func TestValidateMakerBondWithinTolerance(t *testing.T) {
	order := baseOrder()
	pct := 5
	order.TradeDetails.MakerBondPct = &pct
	off := baseOffer()
	bond := decimal.NewFromInt(100000).Mul(decimal.NewFromInt(5)).Div(decimal.NewFromInt(100))
	// nudge by less than 0.1%
	bond = bond.Mul(decimal.NewFromFloat(1.0005))
	off.MakerObligation.BondAmount = &bond
	assert.Equal(t, trade.RejectReason(""), Validate(order, off))
}

func TestValidateMakerBondOutsideTolerance(t *testing.T) {
	order := baseOrder()
	pct := 5
	order.TradeDetails.MakerBondPct = &pct
	off := baseOffer()
	bond := decimal.NewFromInt(4000) // expected 5000
	off.MakerObligation.BondAmount = &bond
	assert.Equal(t, trade.RejectMakerBondInvalid, Validate(order, off))
}

func TestValidateMakerBondPresentButNotRequired(t *testing.T) {
	off := baseOffer()
	bond := decimal.NewFromInt(100)
	off.MakerObligation.BondAmount = &bond
	assert.Equal(t, trade.RejectMakerBondInvalid, Validate(baseOrder(), off))
}

func TestValidateFractionalSatRejects(t *testing.T) {
	order := baseOrder()
	min := decimal.NewFromInt(50000)
	order.MakerObligation.AmountMin = &min
	off := baseOffer()
	off.MakerObligation.Amount = decimal.NewFromFloat(99999.5)
	assert.Equal(t, trade.RejectTransactedSatAmountFractional, Validate(order, off))
}

func TestValidateTakerKindInvalid(t *testing.T) {
	off := baseOffer()
	off.TakerObligation.Kind = trade.Fiat("EUR", "")
	assert.Equal(t, trade.RejectTakerObligationKindInvalid, Validate(baseOrder(), off))
}

func TestValidateTakerAmountOutsideRate(t *testing.T) {
	off := baseOffer()
	off.TakerObligation.Amount = decimal.NewFromInt(1)
	assert.Equal(t, trade.RejectTakerObligationAmountInvalid, Validate(baseOrder(), off))
}

func TestValidateMarketOracleRejects(t *testing.T) {
	off := baseOffer()
	url := "https://example.com/oracle"
	off.MarketOracleUsed = &url
	assert.Equal(t, trade.RejectMarketOracleInvalid, Validate(baseOrder(), off))
}

func TestValidatePowTooLow(t *testing.T) {
	order := baseOrder()
	order.PowDifficulty = 20
	off := baseOffer()
	low := uint64(4)
	off.PowDifficulty = &low
	assert.Equal(t, trade.RejectPowTooHigh, Validate(order, off))
}
