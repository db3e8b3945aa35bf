package trade

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MakerObligationTerms describes what the Maker offers and the acceptable
// amount range.
type MakerObligationTerms struct {
	Kinds     ObligationSet    `json:"kinds"`
	AmountMin *decimal.Decimal `json:"amount_min,omitempty"` // nil means the order requires an exact-amount match
	Amount    decimal.Decimal  `json:"amount"`
}

// TakerObligationTerms describes what the Maker wants in return.
type TakerObligationTerms struct {
	Kinds        ObligationSet    `json:"kinds"`
	LimitRate    *decimal.Decimal `json:"limit_rate,omitempty"` // taker.amount / maker.amount, if fixed
	MarketOffset *decimal.Decimal `json:"market_offset,omitempty"`
	MarketOracle *string          `json:"market_oracle,omitempty"`
}

// TradeDetails carries the bond/timeout/parameter terms of a trade.
type TradeDetails struct {
	MakerBondPct *int         `json:"maker_bond_pct,omitempty"` // percent, nil means no maker bond required
	TakerBondPct *int         `json:"taker_bond_pct,omitempty"`
	Parameters   ParameterSet `json:"parameters"`
}

// Order is the Maker's immutable, publicly broadcast trade intent.
type Order struct {
	TradeUUID            uuid.UUID            `json:"trade_uuid"`
	MakerObligation      MakerObligationTerms `json:"maker_obligation"`
	TakerObligation      TakerObligationTerms `json:"taker_obligation"`
	TradeDetails         TradeDetails         `json:"trade_details"`
	EngineName           string               `json:"trade_engine_name"`
	TradeEngineSpecifics *EngineSpecifics     `json:"trade_engine_specifics,omitempty"`
	PowDifficulty        uint64               `json:"pow_difficulty"`
}

// NewTradeUUID generates a fresh v4 trade UUID.
func NewTradeUUID() uuid.UUID {
	return uuid.New()
}
