package trade

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OfferObligation is one side (maker or taker) of a concrete Offer.
type OfferObligation struct {
	Kind       ObligationKind   `json:"kind"`
	Amount     decimal.Decimal  `json:"amount"`
	BondAmount *decimal.Decimal `json:"bond_amount,omitempty"`
}

// Offer is the Taker's immutable, concrete proposal to fulfil an Order.
type Offer struct {
	OfferUUID            uuid.UUID        `json:"offer_uuid"`
	MakerObligation       OfferObligation  `json:"maker_obligation"`
	TakerObligation       OfferObligation  `json:"taker_obligation"`
	MarketOracleUsed      *string          `json:"market_oracle_used,omitempty"` // market oracles are not yet supported; presence always rejects
	TradeEngineSpecifics  *EngineSpecifics `json:"trade_engine_specifics,omitempty"`
	PowDifficulty         *uint64          `json:"pow_difficulty,omitempty"`
}
