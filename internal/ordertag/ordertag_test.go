package ordertag

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/n3xb-core/internal/trade"
)

func sampleOrder() trade.Order {
	return trade.Order{
		TradeUUID: trade.NewTradeUUID(),
		MakerObligation: trade.MakerObligationTerms{
			Kinds:  trade.NewObligationSet(trade.Bitcoin("Lightning")),
			Amount: decimal.NewFromInt(100000),
		},
		TakerObligation: trade.TakerObligationTerms{
			Kinds: trade.NewObligationSet(trade.Fiat("USD", "Venmo")),
		},
		TradeDetails: trade.TradeDetails{
			Parameters: trade.NewParameterSet(
				trade.NewParameter(trade.ParamTrustedEscrow),
				trade.NewValuedParameter(trade.ParamTradeTimesOut, "FourDays"),
			),
		},
		EngineName: "n3xb-simple-escrow",
	}
}

func TestEncodeExpandsPrefixChain(t *testing.T) {
	set := EncodeOrder(sampleOrder())

	assert.ElementsMatch(t, []string{"Bitcoin", "Bitcoin-Lightning"}, set[KeyMakerObligations])
	assert.ElementsMatch(t, []string{"Fiat", "Fiat-USD", "Fiat-USD-Venmo"}, set[KeyTakerObligations])
	assert.ElementsMatch(t, []string{"TrustedEscrow", "TradeTimesOut", "TradeTimesOut-FourDays"}, set[KeyParameters])
	assert.Equal(t, []string{EventKindMakerOrder}, set[KeyEventKind])
	assert.Equal(t, []string{ApplicationTag}, set[KeyApplicationTag])
}

func TestDecodeRegroupsToLeaves(t *testing.T) {
	order := sampleOrder()
	set := EncodeOrder(order)

	decoded, err := Decode(set)
	require.NoError(t, err)

	assert.Equal(t, order.TradeUUID.String(), decoded.TradeUUID)
	assert.True(t, decoded.MakerObligations.Contains(trade.Bitcoin("Lightning")))
	assert.False(t, decoded.MakerObligations.Contains(trade.Bitcoin("")))
	assert.True(t, decoded.TakerObligations.Contains(trade.Fiat("USD", "Venmo")))
	assert.True(t, decoded.Parameters.Contains(trade.ParamTrustedEscrow))

	found := false
	for _, p := range decoded.Parameters.Slice() {
		if p.Name == trade.ParamTradeTimesOut {
			assert.Equal(t, "FourDays", p.Value)
			found = true
		}
	}
	assert.True(t, found)
	assert.Equal(t, order.EngineName, decoded.EngineName)
}

func TestDecodeBareCategoryHasNoSubParams(t *testing.T) {
	set := Set{
		KeyTradeUUID:        {"11111111-1111-4111-8111-111111111111"},
		KeyMakerObligations: {"Bitcoin"},
	}
	decoded, err := Decode(set)
	require.NoError(t, err)
	assert.True(t, decoded.MakerObligations.Contains(trade.Bitcoin("")))
}

func TestToRelayFilterMergesSharedKeys(t *testing.T) {
	filters := []FilterTag{
		ObligationFilter(KeyMakerObligations, trade.Bitcoin("")),
		ApplicationTagFilter(),
		EngineNameFilter("n3xb-simple-escrow"),
	}
	out := ToRelayFilter(filters)
	assert.ElementsMatch(t, []string{"Bitcoin"}, out["#m"])
	assert.ElementsMatch(t, []string{ApplicationTag}, out["#d"])
	assert.ElementsMatch(t, []string{"n3xb-simple-escrow"}, out["#n"])
}

func TestDecodeMissingTradeUUIDErrors(t *testing.T) {
	_, err := Decode(Set{})
	assert.Error(t, err)
}
