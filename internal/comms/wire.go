package comms

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/klingon-exchange/n3xb-core/internal/ordertag"
	"github.com/klingon-exchange/n3xb-core/internal/relay"
	"github.com/klingon-exchange/n3xb-core/internal/trade"
)

// orderNoteContent is the published event body of a maker order note; the
// tag-set built by the ordertag codec carries the queryable subset of the
// same information.
type orderNoteContent struct {
	MakerObligationContent trade.MakerObligationTerms `json:"maker_obligation_content"`
	TakerObligationContent trade.TakerObligationTerms `json:"taker_obligation_content"`
	TradeDetailsContent    trade.TradeDetails         `json:"trade_details_content"`
	TradeEngineSpecifics   *trade.EngineSpecifics     `json:"trade_engine_specifics,omitempty"`
	PowDifficulty          uint64                     `json:"pow_difficulty"`
}

// buildOrderEvent renders order as an unsigned relay.Event: content per
// orderNoteContent, tags per the ordertag codec, kind 30078.
func buildOrderEvent(order trade.Order) (*relay.Event, error) {
	content := orderNoteContent{
		MakerObligationContent: order.MakerObligation,
		TakerObligationContent: order.TakerObligation,
		TradeDetailsContent:    order.TradeDetails,
		TradeEngineSpecifics:   order.TradeEngineSpecifics,
		PowDifficulty:          order.PowDifficulty,
	}
	body, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal order note content: %w", err)
	}

	var tags [][]string
	for _, t := range ordertag.EncodeOrder(order).Slice() {
		tags = append(tags, append([]string{t.Key}, t.Values...))
	}

	return &relay.Event{
		Kind:    relay.EventKindMakerOrder,
		Tags:    tags,
		Content: string(body),
	}, nil
}

// parseOrderEvent reconstructs an Order from a published order-note event.
func parseOrderEvent(event relay.Event) (trade.Order, error) {
	var order trade.Order

	var content orderNoteContent
	if err := json.Unmarshal([]byte(event.Content), &content); err != nil {
		return order, fmt.Errorf("parse order note content: %w", err)
	}

	tagSet := make(ordertag.Set)
	for _, t := range event.Tags {
		if len(t) == 0 {
			continue
		}
		tagSet[t[0]] = t[1:]
	}
	decoded, err := ordertag.Decode(tagSet)
	if err != nil {
		return order, fmt.Errorf("decode order note tags: %w", err)
	}

	tradeUUID, err := uuid.Parse(decoded.TradeUUID)
	if err != nil {
		return order, fmt.Errorf("parse trade uuid %q: %w", decoded.TradeUUID, err)
	}

	order = trade.Order{
		TradeUUID:            tradeUUID,
		MakerObligation:      content.MakerObligationContent,
		TakerObligation:      content.TakerObligationContent,
		TradeDetails:         content.TradeDetailsContent,
		EngineName:           decoded.EngineName,
		TradeEngineSpecifics: content.TradeEngineSpecifics,
		PowDifficulty:        content.PowDifficulty,
	}
	return order, nil
}
