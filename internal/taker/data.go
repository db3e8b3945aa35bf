package taker

import "github.com/klingon-exchange/n3xb-core/internal/trade"

// TakerData is the Taker actor's persisted state.
type TakerData struct {
	Type string `json:"type"`

	OrderEnvelope   trade.OrderEnvelope            `json:"order_envelope"`
	Offer           trade.Offer                    `json:"offer"`
	OfferEventID    string                         `json:"offer_event_id,omitempty"`
	TradeResponse   *trade.TradeResponseEnvelope    `json:"trade_response,omitempty"`
	TradeCompleted  bool                           `json:"trade_completed"`
}

// PersistType implements persist.Typed.
func (d TakerData) PersistType() string { return "taker" }

func newTakerData(order trade.OrderEnvelope, off trade.Offer) TakerData {
	return TakerData{
		Type:          "taker",
		OrderEnvelope: order,
		Offer:         off,
	}
}

// clone deep-copies d for a Persister snapshot.
func (d TakerData) clone() TakerData {
	out := d
	out.OrderEnvelope.Relays = d.OrderEnvelope.Relays.Union(trade.NewRelaySet())
	if d.TradeResponse != nil {
		rsp := *d.TradeResponse
		out.TradeResponse = &rsp
	}
	return out
}
