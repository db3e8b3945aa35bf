package maker

import (
	"github.com/klingon-exchange/n3xb-core/internal/trade"
)

// MakerData is the Maker actor's persisted state.
type MakerData struct {
	Type string `json:"type"`

	Order                       trade.Order                     `json:"order"`
	ObservedRelays              trade.RelaySet                  `json:"observed_relays"`
	OrderEventID                string                          `json:"order_event_id,omitempty"`
	Offers                      map[string]trade.OfferEnvelope  `json:"offers"`
	AcceptedOfferEventID        string                          `json:"accepted_offer_event_id,omitempty"`
	Response                    *trade.TradeResponse            `json:"response,omitempty"`
	ResponseEventID             string                          `json:"response_event_id,omitempty"`
	TradeCompleted              bool                            `json:"trade_completed"`
	RejectInvalidOffersSilently bool                            `json:"reject_invalid_offers_silently"`
}

// PersistType implements persist.Typed.
func (d MakerData) PersistType() string { return "maker" }

func newMakerData(order trade.Order) MakerData {
	return MakerData{
		Type:                        "maker",
		Order:                       order,
		ObservedRelays:              trade.NewRelaySet(),
		Offers:                      make(map[string]trade.OfferEnvelope),
		RejectInvalidOffersSilently: true,
	}
}

// clone deep-copies d for a Persister snapshot.
func (d MakerData) clone() MakerData {
	out := d
	out.ObservedRelays = d.ObservedRelays.Union(trade.NewRelaySet())
	out.Offers = make(map[string]trade.OfferEnvelope, len(d.Offers))
	for k, v := range d.Offers {
		out.Offers[k] = v
	}
	if d.Response != nil {
		rsp := *d.Response
		out.Response = &rsp
	}
	return out
}
