package trade

import (
	"encoding/json"
	"sort"
)

// RelaySet is a set of relay URLs an event has been observed on.
type RelaySet map[string]struct{}

// NewRelaySet builds a RelaySet from the given URLs.
func NewRelaySet(urls ...string) RelaySet {
	set := make(RelaySet, len(urls))
	for _, u := range urls {
		set[u] = struct{}{}
	}
	return set
}

// Add inserts a URL into the set.
func (s RelaySet) Add(url string) {
	s[url] = struct{}{}
}

// Union returns a new set containing members of both sets.
func (s RelaySet) Union(other RelaySet) RelaySet {
	out := make(RelaySet, len(s)+len(other))
	for u := range s {
		out[u] = struct{}{}
	}
	for u := range other {
		out[u] = struct{}{}
	}
	return out
}

// Slice returns the set's members in no particular order.
func (s RelaySet) Slice() []string {
	out := make([]string, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	return out
}

// MarshalJSON renders the set as a sorted array of URLs.
func (s RelaySet) MarshalJSON() ([]byte, error) {
	urls := s.Slice()
	sort.Strings(urls)
	return json.Marshal(urls)
}

// UnmarshalJSON rebuilds the set from an array of URLs.
func (s *RelaySet) UnmarshalJSON(data []byte) error {
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return err
	}
	*s = NewRelaySet(urls...)
	return nil
}

// OrderEnvelope is an Order annotated with wire provenance.
type OrderEnvelope struct {
	Order   Order   `json:"order"`
	Pubkey  Pubkey  `json:"pubkey"`
	EventID string  `json:"event_id"`
	Relays  RelaySet `json:"relays"`
}

// OfferEnvelope is an Offer annotated with wire provenance.
type OfferEnvelope struct {
	Offer   Offer    `json:"offer"`
	Pubkey  Pubkey   `json:"pubkey"`
	EventID string   `json:"event_id"`
	Relays  RelaySet `json:"relays"`
}

// TradeResponseEnvelope is a TradeResponse annotated with wire provenance.
type TradeResponseEnvelope struct {
	TradeResponse TradeResponse `json:"trade_response"`
	Pubkey        Pubkey        `json:"pubkey"`
	EventID       string        `json:"event_id"`
	Relays        RelaySet      `json:"relays"`
}
