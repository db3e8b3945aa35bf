// Package router dispatches decoded inbound PeerEnvelopes to the Maker or
// Taker actor that owns the corresponding trade. It is owned exclusively
// by the Comms actor's main loop and is never touched from any other
// goroutine, so it needs no internal locking.
package router

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/klingon-exchange/n3xb-core/internal/trade"
)

// Router maps trade UUIDs to the channel the owning actor reads inbound
// peer messages from, plus an optional fallback for trade UUIDs with no
// registered owner (e.g. a freshly received Offer for an Order that has
// not yet spawned a Maker).
type Router struct {
	channels map[uuid.UUID]chan<- trade.PeerEnvelope
	fallback chan<- trade.PeerEnvelope
}

// New builds an empty Router.
func New() *Router {
	return &Router{channels: make(map[uuid.UUID]chan<- trade.PeerEnvelope)}
}

// Register associates tradeUUID with tx. Returns an error if a channel is
// already registered for that trade.
func (r *Router) Register(tradeUUID uuid.UUID, tx chan<- trade.PeerEnvelope) error {
	if _, ok := r.channels[tradeUUID]; ok {
		return fmt.Errorf("router: trade %s already registered", tradeUUID)
	}
	r.channels[tradeUUID] = tx
	return nil
}

// Unregister removes the channel for tradeUUID. Returns an error if none
// was registered.
func (r *Router) Unregister(tradeUUID uuid.UUID) error {
	if _, ok := r.channels[tradeUUID]; !ok {
		return fmt.Errorf("router: trade %s not registered", tradeUUID)
	}
	delete(r.channels, tradeUUID)
	return nil
}

// RegisterFallback installs tx as the catch-all destination for messages
// naming a trade UUID with no registered owner.
func (r *Router) RegisterFallback(tx chan<- trade.PeerEnvelope) {
	r.fallback = tx
}

// UnregisterFallback removes the fallback destination.
func (r *Router) UnregisterFallback() {
	r.fallback = nil
}

// HandlePeerMessage builds a PeerEnvelope from the decoded message and its
// wire provenance, then routes it to the per-trade channel if one is
// registered, else the fallback, else returns an error.
func (r *Router) HandlePeerMessage(pubkey trade.Pubkey, eventID string, relays trade.RelaySet, msg trade.PeerMessage) error {
	envelope := trade.PeerEnvelope{
		Pubkey:  pubkey,
		EventID: eventID,
		Relays:  relays,
		Message: msg,
	}

	if tx, ok := r.channels[msg.TradeUUID]; ok {
		tx <- envelope
		return nil
	}
	if r.fallback != nil {
		r.fallback <- envelope
		return nil
	}
	return fmt.Errorf("router: no channel registered for trade %s", msg.TradeUUID)
}
