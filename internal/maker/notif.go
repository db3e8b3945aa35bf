package maker

import "github.com/klingon-exchange/n3xb-core/internal/trade"

// Notif is the application-facing notification a Maker actor emits:
// either a newly received Offer or a routed Peer message.
type Notif interface{ isMakerNotif() }

// OfferNotif wraps a freshly received Offer. Offers accepted into state
// are always notified; rejected ones are notified too unless
// RejectInvalidOffersSilently is set.
type OfferNotif struct{ Envelope trade.OfferEnvelope }

func (OfferNotif) isMakerNotif() {}

// PeerNotif wraps a routed trade-engine-specific peer message.
type PeerNotif struct{ Envelope trade.PeerEnvelope }

func (PeerNotif) isMakerNotif() {}
