package comms

import (
	"github.com/google/uuid"

	"github.com/klingon-exchange/n3xb-core/internal/ordertag"
	"github.com/klingon-exchange/n3xb-core/internal/trade"
)

// RelayEntry is one relay registration: a URL and an optional proxy
// address (empty means direct connection).
type RelayEntry struct {
	URL   string
	Proxy string
}

type getPubkeyReq struct{ reply chan trade.Pubkey }

type addRelaysReq struct {
	relays  []RelayEntry
	connect bool
	reply   chan error
}

type removeRelayReq struct {
	url   string
	reply chan error
}

type getRelaysReq struct{ reply chan []RelayEntry }

type connectRelayReq struct {
	url   string
	reply chan error
}

type connectAllReq struct{ reply chan error }

type registerPeerTxReq struct {
	tradeUUID uuid.UUID
	tx        chan<- trade.PeerEnvelope
	reply     chan error
}

type unregisterPeerTxReq struct {
	tradeUUID uuid.UUID
	reply     chan error
}

type registerFallbackReq struct {
	tx    chan<- trade.PeerEnvelope
	reply chan struct{}
}

type unregisterFallbackReq struct{ reply chan struct{} }

type sendMakerOrderNoteReq struct {
	order trade.Order
	reply chan sendMakerOrderNoteResult
}

type sendMakerOrderNoteResult struct {
	envelope trade.OrderEnvelope
	err      error
}

type queryOrdersReq struct {
	filters []ordertag.FilterTag
	reply   chan queryOrdersResult
}

type queryOrdersResult struct {
	envelopes []trade.OrderEnvelope
	err       error
}

type peerMessageTarget struct {
	pubkey           trade.Pubkey
	respondingToID   *string
	makerOrderNoteID string
	tradeUUID        uuid.UUID
}

type sendPeerMessageResult struct {
	eventID string
	err     error
}

type sendTakerOfferReq struct {
	target peerMessageTarget
	offer  trade.Offer
	reply  chan sendPeerMessageResult
}

type sendTradeResponseReq struct {
	target   peerMessageTarget
	response trade.TradeResponse
	reply    chan sendPeerMessageResult
}

type sendEngineSpecificReq struct {
	target peerMessageTarget
	boxed  trade.EngineSpecifics
	reply  chan sendPeerMessageResult
}

type deleteOrderNoteReq struct {
	eventID string
	reply   chan error
}

type shutdownReq struct{ reply chan struct{} }
