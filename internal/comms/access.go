package comms

import (
	"github.com/google/uuid"

	"github.com/klingon-exchange/n3xb-core/internal/ordertag"
	"github.com/klingon-exchange/n3xb-core/internal/trade"
)

// GetPubkey returns the x-only pubkey derived from the identity's secret key.
func (a *Access) GetPubkey() trade.Pubkey {
	reply := make(chan trade.Pubkey, 1)
	a.reqCh <- getPubkeyReq{reply: reply}
	return <-reply
}

// AddRelays registers relays with the relay client and persists them; if
// connect is true, each is also dialed immediately.
func (a *Access) AddRelays(relays []RelayEntry, connect bool) error {
	reply := make(chan error, 1)
	a.reqCh <- addRelaysReq{relays: relays, connect: connect, reply: reply}
	return <-reply
}

// RemoveRelay deregisters a relay from both the client and persisted set.
func (a *Access) RemoveRelay(url string) error {
	reply := make(chan error, 1)
	a.reqCh <- removeRelayReq{url: url, reply: reply}
	return <-reply
}

// GetRelays returns the current relay set.
func (a *Access) GetRelays() []RelayEntry {
	reply := make(chan []RelayEntry, 1)
	a.reqCh <- getRelaysReq{reply: reply}
	return <-reply
}

// ConnectRelay dials a single registered relay. Idempotent.
func (a *Access) ConnectRelay(url string) error {
	reply := make(chan error, 1)
	a.reqCh <- connectRelayReq{url: url, reply: reply}
	return <-reply
}

// ConnectAllRelays dials every registered relay not already connected.
func (a *Access) ConnectAllRelays() error {
	reply := make(chan error, 1)
	a.reqCh <- connectAllReq{reply: reply}
	return <-reply
}

// RegisterPeerMessageTx installs a per-trade channel on the Router.
func (a *Access) RegisterPeerMessageTx(tradeUUID uuid.UUID, tx chan<- trade.PeerEnvelope) error {
	reply := make(chan error, 1)
	a.reqCh <- registerPeerTxReq{tradeUUID: tradeUUID, tx: tx, reply: reply}
	return <-reply
}

// UnregisterPeerMessageTx removes a per-trade channel from the Router.
func (a *Access) UnregisterPeerMessageTx(tradeUUID uuid.UUID) error {
	reply := make(chan error, 1)
	a.reqCh <- unregisterPeerTxReq{tradeUUID: tradeUUID, reply: reply}
	return <-reply
}

// RegisterPeerMessageFallbackTx installs the Router's fallback sink.
func (a *Access) RegisterPeerMessageFallbackTx(tx chan<- trade.PeerEnvelope) {
	reply := make(chan struct{}, 1)
	a.reqCh <- registerFallbackReq{tx: tx, reply: reply}
	<-reply
}

// UnregisterPeerMessageFallbackTx removes the Router's fallback sink.
func (a *Access) UnregisterPeerMessageFallbackTx() {
	reply := make(chan struct{}, 1)
	a.reqCh <- unregisterFallbackReq{reply: reply}
	<-reply
}

// SendMakerOrderNote encodes, tags, mines and publishes order, returning
// the OrderEnvelope with its assigned event-id and observed relays.
func (a *Access) SendMakerOrderNote(order trade.Order) (trade.OrderEnvelope, error) {
	reply := make(chan sendMakerOrderNoteResult, 1)
	a.reqCh <- sendMakerOrderNoteReq{order: order, reply: reply}
	res := <-reply
	return res.envelope, res.err
}

// QueryOrders issues a time-bounded, deduplicated, multi-relay-aware
// query for maker order notes matching filters (scoped to this
// application's own trade-engine name).
func (a *Access) QueryOrders(filters []ordertag.FilterTag) ([]trade.OrderEnvelope, error) {
	reply := make(chan queryOrdersResult, 1)
	a.reqCh <- queryOrdersReq{filters: filters, reply: reply}
	res := <-reply
	return res.envelopes, res.err
}

// PeerMessageTarget identifies the DM recipient and wire-envelope fields
// shared by every outbound peer message.
type PeerMessageTarget struct {
	Pubkey           trade.Pubkey
	RespondingToID   *string
	MakerOrderNoteID string
	TradeUUID        uuid.UUID
}

func (t PeerMessageTarget) toInternal() peerMessageTarget {
	return peerMessageTarget{
		pubkey:           t.Pubkey,
		respondingToID:   t.RespondingToID,
		makerOrderNoteID: t.MakerOrderNoteID,
		tradeUUID:        t.TradeUUID,
	}
}

// SendTakerOfferMessage wraps offer as a TakerOffer peer message,
// encrypts it to target.Pubkey, and sends it as a direct message,
// returning the event-id the message was assigned.
func (a *Access) SendTakerOfferMessage(target PeerMessageTarget, offer trade.Offer) (string, error) {
	reply := make(chan sendPeerMessageResult, 1)
	a.reqCh <- sendTakerOfferReq{target: target.toInternal(), offer: offer, reply: reply}
	res := <-reply
	return res.eventID, res.err
}

// SendTradeResponse wraps rsp as a TradeResponse peer message and sends
// it, returning the event-id the message was assigned.
func (a *Access) SendTradeResponse(target PeerMessageTarget, rsp trade.TradeResponse) (string, error) {
	reply := make(chan sendPeerMessageResult, 1)
	a.reqCh <- sendTradeResponseReq{target: target.toInternal(), response: rsp, reply: reply}
	res := <-reply
	return res.eventID, res.err
}

// SendTradeEngineSpecificMessage wraps boxed as a TradeEngineSpecific peer
// message and sends it, returning the event-id the message was assigned.
func (a *Access) SendTradeEngineSpecificMessage(target PeerMessageTarget, boxed trade.EngineSpecifics) (string, error) {
	reply := make(chan sendPeerMessageResult, 1)
	a.reqCh <- sendEngineSpecificReq{target: target.toInternal(), boxed: boxed, reply: reply}
	res := <-reply
	return res.eventID, res.err
}

// DeleteMakerOrderNote publishes a deletion event referencing eventID.
func (a *Access) DeleteMakerOrderNote(eventID string) error {
	reply := make(chan error, 1)
	a.reqCh <- deleteOrderNoteReq{eventID: eventID, reply: reply}
	return <-reply
}

// Shutdown exits the actor's main loop, shuts down the relay client, and
// terminates CommsData's persister.
func (a *Access) Shutdown() {
	reply := make(chan struct{}, 1)
	a.reqCh <- shutdownReq{reply: reply}
	<-reply
}
