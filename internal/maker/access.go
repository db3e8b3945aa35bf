package maker

import "github.com/klingon-exchange/n3xb-core/internal/trade"

// PostNewOrder publishes the Order via Comms and records its event-id
// and observed relays. Errors if the trade is already completed.
func (a *Access) PostNewOrder() error {
	reply := make(chan error, 1)
	a.reqCh <- postNewOrderReq{reply: reply}
	return <-reply
}

// QueryOffers returns a snapshot of every offer received so far, keyed
// by offer event-id.
func (a *Access) QueryOffers() map[string]trade.OfferEnvelope {
	reply := make(chan map[string]trade.OfferEnvelope, 1)
	a.reqCh <- queryOffersReq{reply: reply}
	return <-reply
}

// QueryOffer returns the offer with the given event-id, if any.
func (a *Access) QueryOffer(eventID string) (trade.OfferEnvelope, bool) {
	reply := make(chan queryOfferResult, 1)
	a.reqCh <- queryOfferReq{eventID: eventID, reply: reply}
	res := <-reply
	return res.envelope, res.found
}

// AcceptOffer accepts the offer identified by eventID: rejects every
// other outstanding offer with PendingAnother, accepts this one, and
// deletes the order note.
func (a *Access) AcceptOffer(eventID string) error {
	reply := make(chan error, 1)
	a.reqCh <- acceptOfferReq{eventID: eventID, reply: reply}
	return <-reply
}

// CancelOrder rejects every outstanding offer with Cancelled, deletes the
// order note, and terminates the actor.
func (a *Access) CancelOrder() error {
	reply := make(chan error, 1)
	a.reqCh <- cancelOrderReq{reply: reply}
	return <-reply
}

// SendPeerMessage sends boxed as a trade-engine-specific DM to the
// accepted taker. Requires an accepted offer and a published order.
func (a *Access) SendPeerMessage(boxed trade.EngineSpecifics) error {
	reply := make(chan error, 1)
	a.reqCh <- sendPeerMessageReq{boxed: boxed, reply: reply}
	return <-reply
}

// TradeComplete marks the trade completed. Errors if already completed.
func (a *Access) TradeComplete() error {
	reply := make(chan error, 1)
	a.reqCh <- tradeCompleteReq{reply: reply}
	return <-reply
}

// RegisterNotifTx installs the application's notification channel.
func (a *Access) RegisterNotifTx(tx chan<- Notif) {
	reply := make(chan struct{}, 1)
	a.reqCh <- registerNotifTxReq{tx: tx, reply: reply}
	<-reply
}

// UnregisterNotifTx removes the application's notification channel.
func (a *Access) UnregisterNotifTx() {
	reply := make(chan struct{}, 1)
	a.reqCh <- unregisterNotifTxReq{reply: reply}
	<-reply
}

// Shutdown terminates the actor, unregisters it from the Router, and
// flushes its persister.
func (a *Access) Shutdown() {
	reply := make(chan struct{}, 1)
	a.reqCh <- shutdownReq{reply: reply}
	<-reply
}
