package taker

import "github.com/klingon-exchange/n3xb-core/internal/trade"

// TakeOrder sends the stored Offer as a TakerOffer DM to the order's
// pubkey, responding-to the order's event-id, and records the event-id
// the offer message was assigned.
func (a *Access) TakeOrder() error {
	reply := make(chan error, 1)
	a.reqCh <- takeOrderReq{reply: reply}
	return <-reply
}

// QueryTradeRsp returns the stored TradeResponseEnvelope, if any.
func (a *Access) QueryTradeRsp() (trade.TradeResponseEnvelope, bool) {
	reply := make(chan queryTradeRspResult, 1)
	a.reqCh <- queryTradeRspReq{reply: reply}
	res := <-reply
	return res.envelope, res.found
}

// SendPeerMessage sends boxed as a trade-engine-specific DM to the
// order's pubkey.
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
