package maker

import "github.com/klingon-exchange/n3xb-core/internal/trade"

type postNewOrderReq struct{ reply chan error }

type queryOffersReq struct{ reply chan map[string]trade.OfferEnvelope }

type queryOfferReq struct {
	eventID string
	reply   chan queryOfferResult
}

type queryOfferResult struct {
	envelope trade.OfferEnvelope
	found    bool
}

type acceptOfferReq struct {
	eventID string
	reply   chan error
}

type cancelOrderReq struct{ reply chan error }

type sendPeerMessageReq struct {
	boxed trade.EngineSpecifics
	reply chan error
}

type tradeCompleteReq struct{ reply chan error }

type registerNotifTxReq struct {
	tx    chan<- Notif
	reply chan struct{}
}

type unregisterNotifTxReq struct{ reply chan struct{} }

type shutdownReq struct{ reply chan struct{} }
