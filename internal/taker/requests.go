package taker

import "github.com/klingon-exchange/n3xb-core/internal/trade"

type takeOrderReq struct{ reply chan error }

type queryTradeRspReq struct{ reply chan queryTradeRspResult }

type queryTradeRspResult struct {
	envelope trade.TradeResponseEnvelope
	found    bool
}

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
