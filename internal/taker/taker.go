// Package taker implements the Taker actor: the per-trade task that
// sends one Offer against a Maker's Order, awaits a single TradeResponse,
// and exchanges trade-engine-specific messages through completion.
package taker

import (
	"context"
	"fmt"
	"sync"

	"github.com/klingon-exchange/n3xb-core/internal/comms"
	"github.com/klingon-exchange/n3xb-core/internal/persist"
	"github.com/klingon-exchange/n3xb-core/internal/trade"
	"github.com/klingon-exchange/n3xb-core/pkg/logging"
)

const mailboxDepth = 10

// actor owns every piece of a single trade's Taker state. It is reached
// only through the request channel exposed by Access.
type actor struct {
	comms *comms.Access

	mu   sync.RWMutex
	data TakerData

	persister *persist.Persister[TakerData]
	log       *logging.Logger

	notifTx chan<- Notif

	peerCh chan trade.PeerEnvelope
	reqCh  chan interface{}
}

// Access is a cloneable handle applications use to interact with a
// running Taker actor.
type Access struct {
	reqCh chan<- interface{}
}

// New constructs a fresh Taker actor for order with off as the offer to
// send, registers it on the Comms router under the order's trade-uuid,
// and starts its main loop.
func New(ctx context.Context, c *comms.Access, order trade.OrderEnvelope, off trade.Offer, dataPath string) (*Access, error) {
	return start(ctx, c, newTakerData(order, off), dataPath)
}

// Restore reconstructs a Taker actor from a persisted snapshot at
// dataPath, re-registering on the Comms router under the restored
// trade-uuid.
func Restore(ctx context.Context, c *comms.Access, dataPath string) (*Access, error) {
	var data TakerData
	if err := persist.Restore(dataPath, (TakerData{}).PersistType(), &data); err != nil {
		return nil, fmt.Errorf("restore taker data: %w", err)
	}
	return start(ctx, c, data, dataPath)
}

func start(ctx context.Context, c *comms.Access, data TakerData, dataPath string) (*Access, error) {
	a := &actor{
		comms:  c,
		data:   data,
		log:    logging.GetDefault().Component("taker"),
		peerCh: make(chan trade.PeerEnvelope, mailboxDepth),
		reqCh:  make(chan interface{}, mailboxDepth),
	}
	a.persister = persist.New(dataPath, persist.NewLockedSnapshotter(&a.mu, a.snapshot))

	if err := c.RegisterPeerMessageTx(a.data.OrderEnvelope.Order.TradeUUID, a.peerCh); err != nil {
		a.persister.Terminate()
		return nil, fmt.Errorf("register taker on router: %w", err)
	}

	go a.run(ctx)
	return &Access{reqCh: a.reqCh}, nil
}

func (a *actor) snapshot() TakerData {
	return a.data.clone()
}

func (a *actor) persist() {
	a.persister.Queue()
}

func (a *actor) run(ctx context.Context) {
	for {
		select {
		case req, ok := <-a.reqCh:
			if !ok {
				return
			}
			a.handle(ctx, req)
			if _, isShutdown := req.(shutdownReq); isShutdown {
				return
			}
		case envelope := <-a.peerCh:
			a.handlePeerMessage(envelope)
		}
	}
}

func (a *actor) handle(ctx context.Context, req interface{}) {
	switch r := req.(type) {
	case takeOrderReq:
		r.reply <- a.handleTakeOrder(ctx)

	case queryTradeRspReq:
		a.mu.RLock()
		rsp := a.data.TradeResponse
		a.mu.RUnlock()
		if rsp == nil {
			r.reply <- queryTradeRspResult{}
		} else {
			r.reply <- queryTradeRspResult{envelope: *rsp, found: true}
		}

	case sendPeerMessageReq:
		r.reply <- a.handleSendPeerMessage(ctx, r.boxed)

	case tradeCompleteReq:
		r.reply <- a.handleTradeComplete()

	case registerNotifTxReq:
		a.notifTx = r.tx
		r.reply <- struct{}{}

	case unregisterNotifTxReq:
		a.notifTx = nil
		r.reply <- struct{}{}

	case shutdownReq:
		_ = a.comms.UnregisterPeerMessageTx(a.data.OrderEnvelope.Order.TradeUUID)
		a.persister.Terminate()
		r.reply <- struct{}{}

	default:
		a.log.Warn("taker actor received unrecognized request type")
	}
}

func (a *actor) handleTakeOrder(ctx context.Context) error {
	a.mu.RLock()
	orderEnvelope := a.data.OrderEnvelope
	off := a.data.Offer
	a.mu.RUnlock()

	target := comms.PeerMessageTarget{
		Pubkey:           orderEnvelope.Pubkey,
		RespondingToID:   &orderEnvelope.EventID,
		MakerOrderNoteID: orderEnvelope.EventID,
		TradeUUID:        orderEnvelope.Order.TradeUUID,
	}
	eventID, err := a.comms.SendTakerOfferMessage(target, off)
	if err != nil {
		return fmt.Errorf("take order: %w", err)
	}

	a.mu.Lock()
	a.data.OfferEventID = eventID
	a.mu.Unlock()
	a.persist()
	return nil
}

func (a *actor) handleSendPeerMessage(ctx context.Context, boxed trade.EngineSpecifics) error {
	a.mu.RLock()
	orderEnvelope := a.data.OrderEnvelope
	a.mu.RUnlock()

	target := comms.PeerMessageTarget{
		Pubkey:           orderEnvelope.Pubkey,
		MakerOrderNoteID: orderEnvelope.EventID,
		TradeUUID:        orderEnvelope.Order.TradeUUID,
	}
	_, err := a.comms.SendTradeEngineSpecificMessage(target, boxed)
	return err
}

func (a *actor) handleTradeComplete() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.data.TradeCompleted {
		return fmt.Errorf("taker: trade already completed")
	}
	a.data.TradeCompleted = true
	a.persist()
	return nil
}

func (a *actor) handlePeerMessage(envelope trade.PeerEnvelope) {
	switch envelope.Message.MessageType {
	case trade.MessageTypeTradeResponse:
		a.handleTradeResponse(envelope)
	case trade.MessageTypeTakerOffer:
		a.log.Warn("taker received unexpected TakerOffer, dropping", "event", envelope.EventID)
	case trade.MessageTypeTradeEngineSpecific:
		a.handleTradeEngineSpecific(envelope)
	default:
		a.log.Warn("taker received unrecognized peer message type, dropping")
	}
}

func (a *actor) handleTradeResponse(envelope trade.PeerEnvelope) {
	rsp, err := envelope.Message.DecodeTradeResponse()
	if err != nil {
		a.log.Warn("trade response undecodable, dropping", "error", err)
		return
	}

	a.mu.RLock()
	orderPubkey := a.data.OrderEnvelope.Pubkey
	alreadyStored := a.data.TradeResponse != nil
	ownOfferEventID := a.data.OfferEventID
	a.mu.RUnlock()

	if envelope.Pubkey != orderPubkey {
		a.notify(TradeRspErrorNotif{Err: fmt.Errorf("trade response from unexpected sender %s", envelope.Pubkey)})
		return
	}
	if alreadyStored {
		a.notify(TradeRspErrorNotif{Err: fmt.Errorf("trade response already received")})
		return
	}
	if rsp.OfferEventID != ownOfferEventID {
		a.notify(TradeRspErrorNotif{Err: fmt.Errorf("trade response references unknown offer %s", rsp.OfferEventID)})
		return
	}

	rspEnvelope := trade.TradeResponseEnvelope{
		TradeResponse: *rsp,
		Pubkey:        envelope.Pubkey,
		EventID:       envelope.EventID,
		Relays:        envelope.Relays,
	}

	a.mu.Lock()
	a.data.TradeResponse = &rspEnvelope
	a.mu.Unlock()
	a.persist()

	a.notify(TradeRspNotif{Envelope: rspEnvelope})
}

func (a *actor) handleTradeEngineSpecific(envelope trade.PeerEnvelope) {
	a.mu.RLock()
	orderPubkey := a.data.OrderEnvelope.Pubkey
	a.mu.RUnlock()

	if envelope.Pubkey != orderPubkey {
		a.log.Warn("trade-engine-specific message from unexpected sender, dropping", "sender", envelope.Pubkey)
		return
	}
	a.notify(PeerNotif{Envelope: envelope})
}

func (a *actor) notify(n Notif) {
	if a.notifTx == nil {
		return
	}
	select {
	case a.notifTx <- n:
	default:
		a.log.Warn("notification channel full, dropping notification")
	}
}
