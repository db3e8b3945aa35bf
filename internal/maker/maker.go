// Package maker implements the Maker actor: the per-trade task that posts
// an Order, tracks incoming Offers, accepts or cancels, and exchanges
// trade-engine-specific messages with the accepted Taker through
// completion.
package maker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/klingon-exchange/n3xb-core/internal/comms"
	"github.com/klingon-exchange/n3xb-core/internal/offer"
	"github.com/klingon-exchange/n3xb-core/internal/persist"
	"github.com/klingon-exchange/n3xb-core/internal/trade"
	"github.com/klingon-exchange/n3xb-core/pkg/logging"
)

const mailboxDepth = 10

// actor owns every piece of a single trade's Maker state. It is reached
// only through the request channel exposed by Access.
type actor struct {
	comms *comms.Access

	mu   sync.RWMutex
	data MakerData

	persister *persist.Persister[MakerData]
	log       *logging.Logger

	notifTx chan<- Notif

	peerCh chan trade.PeerEnvelope
	reqCh  chan interface{}
}

// Access is a cloneable handle applications use to interact with a
// running Maker actor.
type Access struct {
	reqCh chan<- interface{}
}

// New constructs a fresh Maker actor for order, registers it on the Comms
// router under the order's trade-uuid, and starts its main loop.
func New(ctx context.Context, c *comms.Access, order trade.Order, dataPath string) (*Access, error) {
	return start(ctx, c, newMakerData(order), dataPath)
}

// Restore reconstructs a Maker actor from a persisted snapshot at
// dataPath, re-registering on the Comms router under the restored
// trade-uuid.
func Restore(ctx context.Context, c *comms.Access, dataPath string) (*Access, error) {
	var data MakerData
	if err := persist.Restore(dataPath, (MakerData{}).PersistType(), &data); err != nil {
		return nil, fmt.Errorf("restore maker data: %w", err)
	}
	return start(ctx, c, data, dataPath)
}

func start(ctx context.Context, c *comms.Access, data MakerData, dataPath string) (*Access, error) {
	a := &actor{
		comms:  c,
		data:   data,
		log:    logging.GetDefault().Component("maker"),
		peerCh: make(chan trade.PeerEnvelope, mailboxDepth),
		reqCh:  make(chan interface{}, mailboxDepth),
	}
	a.persister = persist.New(dataPath, persist.NewLockedSnapshotter(&a.mu, a.snapshot))

	if err := c.RegisterPeerMessageTx(a.data.Order.TradeUUID, a.peerCh); err != nil {
		a.persister.Terminate()
		return nil, fmt.Errorf("register maker on router: %w", err)
	}

	go a.run(ctx)
	return &Access{reqCh: a.reqCh}, nil
}

func (a *actor) snapshot() MakerData {
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
			a.handlePeerMessage(ctx, envelope)
		}
	}
}

func (a *actor) handle(ctx context.Context, req interface{}) {
	switch r := req.(type) {
	case postNewOrderReq:
		r.reply <- a.handlePostNewOrder(ctx)

	case queryOffersReq:
		a.mu.RLock()
		out := make(map[string]trade.OfferEnvelope, len(a.data.Offers))
		for k, v := range a.data.Offers {
			out[k] = v
		}
		a.mu.RUnlock()
		r.reply <- out

	case queryOfferReq:
		a.mu.RLock()
		envelope, found := a.data.Offers[r.eventID]
		a.mu.RUnlock()
		r.reply <- queryOfferResult{envelope: envelope, found: found}

	case acceptOfferReq:
		r.reply <- a.handleAcceptOffer(ctx, r.eventID)

	case cancelOrderReq:
		r.reply <- a.handleCancelOrder(ctx)

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
		_ = a.comms.UnregisterPeerMessageTx(a.data.Order.TradeUUID)
		a.persister.Terminate()
		r.reply <- struct{}{}

	default:
		a.log.Warn("maker actor received unrecognized request type")
	}
}

func (a *actor) handlePostNewOrder(ctx context.Context) error {
	a.mu.RLock()
	completed := a.data.TradeCompleted
	order := a.data.Order
	a.mu.RUnlock()
	if completed {
		return fmt.Errorf("maker: trade already completed")
	}

	envelope, err := a.comms.SendMakerOrderNote(order)
	if err != nil {
		return fmt.Errorf("post order: %w", err)
	}

	a.mu.Lock()
	a.data.OrderEventID = envelope.EventID
	a.data.ObservedRelays = envelope.Relays
	a.mu.Unlock()
	a.persist()
	return nil
}

func (a *actor) handleAcceptOffer(ctx context.Context, eventID string) error {
	a.mu.Lock()
	if a.data.AcceptedOfferEventID != "" {
		a.mu.Unlock()
		return fmt.Errorf("maker: an offer is already accepted")
	}
	if a.data.TradeCompleted {
		a.mu.Unlock()
		return fmt.Errorf("maker: trade already completed")
	}
	accepted, ok := a.data.Offers[eventID]
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("maker: offer %s not found", eventID)
	}
	if a.data.OrderEventID == "" {
		a.mu.Unlock()
		return fmt.Errorf("maker: order not yet published")
	}
	orderEventID := a.data.OrderEventID
	tradeUUID := a.data.Order.TradeUUID
	others := make([]trade.OfferEnvelope, 0, len(a.data.Offers))
	for id, env := range a.data.Offers {
		if id != eventID {
			others = append(others, env)
		}
	}
	a.mu.Unlock()

	for _, env := range others {
		rsp := trade.NewRejectResponse(env.EventID, trade.RejectPendingAnother)
		a.sendTradeResponse(ctx, env.Pubkey, orderEventID, env.EventID, tradeUUID, rsp)
	}

	acceptRsp := trade.NewAcceptResponse(accepted.EventID)
	target := comms.PeerMessageTarget{
		Pubkey:           accepted.Pubkey,
		MakerOrderNoteID: orderEventID,
		TradeUUID:        tradeUUID,
	}
	responseEventID, err := a.comms.SendTradeResponse(target, acceptRsp)
	if err != nil {
		return fmt.Errorf("accept offer: %w", err)
	}

	a.mu.Lock()
	a.data.AcceptedOfferEventID = eventID
	a.data.Response = &acceptRsp
	a.data.ResponseEventID = responseEventID
	a.mu.Unlock()
	a.persist()

	if err := a.comms.DeleteMakerOrderNote(orderEventID); err != nil {
		a.log.Warn("delete order note after accept failed", "error", err)
	}
	return nil
}

// sendTradeResponse sends rsp and logs, but never fails, the caller's
// enclosing operation.
func (a *actor) sendTradeResponse(ctx context.Context, to trade.Pubkey, orderEventID, offerEventID string, tradeUUID uuid.UUID, rsp trade.TradeResponse) {
	target := comms.PeerMessageTarget{
		Pubkey:           to,
		MakerOrderNoteID: orderEventID,
		TradeUUID:        tradeUUID,
	}
	if _, err := a.comms.SendTradeResponse(target, rsp); err != nil {
		a.log.Warn("send trade response failed", "offer_event", offerEventID, "error", err)
	}
}

func (a *actor) handleCancelOrder(ctx context.Context) error {
	a.mu.Lock()
	if a.data.TradeCompleted {
		a.mu.Unlock()
		return fmt.Errorf("maker: trade already completed")
	}
	orderEventID := a.data.OrderEventID
	tradeUUID := a.data.Order.TradeUUID
	outstanding := make([]trade.OfferEnvelope, 0, len(a.data.Offers))
	for id, env := range a.data.Offers {
		if id != a.data.AcceptedOfferEventID {
			outstanding = append(outstanding, env)
		}
	}
	a.mu.Unlock()

	for _, env := range outstanding {
		rsp := trade.NewRejectResponse(env.EventID, trade.RejectCancelled)
		a.sendTradeResponse(ctx, env.Pubkey, orderEventID, env.EventID, tradeUUID, rsp)
	}

	if orderEventID != "" {
		if err := a.comms.DeleteMakerOrderNote(orderEventID); err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}
	}

	go a.terminate()
	return nil
}

// terminate shuts the actor down from within a handler that cannot itself
// return via the normal shutdownReq path without deadlocking on reqCh.
func (a *actor) terminate() {
	reply := make(chan struct{}, 1)
	a.reqCh <- shutdownReq{reply: reply}
	<-reply
}

func (a *actor) handleSendPeerMessage(ctx context.Context, boxed trade.EngineSpecifics) error {
	a.mu.RLock()
	acceptedID := a.data.AcceptedOfferEventID
	orderEventID := a.data.OrderEventID
	tradeUUID := a.data.Order.TradeUUID
	accepted, ok := a.data.Offers[acceptedID]
	a.mu.RUnlock()

	if acceptedID == "" || !ok {
		return fmt.Errorf("maker: no offer accepted")
	}
	if orderEventID == "" {
		return fmt.Errorf("maker: order not published")
	}

	target := comms.PeerMessageTarget{
		Pubkey:           accepted.Pubkey,
		MakerOrderNoteID: orderEventID,
		TradeUUID:        tradeUUID,
	}
	_, err := a.comms.SendTradeEngineSpecificMessage(target, boxed)
	return err
}

func (a *actor) handleTradeComplete() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.data.TradeCompleted {
		return fmt.Errorf("maker: trade already completed")
	}
	a.data.TradeCompleted = true
	a.persist()
	return nil
}

func (a *actor) handlePeerMessage(ctx context.Context, envelope trade.PeerEnvelope) {
	switch envelope.Message.MessageType {
	case trade.MessageTypeTakerOffer:
		a.handleTakerOffer(ctx, envelope)
	case trade.MessageTypeTradeResponse:
		a.log.Warn("maker received unexpected TradeResponse, dropping", "event", envelope.EventID)
	case trade.MessageTypeTradeEngineSpecific:
		a.handleTradeEngineSpecific(envelope)
	default:
		a.log.Warn("maker received unrecognized peer message type, dropping")
	}
}

func (a *actor) handleTakerOffer(ctx context.Context, envelope trade.PeerEnvelope) {
	off, err := envelope.Message.DecodeOffer()
	if err != nil {
		a.log.Warn("taker offer undecodable, dropping", "error", err)
		return
	}
	offerEnvelope := trade.OfferEnvelope{
		Offer:   *off,
		Pubkey:  envelope.Pubkey,
		EventID: envelope.EventID,
		Relays:  envelope.Relays,
	}

	a.mu.Lock()
	var reason trade.RejectReason
	switch {
	case a.data.AcceptedOfferEventID != "":
		reason = trade.RejectPendingAnother
	default:
		if _, dup := a.data.Offers[envelope.EventID]; dup {
			reason = trade.RejectDuplicateOffer
		} else if r := offer.Validate(a.data.Order, *off); r != "" {
			reason = r
		}
	}

	accept := reason == ""
	var orderEventID string
	var tradeUUID uuid.UUID
	if accept {
		a.data.Offers[envelope.EventID] = offerEnvelope
		orderEventID = a.data.OrderEventID
		tradeUUID = a.data.Order.TradeUUID
	} else {
		orderEventID = a.data.OrderEventID
		tradeUUID = a.data.Order.TradeUUID
	}
	notifySilenced := !accept && a.data.RejectInvalidOffersSilently
	a.mu.Unlock()

	if accept {
		a.persist()
		a.notify(OfferNotif{Envelope: offerEnvelope})
		return
	}

	rsp := trade.NewRejectResponse(envelope.EventID, reason)
	a.sendTradeResponse(ctx, envelope.Pubkey, orderEventID, envelope.EventID, tradeUUID, rsp)
	if !notifySilenced {
		a.notify(OfferNotif{Envelope: offerEnvelope})
	}
}

func (a *actor) handleTradeEngineSpecific(envelope trade.PeerEnvelope) {
	a.mu.RLock()
	acceptedID := a.data.AcceptedOfferEventID
	accepted, ok := a.data.Offers[acceptedID]
	a.mu.RUnlock()

	if acceptedID == "" || !ok {
		a.log.Warn("trade-engine-specific message before any offer accepted, dropping", "sender", envelope.Pubkey)
		return
	}
	if envelope.Pubkey != accepted.Pubkey {
		a.log.Warn("trade-engine-specific message from non-accepted sender, dropping", "sender", envelope.Pubkey)
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
