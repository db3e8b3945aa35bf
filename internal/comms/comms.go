// Package comms implements the Comms actor: the single long-lived task
// per identity that owns the relay client, maintains a persisted relay
// set, subscribes to direct messages, serializes outbound order
// publications and direct messages, performs tag-based order queries
// across relays with deduplication, and routes inbound encrypted peer
// messages to per-trade subscribers via the Router.
package comms

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/klingon-exchange/n3xb-core/internal/identity"
	"github.com/klingon-exchange/n3xb-core/internal/ordertag"
	"github.com/klingon-exchange/n3xb-core/internal/persist"
	"github.com/klingon-exchange/n3xb-core/internal/relay"
	"github.com/klingon-exchange/n3xb-core/internal/router"
	"github.com/klingon-exchange/n3xb-core/internal/trade"
	"github.com/klingon-exchange/n3xb-core/pkg/logging"
)

const deletedOrderNoteReason = "n3xB: Order cancelled by Maker before Trade commenced"

const mailboxDepth = 100

// actor owns every piece of Comms state; it is reached only through the
// request channel exposed by Access, so none of its fields need locking
// against concurrent request handling — only persist's Snapshotter reads
// data concurrently with the actor's writes, through mu.
type actor struct {
	id         *identity.Identity
	client     relay.Client
	router     *router.Router
	engineName string
	powDiff    uint64

	mu   sync.RWMutex
	data CommsData

	persister *persist.Persister[CommsData]
	log       *logging.Logger

	reqCh chan interface{}
}

// Access is a cloneable handle applications and other actors use to
// interact with a running Comms actor.
type Access struct {
	reqCh chan<- interface{}
}

// New constructs a Comms actor for id, restoring persisted relay state
// from dataPath if present, and starts its main loop. engineName is this
// application's trade-engine name, used to tag published orders and
// scope order queries; powDifficulty configures the default mining
// difficulty for published events.
func New(ctx context.Context, id *identity.Identity, client relay.Client, rtr *router.Router, dataPath, engineName string, powDifficulty uint64) (*Access, error) {
	data := newCommsData()
	if err := persist.Restore(dataPath, data.PersistType(), &data); err != nil {
		data = newCommsData()
	}

	a := &actor{
		id:         id,
		client:     client,
		router:     rtr,
		engineName: engineName,
		powDiff:    powDifficulty,
		data:       data,
		log:        logging.GetDefault().Component("comms"),
		reqCh:      make(chan interface{}, mailboxDepth),
	}
	a.persister = persist.New(dataPath, persist.NewLockedSnapshotter(&a.mu, a.snapshot))

	for url, proxy := range data.Relays {
		if err := client.AddRelay(ctx, relay.RelayURL{URL: url, Proxy: proxy}, false); err != nil {
			a.log.Warn("failed to re-register persisted relay", "relay", url, "error", err)
		}
	}

	go a.run(ctx)
	return &Access{reqCh: a.reqCh}, nil
}

func (a *actor) snapshot() CommsData {
	return a.data.clone()
}

func (a *actor) persist() {
	a.persister.Queue()
}

// run is the actor's single-goroutine main loop: select between a
// request from the mailbox and a notification from the relay client.
func (a *actor) run(ctx context.Context) {
	since := time.Now()
	a.mu.RLock()
	if a.data.LastEvent > 0 {
		since = time.Unix(a.data.LastEvent, 0)
	}
	a.mu.RUnlock()

	if err := a.client.SubscribeDirectMessages(ctx, since); err != nil {
		a.log.Warn("initial direct-message subscription failed", "error", err)
	}

	for {
		select {
		case req := <-a.reqCh:
			a.handle(ctx, req)
			if _, isShutdown := req.(shutdownReq); isShutdown {
				return
			}
		case notif, ok := <-a.client.Notifications():
			if !ok {
				return
			}
			a.handleNotification(notif)
		}
	}
}

func (a *actor) handleNotification(notif relay.Notification) {
	switch n := notif.(type) {
	case relay.EventNotification:
		if n.Event.Kind != relay.EventKindEncryptedDM {
			a.log.Debug("dropping non-dm event notification", "relay", n.Relay, "kind", n.Event.Kind)
			return
		}
		a.handleDirectMessage(n)
	case relay.RelayStatusNotification:
		a.log.Debug("relay status", "relay", n.Relay, "connected", n.Connected, "error", n.Err)
	case relay.ShutdownNotification:
		a.log.Debug("relay client shut down")
	default:
		a.log.Debug("dropping unrecognized notification")
	}
}

func (a *actor) handleDirectMessage(n relay.EventNotification) {
	sender, err := trade.ParsePubkeyHex(n.Event.Pubkey)
	if err != nil {
		a.log.Warn("dm with unparseable sender pubkey, dropping", "error", err)
		return
	}

	plaintext, err := relay.DecryptDM(a.id, sender, []byte(n.Event.Content))
	if err != nil {
		a.log.Warn("dm decrypt failed, dropping", "sender", sender, "error", err)
		return
	}

	if err := a.router.HandlePeerMessage(sender, n.Event.ID, trade.NewRelaySet(n.Relay), *plaintext); err != nil {
		a.log.Warn("dm routing failed, dropping", "sender", sender, "error", err)
		return
	}

	a.mu.Lock()
	if n.Event.CreatedAt > a.data.LastEvent {
		a.data.LastEvent = n.Event.CreatedAt
	}
	a.mu.Unlock()
	a.persist()
}

func (a *actor) handle(ctx context.Context, req interface{}) {
	switch r := req.(type) {
	case getPubkeyReq:
		r.reply <- a.id.Pubkey()

	case addRelaysReq:
		r.reply <- a.handleAddRelays(ctx, r)

	case removeRelayReq:
		r.reply <- a.handleRemoveRelay(r)

	case getRelaysReq:
		r.reply <- a.handleGetRelays()

	case connectRelayReq:
		r.reply <- a.client.Connect(ctx, r.url)

	case connectAllReq:
		r.reply <- a.client.ConnectAll(ctx)

	case registerPeerTxReq:
		r.reply <- a.router.Register(r.tradeUUID, r.tx)

	case unregisterPeerTxReq:
		r.reply <- a.router.Unregister(r.tradeUUID)

	case registerFallbackReq:
		a.router.RegisterFallback(r.tx)
		r.reply <- struct{}{}

	case unregisterFallbackReq:
		a.router.UnregisterFallback()
		r.reply <- struct{}{}

	case sendMakerOrderNoteReq:
		envelope, err := a.handleSendMakerOrderNote(ctx, r.order)
		r.reply <- sendMakerOrderNoteResult{envelope: envelope, err: err}

	case queryOrdersReq:
		envelopes, err := a.handleQueryOrders(ctx, r.filters)
		r.reply <- queryOrdersResult{envelopes: envelopes, err: err}

	case sendTakerOfferReq:
		eventID, err := a.sendPeerMessage(ctx, r.target, trade.MessageTypeTakerOffer, r.offer)
		r.reply <- sendPeerMessageResult{eventID: eventID, err: err}

	case sendTradeResponseReq:
		eventID, err := a.sendPeerMessage(ctx, r.target, trade.MessageTypeTradeResponse, r.response)
		r.reply <- sendPeerMessageResult{eventID: eventID, err: err}

	case sendEngineSpecificReq:
		eventID, err := a.sendPeerMessage(ctx, r.target, trade.MessageTypeTradeEngineSpecific, r.boxed)
		r.reply <- sendPeerMessageResult{eventID: eventID, err: err}

	case deleteOrderNoteReq:
		r.reply <- a.client.Delete(ctx, r.eventID, deletedOrderNoteReason)

	case shutdownReq:
		if err := a.client.Shutdown(ctx); err != nil {
			a.log.Warn("relay client shutdown error", "error", err)
		}
		a.persister.Terminate()
		r.reply <- struct{}{}

	default:
		a.log.Warn("comms actor received unrecognized request type")
	}
}

func (a *actor) handleAddRelays(ctx context.Context, r addRelaysReq) error {
	a.mu.Lock()
	for _, entry := range r.relays {
		a.data.Relays[entry.URL] = entry.Proxy
	}
	a.mu.Unlock()
	a.persist()

	var firstErr error
	for _, entry := range r.relays {
		if err := a.client.AddRelay(ctx, relay.RelayURL{URL: entry.URL, Proxy: entry.Proxy}, false); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if r.connect {
			if err := a.client.Connect(ctx, entry.URL); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (a *actor) handleRemoveRelay(r removeRelayReq) error {
	a.mu.Lock()
	delete(a.data.Relays, r.url)
	a.mu.Unlock()
	a.persist()
	return a.client.RemoveRelay(r.url)
}

func (a *actor) handleGetRelays() []RelayEntry {
	out := make([]RelayEntry, 0, len(a.client.Relays()))
	for _, url := range a.client.Relays() {
		a.mu.RLock()
		proxy := a.data.Relays[url]
		a.mu.RUnlock()
		out = append(out, RelayEntry{URL: url, Proxy: proxy})
	}
	return out
}

func (a *actor) handleSendMakerOrderNote(ctx context.Context, order trade.Order) (trade.OrderEnvelope, error) {
	event, err := buildOrderEvent(order)
	if err != nil {
		return trade.OrderEnvelope{}, err
	}

	powDiff := order.PowDifficulty
	if powDiff == 0 {
		powDiff = a.powDiff
	}

	relays, err := a.client.Publish(ctx, event, powDiff)
	if err != nil {
		return trade.OrderEnvelope{}, fmt.Errorf("publish maker order note: %w", err)
	}

	return trade.OrderEnvelope{
		Order:   order,
		Pubkey:  a.id.Pubkey(),
		EventID: event.ID,
		Relays:  relays,
	}, nil
}

func (a *actor) handleQueryOrders(ctx context.Context, filters []ordertag.FilterTag) ([]trade.OrderEnvelope, error) {
	all := append([]ordertag.FilterTag{
		ordertag.ApplicationTagFilter(),
		ordertag.EngineNameFilter(a.engineName),
	}, filters...)

	events, err := a.client.QueryEvents(ctx, relay.Filter{
		Kinds: []int{relay.EventKindMakerOrder},
		Tags:  ordertag.ToRelayFilter(all),
	})
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	seen := make(map[string]struct{}, len(events))
	envelopes := make([]trade.OrderEnvelope, 0, len(events))
	for _, event := range events {
		if _, dup := seen[event.ID]; dup {
			continue
		}
		seen[event.ID] = struct{}{}

		order, err := parseOrderEvent(event)
		if err != nil {
			a.log.Debug("dropping unparseable order note", "event", event.ID, "error", err)
			continue
		}
		pubkey, err := trade.ParsePubkeyHex(event.Pubkey)
		if err != nil {
			a.log.Debug("dropping order note with unparseable pubkey", "event", event.ID, "error", err)
			continue
		}

		relays, err := a.client.SeenOn(event.ID)
		if err != nil {
			a.log.Debug("seen-on lookup failed", "event", event.ID, "error", err)
			relays = trade.NewRelaySet()
		}

		envelopes = append(envelopes, trade.OrderEnvelope{
			Order:   order,
			Pubkey:  pubkey,
			EventID: event.ID,
			Relays:  relays,
		})
	}
	return envelopes, nil
}

func (a *actor) sendPeerMessage(ctx context.Context, target peerMessageTarget, msgType trade.MessageType, body interface{}) (string, error) {
	msg, err := trade.NewPeerMessage(target.respondingToID, target.makerOrderNoteID, target.tradeUUID, msgType, body)
	if err != nil {
		return "", err
	}
	return a.client.SendDirectMessage(ctx, target.pubkey, *msg)
}
