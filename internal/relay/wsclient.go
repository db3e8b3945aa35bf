package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/klingon-exchange/n3xb-core/internal/identity"
	"github.com/klingon-exchange/n3xb-core/internal/relaylog"
	"github.com/klingon-exchange/n3xb-core/internal/trade"
	"github.com/klingon-exchange/n3xb-core/pkg/logging"
)

const (
	wsPingInterval     = 50 * time.Second
	wsReadTimeout      = 90 * time.Second
	wsMaxReconnectWait = 30 * time.Second
	wsWriteTimeout     = 10 * time.Second
	notifyChanDepth    = 256
	queryTimeout       = 1 * time.Second
)

// WSClient is a Client implementation that speaks the nostr relay
// websocket protocol (EVENT/REQ/CLOSE/OK/EOSE/NOTICE frames) directly to
// one or more relay URLs, following the same connect/read/reconnect-with-
// backoff shape as a market-data websocket feed.
type WSClient struct {
	id      *identity.Identity
	log     *logging.Logger
	seenLog *relaylog.Log
	http    *resty.Client

	mu       sync.Mutex
	relays   map[string]*relayConn
	inMemory map[string]trade.RelaySet // fallback seen-on index when seenLog is nil

	subsMu sync.Mutex
	subs   map[string]Filter // active long-lived subscriptions, re-issued on reconnect

	pendingMu sync.Mutex
	pending   map[string]chan okResult // by event id, for Publish acks

	notifyCh chan Notification
	closeCh  chan struct{}
	wg       sync.WaitGroup
}

type relayConn struct {
	url    string
	proxy  string
	connMu sync.Mutex
	conn   *websocket.Conn

	cancel context.CancelFunc
}

type okResult struct {
	accepted bool
	message  string
}

// NewWSClient constructs a websocket relay client for id. seenLog may be
// nil, in which case seen-on tracking is kept in memory only.
func NewWSClient(id *identity.Identity, log *logging.Logger, seenLog *relaylog.Log) *WSClient {
	return &WSClient{
		id:       id,
		log:      log.Component("relay-ws"),
		seenLog:  seenLog,
		http:     resty.New().SetTimeout(5 * time.Second),
		relays:   make(map[string]*relayConn),
		inMemory: make(map[string]trade.RelaySet),
		subs:     make(map[string]Filter),
		pending:  make(map[string]chan okResult),
		notifyCh: make(chan Notification, notifyChanDepth),
		closeCh:  make(chan struct{}),
	}
}

// probeInfo fetches a relay's NIP-11 info document, logging but not
// failing AddRelay on error — many relays omit it.
func (c *WSClient) probeInfo(httpURL string) {
	resp, err := c.http.R().SetHeader("Accept", "application/nostr+json").Get(httpURL)
	if err != nil {
		c.log.Debug("relay info probe failed", "relay", httpURL, "error", err)
		return
	}
	c.log.Debug("relay info document", "relay", httpURL, "status", resp.StatusCode())
}

func (c *WSClient) AddRelay(ctx context.Context, relay RelayURL, connect bool) error {
	c.mu.Lock()
	if _, exists := c.relays[relay.URL]; exists {
		c.mu.Unlock()
		return fmt.Errorf("relay %s already registered", relay.URL)
	}
	c.relays[relay.URL] = &relayConn{url: relay.URL, proxy: relay.Proxy}
	c.mu.Unlock()

	if httpURL, err := toHTTP(relay.URL); err == nil {
		go c.probeInfo(httpURL)
	}

	if connect {
		return c.Connect(ctx, relay.URL)
	}
	return nil
}

func (c *WSClient) RemoveRelay(relay string) error {
	c.mu.Lock()
	rc, ok := c.relays[relay]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("relay %s is not registered", relay)
	}
	delete(c.relays, relay)
	c.mu.Unlock()

	rc.connMu.Lock()
	if rc.cancel != nil {
		rc.cancel()
	}
	if rc.conn != nil {
		rc.conn.Close()
	}
	rc.connMu.Unlock()
	return nil
}

func (c *WSClient) Relays() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.relays))
	for u := range c.relays {
		out = append(out, u)
	}
	return out
}

func (c *WSClient) Connect(ctx context.Context, relay string) error {
	c.mu.Lock()
	rc, ok := c.relays[relay]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("relay %s is not registered", relay)
	}

	rc.connMu.Lock()
	alreadyConnected := rc.conn != nil
	rc.connMu.Unlock()
	if alreadyConnected {
		return nil
	}

	dialer := *websocket.DefaultDialer
	if rc.proxy != "" {
		proxyURL, err := url.Parse(rc.proxy)
		if err != nil {
			return fmt.Errorf("parse proxy url for %s: %w", relay, err)
		}
		dialer.Proxy = http.ProxyURL(proxyURL)
	}

	conn, _, err := dialer.DialContext(ctx, relay, nil)
	if err != nil {
		c.notify(RelayStatusNotification{Relay: relay, Connected: false, Err: err})
		return fmt.Errorf("dial relay %s: %w", relay, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	rc.connMu.Lock()
	rc.conn = conn
	rc.cancel = cancel
	rc.connMu.Unlock()

	c.notify(RelayStatusNotification{Relay: relay, Connected: true})
	c.resubscribe(relay)

	c.wg.Add(1)
	go c.readLoop(runCtx, rc)
	return nil
}

func (c *WSClient) ConnectAll(ctx context.Context) error {
	var firstErr error
	for _, relay := range c.Relays() {
		if err := c.Connect(ctx, relay); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// readLoop owns one relay's connection: it reads frames until the socket
// dies or ctx is cancelled, then reconnects with exponential backoff
// (1s to 30s) and re-issues any active subscriptions.
func (c *WSClient) readLoop(ctx context.Context, rc *relayConn) {
	defer c.wg.Done()
	backoff := time.Second

	for {
		err := c.readUntilError(ctx, rc)
		if ctx.Err() != nil {
			return
		}
		c.notify(RelayStatusNotification{Relay: rc.url, Connected: false, Err: err})

		select {
		case <-ctx.Done():
			return
		case <-c.closeCh:
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > wsMaxReconnectWait {
			backoff = wsMaxReconnectWait
		}

		// Drop the dead socket so Connect dials a fresh one.
		rc.connMu.Lock()
		if rc.conn != nil {
			rc.conn.Close()
			rc.conn = nil
		}
		rc.connMu.Unlock()

		if reconnectErr := c.Connect(ctx, rc.url); reconnectErr != nil {
			c.log.Warn("relay reconnect failed", "relay", rc.url, "error", reconnectErr)
			continue
		}
		return // a fresh readLoop goroutine now owns this relay
	}
}

func (c *WSClient) readUntilError(ctx context.Context, rc *relayConn) error {
	rc.connMu.Lock()
	conn := rc.conn
	rc.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("no connection")
	}

	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleFrame(rc.url, data)
	}
}

func (c *WSClient) handleFrame(relayURL string, data []byte) {
	var frame []json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil || len(frame) == 0 {
		c.log.Debug("malformed relay frame", "relay", relayURL, "error", err)
		return
	}

	var kind string
	if err := json.Unmarshal(frame[0], &kind); err != nil {
		return
	}

	switch kind {
	case "EVENT":
		if len(frame) < 3 {
			return
		}
		var event Event
		if err := json.Unmarshal(frame[2], &event); err != nil {
			c.log.Debug("malformed EVENT frame", "relay", relayURL, "error", err)
			return
		}
		if err := event.Verify(); err != nil {
			c.log.Debug("dropping event with bad signature", "relay", relayURL, "error", err)
			return
		}
		c.recordSeenOn(event.ID, relayURL)
		c.notify(EventNotification{Relay: relayURL, Event: event})

	case "OK":
		if len(frame) < 3 {
			return
		}
		var eventID string
		var accepted bool
		var message string
		json.Unmarshal(frame[1], &eventID)
		json.Unmarshal(frame[2], &accepted)
		if len(frame) > 3 {
			json.Unmarshal(frame[3], &message)
		}
		c.pendingMu.Lock()
		ch, ok := c.pending[eventID]
		c.pendingMu.Unlock()
		if ok {
			select {
			case ch <- okResult{accepted: accepted, message: message}:
			default:
			}
		}

	case "NOTICE":
		var msg string
		json.Unmarshal(frame[1], &msg)
		c.log.Debug("relay notice", "relay", relayURL, "message", msg)

	case "EOSE":
		// ignored: QueryEvents does not end early on end-of-stored-events,
		// it collects until its own timeout.

	default:
		c.log.Debug("unhandled relay frame kind", "relay", relayURL, "kind", kind)
	}
}

func (c *WSClient) recordSeenOn(eventID, relayURL string) {
	if c.seenLog != nil {
		if err := c.seenLog.Record(eventID, relayURL); err != nil {
			c.log.Warn("relaylog record failed", "error", err)
		}
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.inMemory[eventID]
	if !ok {
		set = trade.NewRelaySet()
		c.inMemory[eventID] = set
	}
	set.Add(relayURL)
}

func (c *WSClient) SeenOn(eventID string) (trade.RelaySet, error) {
	if c.seenLog != nil {
		urls, err := c.seenLog.SeenOn(eventID)
		if err != nil {
			return nil, err
		}
		return trade.NewRelaySet(urls...), nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inMemory[eventID], nil
}

func (c *WSClient) notify(n Notification) {
	select {
	case c.notifyCh <- n:
	default:
		c.log.Warn("notification channel full, dropping", "type", fmt.Sprintf("%T", n))
	}
}

func (c *WSClient) Notifications() <-chan Notification {
	return c.notifyCh
}

// writeJSON serializes v as a single nostr frame and writes it to every
// currently connected relay, returning the relays it was sent to.
func (c *WSClient) writeJSON(v interface{}) []string {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("marshal relay frame failed", "error", err)
		return nil
	}

	c.mu.Lock()
	conns := make([]*relayConn, 0, len(c.relays))
	for _, rc := range c.relays {
		conns = append(conns, rc)
	}
	c.mu.Unlock()

	var sent []string
	for _, rc := range conns {
		rc.connMu.Lock()
		conn := rc.conn
		rc.connMu.Unlock()
		if conn == nil {
			continue
		}
		rc.connMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		err := conn.WriteMessage(websocket.TextMessage, data)
		rc.connMu.Unlock()
		if err != nil {
			c.log.Warn("relay write failed", "relay", rc.url, "error", err)
			continue
		}
		sent = append(sent, rc.url)
	}
	return sent
}

func (c *WSClient) Publish(ctx context.Context, event *Event, powDifficulty uint64) (trade.RelaySet, error) {
	if event.CreatedAt == 0 {
		event.CreatedAt = time.Now().Unix()
	}
	if err := Mine(ctx, c.id, event, powDifficulty); err != nil {
		return nil, fmt.Errorf("mine event: %w", err)
	}

	ackCh := make(chan okResult, len(c.Relays())+1)
	c.pendingMu.Lock()
	c.pending[event.ID] = ackCh
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, event.ID)
		c.pendingMu.Unlock()
	}()

	sentTo := c.writeJSON([]interface{}{"EVENT", event})
	if len(sentTo) == 0 {
		return nil, fmt.Errorf("no connected relays to publish to")
	}

	accepted := trade.NewRelaySet(sentTo...)
	c.recordSeenOnAll(event.ID, sentTo)
	return accepted, nil
}

func (c *WSClient) recordSeenOnAll(eventID string, relays []string) {
	for _, r := range relays {
		c.recordSeenOn(eventID, r)
	}
}

func (c *WSClient) Delete(ctx context.Context, eventID string, reason string) error {
	event := &Event{
		Kind:    EventKindDeletion,
		Tags:    [][]string{{"e", eventID}},
		Content: reason,
	}
	_, err := c.Publish(ctx, event, 0)
	return err
}

func (c *WSClient) SendDirectMessage(ctx context.Context, recipient trade.Pubkey, msg trade.PeerMessage) (string, error) {
	sealed, err := EncryptDM(c.id, recipient, msg)
	if err != nil {
		return "", fmt.Errorf("encrypt direct message: %w", err)
	}

	event := &Event{
		Kind:    EventKindEncryptedDM,
		Tags:    [][]string{{"p", recipient.String()}},
		Content: string(sealed),
	}
	if _, err := c.Publish(ctx, event, 0); err != nil {
		return "", err
	}
	return event.ID, nil
}

func (c *WSClient) SubscribeDirectMessages(ctx context.Context, since time.Time) error {
	filter := Filter{
		Kinds: []int{EventKindEncryptedDM},
		Tags:  map[string][]string{"#p": {c.id.Pubkey().String()}},
		Since: &since,
	}
	c.subsMu.Lock()
	c.subs["dm"] = filter
	c.subsMu.Unlock()

	c.sendReq("dm", filter)
	return nil
}

// resubscribe re-issues every active subscription against a relay that
// just (re)connected.
func (c *WSClient) resubscribe(relay string) {
	c.subsMu.Lock()
	subs := make(map[string]Filter, len(c.subs))
	for id, f := range c.subs {
		subs[id] = f
	}
	c.subsMu.Unlock()

	for id, f := range subs {
		c.sendReqTo(relay, id, f)
	}
}

func (c *WSClient) sendReq(subID string, f Filter) {
	c.writeJSON(buildReqFrame(subID, f))
}

func (c *WSClient) sendReqTo(relay, subID string, f Filter) {
	c.mu.Lock()
	rc, ok := c.relays[relay]
	c.mu.Unlock()
	if !ok {
		return
	}
	data, err := json.Marshal(buildReqFrame(subID, f))
	if err != nil {
		return
	}
	rc.connMu.Lock()
	defer rc.connMu.Unlock()
	if rc.conn == nil {
		return
	}
	rc.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	rc.conn.WriteMessage(websocket.TextMessage, data)
}

func buildReqFrame(subID string, f Filter) []interface{} {
	filterMap := map[string]interface{}{}
	if len(f.Kinds) > 0 {
		filterMap["kinds"] = f.Kinds
	}
	if f.Since != nil {
		filterMap["since"] = f.Since.Unix()
	}
	if len(f.Authors) > 0 {
		authors := make([]string, len(f.Authors))
		for i, a := range f.Authors {
			authors[i] = a.String()
		}
		filterMap["authors"] = authors
	}
	for k, v := range f.Tags {
		filterMap[k] = v
	}
	return []interface{}{"REQ", subID, filterMap}
}

// QueryEvents opens a short-lived subscription across every connected
// relay, collects events for up to ~1s (or until ctx is done, whichever
// comes first), then closes it and returns the deduplicated results.
func (c *WSClient) QueryEvents(ctx context.Context, filter Filter) ([]Event, error) {
	subID := "q-" + uuid.NewString()[:8]

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	results := make(map[string]Event)
	var resultsMu sync.Mutex

	done := make(chan struct{})
	collector := make(chan Notification, notifyChanDepth)

	// Tap the shared notification stream for EventNotifications matching
	// this query's kinds while it's in flight.
	wantKind := func(kind int) bool {
		if len(filter.Kinds) == 0 {
			return true
		}
		for _, k := range filter.Kinds {
			if k == kind {
				return true
			}
		}
		return false
	}
	go func() {
		for {
			select {
			case n, ok := <-c.notifyCh:
				if !ok {
					close(done)
					return
				}
				if evt, ok := n.(EventNotification); ok && wantKind(evt.Event.Kind) {
					resultsMu.Lock()
					results[evt.Event.ID] = evt.Event
					resultsMu.Unlock()
				} else {
					select {
					case collector <- n:
					default:
					}
				}
			case <-queryCtx.Done():
				close(done)
				return
			}
		}
	}()

	c.writeJSON(buildReqFrame(subID, filter))

	select {
	case <-done:
	case <-queryCtx.Done():
	}

	c.writeJSON([]interface{}{"CLOSE", subID})

	// Drain anything the tap held back onto the real notification channel
	// so non-query notifications aren't lost.
	close(collector)
	for n := range collector {
		c.notify(n)
	}

	resultsMu.Lock()
	defer resultsMu.Unlock()
	out := make([]Event, 0, len(results))
	for _, e := range results {
		out = append(out, e)
	}
	return out, nil
}

func (c *WSClient) Shutdown(ctx context.Context) error {
	close(c.closeCh)
	for _, relay := range c.Relays() {
		c.RemoveRelay(relay)
	}
	c.wg.Wait()
	c.notify(ShutdownNotification{})
	close(c.notifyCh)
	return nil
}

func toHTTP(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	case "ws":
		u.Scheme = "http"
	}
	return u.String(), nil
}
