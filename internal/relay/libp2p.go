package relay

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	connmgr "github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/multiformats/go-multiaddr"

	"github.com/klingon-exchange/n3xb-core/internal/identity"
	"github.com/klingon-exchange/n3xb-core/internal/relaylog"
	"github.com/klingon-exchange/n3xb-core/internal/trade"
	"github.com/klingon-exchange/n3xb-core/pkg/logging"
)

// directMessageProtocol is the libp2p stream protocol used for encrypted
// direct messages, opened once the recipient's pubkey-to-peer-ID mapping
// has been learned from a gossip broadcast; direct messages need a
// point-to-point channel since gossip topics are broadcast-only.
const directMessageProtocol protocol.ID = "/n3xb/dm/1.0.0"

// SwarmClient is a Client implementation backed by a libp2p host: order
// notes are broadcast over a GossipSub topic per registered relay
// (a relay here names a pubsub rendezvous, not a websocket endpoint), and
// direct messages are delivered over point-to-point libp2p streams once
// the recipient's peer ID has been learned from a prior broadcast.
type SwarmClient struct {
	id  *identity.Identity
	log *logging.Logger

	host   host.Host
	pubsub *pubsub.PubSub
	disc   *discovery

	seenLog *relaylog.Log

	mu       sync.Mutex
	topics   map[string]*pubsub.Topic
	subs     map[string]*pubsub.Subscription
	peerByPK map[trade.Pubkey]peer.ID

	notifyCh chan Notification
	closeCh  chan struct{}
	wg       sync.WaitGroup
}

// NewSwarmClient creates a libp2p host for id and starts its pubsub
// router. An empty listenAddrs means host-chosen ephemeral addresses.
func NewSwarmClient(ctx context.Context, id *identity.Identity, log *logging.Logger, seenLog *relaylog.Log, listenAddrs []string) (*SwarmClient, error) {
	privKey, err := deriveLibp2pKey(id)
	if err != nil {
		return nil, fmt.Errorf("derive libp2p identity: %w", err)
	}

	addrs := make([]multiaddr.Multiaddr, 0, len(listenAddrs))
	for _, a := range listenAddrs {
		ma, err := multiaddr.NewMultiaddr(a)
		if err != nil {
			return nil, fmt.Errorf("invalid listen address %s: %w", a, err)
		}
		addrs = append(addrs, ma)
	}

	cm, err := connmgr.NewConnManager(32, 128, connmgr.WithGracePeriod(time.Minute))
	if err != nil {
		return nil, fmt.Errorf("create connection manager: %w", err)
	}

	h, err := libp2p.New(
		libp2p.Identity(privKey),
		libp2p.ListenAddrs(addrs...),
		libp2p.ConnectionManager(cm),
		libp2p.DefaultTransports,
		libp2p.DefaultMuxers,
		libp2p.DefaultSecurity,
		libp2p.NATPortMap(),
	)
	if err != nil {
		return nil, fmt.Errorf("create libp2p host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("create gossipsub router: %w", err)
	}

	c := &SwarmClient{
		id:       id,
		log:      log.Component("relay-swarm"),
		host:     h,
		pubsub:   ps,
		seenLog:  seenLog,
		topics:   make(map[string]*pubsub.Topic),
		subs:     make(map[string]*pubsub.Subscription),
		peerByPK: make(map[trade.Pubkey]peer.ID),
		notifyCh: make(chan Notification, notifyChanDepth),
		closeCh:  make(chan struct{}),
	}

	c.disc, err = newDiscovery(ctx, h, c.log)
	if err != nil {
		c.log.Warn("discovery init failed, continuing without it", "error", err)
	}

	h.SetStreamHandler(directMessageProtocol, c.handleDirectStream)
	return c, nil
}

// deriveLibp2pKey deterministically derives a libp2p Ed25519 identity
// seed from the n3xb secp256k1 secret key, so a single on-disk identity
// drives both relay transports without a second key file.
func deriveLibp2pKey(id *identity.Identity) (crypto.PrivKey, error) {
	seed := id.SecretKey().Serialize()
	priv, _, err := crypto.GenerateEd25519Key(newDeterministicReader(seed))
	return priv, err
}

func (c *SwarmClient) AddRelay(ctx context.Context, relay RelayURL, connect bool) error {
	c.mu.Lock()
	if _, exists := c.topics[relay.URL]; exists {
		c.mu.Unlock()
		return fmt.Errorf("relay %s already registered", relay.URL)
	}
	c.mu.Unlock()

	topic, err := c.pubsub.Join(relay.URL)
	if err != nil {
		return fmt.Errorf("join topic %s: %w", relay.URL, err)
	}
	c.mu.Lock()
	c.topics[relay.URL] = topic
	c.mu.Unlock()

	if connect {
		return c.Connect(ctx, relay.URL)
	}
	return nil
}

func (c *SwarmClient) RemoveRelay(relay string) error {
	c.mu.Lock()
	topic, ok := c.topics[relay]
	sub := c.subs[relay]
	delete(c.topics, relay)
	delete(c.subs, relay)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("relay %s is not registered", relay)
	}
	if sub != nil {
		sub.Cancel()
	}
	return topic.Close()
}

func (c *SwarmClient) Relays() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.topics))
	for u := range c.topics {
		out = append(out, u)
	}
	return out
}

func (c *SwarmClient) Connect(ctx context.Context, relay string) error {
	c.mu.Lock()
	topic, ok := c.topics[relay]
	_, subscribed := c.subs[relay]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("relay %s is not registered", relay)
	}
	if subscribed {
		return nil
	}

	sub, err := topic.Subscribe()
	if err != nil {
		return fmt.Errorf("subscribe to topic %s: %w", relay, err)
	}
	c.mu.Lock()
	c.subs[relay] = sub
	c.mu.Unlock()

	c.wg.Add(1)
	go c.readTopic(ctx, relay, sub)

	if c.disc != nil {
		go c.disc.advertiseAndFind(ctx, relay)
	}
	c.notify(RelayStatusNotification{Relay: relay, Connected: true})
	return nil
}

func (c *SwarmClient) ConnectAll(ctx context.Context) error {
	var firstErr error
	for _, relay := range c.Relays() {
		if err := c.Connect(ctx, relay); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *SwarmClient) readTopic(ctx context.Context, relay string, sub *pubsub.Subscription) {
	defer c.wg.Done()
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.notify(RelayStatusNotification{Relay: relay, Connected: false, Err: err})
			}
			return
		}
		if msg.ReceivedFrom == c.host.ID() {
			continue // gossipsub echoes our own publishes back to us
		}

		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			c.log.Debug("malformed gossip event", "relay", relay, "error", err)
			continue
		}
		if err := event.Verify(); err != nil {
			c.log.Debug("dropping gossip event with bad signature", "relay", relay, "error", err)
			continue
		}

		c.learnPeer(event.Pubkey, msg.ReceivedFrom)
		c.recordSeenOn(event.ID, relay)
		c.notify(EventNotification{Relay: relay, Event: event})
	}
}

func (c *SwarmClient) learnPeer(pubkeyHex string, p peer.ID) {
	pk, err := trade.ParsePubkeyHex(pubkeyHex)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.peerByPK[pk] = p
	c.mu.Unlock()
}

func (c *SwarmClient) recordSeenOn(eventID, relay string) {
	if c.seenLog == nil {
		return
	}
	if err := c.seenLog.Record(eventID, relay); err != nil {
		c.log.Warn("relaylog record failed", "error", err)
	}
}

func (c *SwarmClient) SeenOn(eventID string) (trade.RelaySet, error) {
	if c.seenLog == nil {
		return trade.NewRelaySet(), nil
	}
	urls, err := c.seenLog.SeenOn(eventID)
	if err != nil {
		return nil, err
	}
	return trade.NewRelaySet(urls...), nil
}

func (c *SwarmClient) Publish(ctx context.Context, event *Event, powDifficulty uint64) (trade.RelaySet, error) {
	if event.CreatedAt == 0 {
		event.CreatedAt = time.Now().Unix()
	}
	if err := Mine(ctx, c.id, event, powDifficulty); err != nil {
		return nil, fmt.Errorf("mine event: %w", err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	published := trade.NewRelaySet()
	c.mu.Lock()
	topics := make(map[string]*pubsub.Topic, len(c.topics))
	for u, t := range c.topics {
		topics[u] = t
	}
	c.mu.Unlock()

	for relay, topic := range topics {
		if err := topic.Publish(ctx, data); err != nil {
			c.log.Warn("gossip publish failed", "relay", relay, "error", err)
			continue
		}
		published.Add(relay)
		c.recordSeenOn(event.ID, relay)
	}
	if len(published) == 0 {
		return nil, fmt.Errorf("no relay topics accepted the publish")
	}
	return published, nil
}

// QueryEvents has no meaningful equivalent over pure broadcast gossip
// (there is no durable log to query against); swarm clients rely on
// already-received broadcasts instead. It returns an empty result rather
// than erroring so a Comms actor configured with a swarm client can still
// call the same code path as a websocket-backed one.
func (c *SwarmClient) QueryEvents(ctx context.Context, filter Filter) ([]Event, error) {
	return nil, nil
}

func (c *SwarmClient) Delete(ctx context.Context, eventID string, reason string) error {
	event := &Event{Kind: EventKindDeletion, Tags: [][]string{{"e", eventID}}, Content: reason}
	_, err := c.Publish(ctx, event, 0)
	return err
}

func (c *SwarmClient) SendDirectMessage(ctx context.Context, recipient trade.Pubkey, msg trade.PeerMessage) (string, error) {
	c.mu.Lock()
	p, known := c.peerByPK[recipient]
	c.mu.Unlock()
	if !known {
		return "", fmt.Errorf("no known peer for pubkey %s; wait for a broadcast from them first", recipient)
	}

	sealed, err := EncryptDM(c.id, recipient, msg)
	if err != nil {
		return "", fmt.Errorf("encrypt direct message: %w", err)
	}

	// There is no durable broadcast event backing a direct stream, so an
	// Event is still built and signed solely to derive a stable id for
	// the caller to correlate later replies against; it is never sent.
	event := &Event{
		Kind:      EventKindEncryptedDM,
		CreatedAt: time.Now().Unix(),
		Tags:      [][]string{{"p", recipient.String()}},
		Content:   string(sealed),
	}
	if err := event.Sign(c.id); err != nil {
		return "", fmt.Errorf("sign direct message envelope: %w", err)
	}

	stream, err := c.host.NewStream(ctx, p, directMessageProtocol)
	if err != nil {
		return "", fmt.Errorf("open direct stream to %s: %w", p, err)
	}
	defer stream.Close()

	stream.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := writeLengthPrefixed(stream, sealed); err != nil {
		return "", err
	}
	return event.ID, nil
}

func (c *SwarmClient) handleDirectStream(s network.Stream) {
	defer s.Close()
	s.SetReadDeadline(time.Now().Add(60 * time.Second))

	data, err := readLengthPrefixed(bufio.NewReader(s))
	if err != nil {
		c.log.Warn("direct stream read failed", "peer", s.Conn().RemotePeer(), "error", err)
		return
	}

	c.mu.Lock()
	var sender trade.Pubkey
	for pk, p := range c.peerByPK {
		if p == s.Conn().RemotePeer() {
			sender = pk
			break
		}
	}
	c.mu.Unlock()

	// Deliver the sealed envelope unchanged, same as the websocket
	// transport's EVENT frames: decryption is the Comms actor's job so
	// both transports feed it identically shaped notifications.
	c.notify(EventNotification{
		Relay: string(directMessageProtocol),
		Event: Event{Kind: EventKindEncryptedDM, Pubkey: sender.String(), Content: string(data)},
	})
}

func (c *SwarmClient) SubscribeDirectMessages(ctx context.Context, since time.Time) error {
	// The stream handler registered in NewSwarmClient already delivers
	// every inbound direct message; nothing further to subscribe to.
	return nil
}

func (c *SwarmClient) Notifications() <-chan Notification {
	return c.notifyCh
}

func (c *SwarmClient) notify(n Notification) {
	select {
	case c.notifyCh <- n:
	default:
		c.log.Warn("notification channel full, dropping", "type", fmt.Sprintf("%T", n))
	}
}

func (c *SwarmClient) Shutdown(ctx context.Context) error {
	close(c.closeCh)
	for _, relay := range c.Relays() {
		c.RemoveRelay(relay)
	}
	c.wg.Wait()
	if c.disc != nil {
		c.disc.close()
	}
	c.host.Close()
	c.notify(ShutdownNotification{})
	close(c.notifyCh)
	return nil
}

// readLengthPrefixed reads a uint32 length-prefixed message.
func readLengthPrefixed(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("read length prefix: %w", err)
	}
	if length > 10<<20 {
		return nil, fmt.Errorf("message too large: %d bytes", length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read message body: %w", err)
	}
	return buf, nil
}

// writeLengthPrefixed writes a uint32 length-prefixed message.
func writeLengthPrefixed(w io.Writer, data []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	_, err := w.Write(data)
	return err
}
