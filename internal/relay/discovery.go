package relay

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	drouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	dutil "github.com/libp2p/go-libp2p/p2p/discovery/util"

	"github.com/klingon-exchange/n3xb-core/pkg/logging"
)

const dhtProtocolPrefix = "/n3xb"

// discovery wires peer discovery for a SwarmClient's libp2p host: a
// Kademlia DHT for internet-wide rendezvous advertising, and mDNS for
// same-network peers, mirroring the node's dual-discovery setup.
type discovery struct {
	host host.Host
	dht  *dht.IpfsDHT
	disc *drouting.RoutingDiscovery
	mdns mdns.Service
	log  *logging.Logger
}

func newDiscovery(ctx context.Context, h host.Host, log *logging.Logger) (*discovery, error) {
	kad, err := dht.New(ctx, h, dht.Mode(dht.ModeAutoServer), dht.ProtocolPrefix(protocol.ID(dhtProtocolPrefix)))
	if err != nil {
		return nil, fmt.Errorf("create dht: %w", err)
	}
	if err := kad.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap dht: %w", err)
	}

	d := &discovery{
		host: h,
		dht:  kad,
		disc: drouting.NewRoutingDiscovery(kad),
		log:  log,
	}

	d.mdns = mdns.NewMdnsService(h, "n3xb-relay", d)
	if err := d.mdns.Start(); err != nil {
		d.log.Warn("mDNS start failed, continuing with DHT only", "error", err)
	}
	return d, nil
}

// HandlePeerFound implements mdns.Notifee.
func (d *discovery) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == d.host.ID() {
		return
	}
	d.host.Peerstore().AddAddrs(pi.ID, pi.Addrs, peerstore.PermanentAddrTTL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.host.Connect(ctx, pi); err != nil {
		d.log.Debug("mDNS peer connect failed", "peer", pi.ID, "error", err)
	}
}

// advertiseAndFind advertises the relay's rendezvous string over the DHT
// and connects to any peers it finds, once.
func (d *discovery) advertiseAndFind(ctx context.Context, relay string) {
	dutil.Advertise(ctx, d.disc, relay)

	peers, err := dutil.FindPeers(ctx, d.disc, relay)
	if err != nil {
		d.log.Debug("dht peer discovery failed", "relay", relay, "error", err)
		return
	}
	for _, pi := range peers {
		if pi.ID == d.host.ID() {
			continue
		}
		go func(pi peer.AddrInfo) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			d.host.Connect(ctx, pi)
		}(pi)
	}
}

func (d *discovery) close() {
	if d.mdns != nil {
		d.mdns.Close()
	}
	if d.dht != nil {
		d.dht.Close()
	}
}

// deterministicReader is a seeded, infinite byte stream used to derive a
// reproducible libp2p Ed25519 keypair from an n3xb secret key, so no
// second on-disk key file is needed for the swarm transport.
type deterministicReader struct {
	seed    []byte
	counter uint64
	buf     []byte
}

func newDeterministicReader(seed []byte) io.Reader {
	return &deterministicReader{seed: seed}
}

func (r *deterministicReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(r.buf) == 0 {
			h := sha256.New()
			h.Write(r.seed)
			h.Write([]byte{byte(r.counter), byte(r.counter >> 8), byte(r.counter >> 16), byte(r.counter >> 24)})
			r.buf = h.Sum(nil)
			r.counter++
		}
		copied := copy(p[n:], r.buf)
		r.buf = r.buf[copied:]
		n += copied
	}
	return n, nil
}
