package relay

import (
	"context"
	"time"

	"github.com/klingon-exchange/n3xb-core/internal/trade"
)

// RelayURL identifies a relay, optionally reached through a proxy.
type RelayURL struct {
	URL   string
	Proxy string // empty means direct connection
}

// Filter narrows a QueryEvents or Subscribe call. Tags is a relay-filter
// map built by the ordertag codec's ToRelayFilter, e.g. {"#k": ["MakerOrder"]}.
type Filter struct {
	Kinds   []int
	Tags    map[string][]string
	Since   *time.Time
	Authors []trade.Pubkey
}

// Notification is delivered to a Client's notification channel whenever
// the relay connection observes something the Comms actor's main loop
// needs to react to.
type Notification interface{ isNotification() }

// EventNotification carries an event received from relay.
type EventNotification struct {
	Relay string
	Event Event
}

func (EventNotification) isNotification() {}

// RelayStatusNotification reports a connect/disconnect transition.
type RelayStatusNotification struct {
	Relay     string
	Connected bool
	Err       error
}

func (RelayStatusNotification) isNotification() {}

// ShutdownNotification is sent once after Shutdown completes, then the
// notification channel is closed.
type ShutdownNotification struct{}

func (ShutdownNotification) isNotification() {}

// Client is the relay-facing side of the Comms actor: connection
// management, event publish/query, and encrypted direct messaging. Every
// operation serializes its own relay I/O; the Comms actor is the sole
// caller and treats Client as not safe for concurrent use from multiple
// goroutines beyond that single owner, matching the ownership model of
// the internal/router package.
type Client interface {
	// AddRelay registers a relay (connecting immediately if connect is true).
	AddRelay(ctx context.Context, relay RelayURL, connect bool) error
	// RemoveRelay disconnects and deregisters a relay.
	RemoveRelay(relay string) error
	// Relays returns the currently registered relay URLs.
	Relays() []string
	// Connect dials a single registered relay.
	Connect(ctx context.Context, relay string) error
	// ConnectAll dials every registered relay not already connected.
	ConnectAll(ctx context.Context) error

	// Publish signs and mines event (if PowDifficulty > 0) and broadcasts
	// it to every connected relay, returning the relays it was sent to;
	// relay acknowledgements are not awaited.
	Publish(ctx context.Context, event *Event, powDifficulty uint64) (trade.RelaySet, error)
	// QueryEvents issues a time-bounded filtered query across connected
	// relays and returns the deduplicated results.
	QueryEvents(ctx context.Context, filter Filter) ([]Event, error)
	// SeenOn returns every relay that has reported eventID.
	SeenOn(eventID string) (trade.RelaySet, error)
	// Delete publishes a NIP-09-style deletion event referencing eventID.
	Delete(ctx context.Context, eventID string, reason string) error

	// SendDirectMessage encrypts msg for recipient and publishes it as an
	// encrypted-direct-message kind event, returning the event-id it was
	// assigned so the caller can correlate later replies against it.
	SendDirectMessage(ctx context.Context, recipient trade.Pubkey, msg trade.PeerMessage) (string, error)
	// SubscribeDirectMessages starts a subscription matching encrypted
	// direct messages addressed to the client's own identity since the
	// given time; notifications are delivered via Notifications().
	SubscribeDirectMessages(ctx context.Context, since time.Time) error

	// Notifications returns the channel the Comms actor selects on
	// alongside its request mailbox.
	Notifications() <-chan Notification

	// Shutdown disconnects every relay and stops delivering notifications.
	Shutdown(ctx context.Context) error
}
