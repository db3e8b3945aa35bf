package relay

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/n3xb-core/internal/identity"
	"github.com/klingon-exchange/n3xb-core/pkg/logging"
)

func newTestWSClient(t *testing.T) *WSClient {
	t.Helper()
	id, err := identity.New()
	require.NoError(t, err)
	return NewWSClient(id, logging.GetDefault(), nil)
}

func TestHandleFrameEventNotifiesOnValidSignature(t *testing.T) {
	c := newTestWSClient(t)
	signer, err := identity.New()
	require.NoError(t, err)

	event := &Event{Kind: EventKindMakerOrder, CreatedAt: 1700000000, Content: "hello"}
	require.NoError(t, event.Sign(signer))

	eventJSON, err := marshalFrame("EVENT", "sub-1", event)
	require.NoError(t, err)
	c.handleFrame("wss://relay.example", eventJSON)

	select {
	case n := <-c.notifyCh:
		evNotif, ok := n.(EventNotification)
		require.True(t, ok)
		assert.Equal(t, event.ID, evNotif.Event.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event notification")
	}
}

func TestHandleFrameEventDropsBadSignature(t *testing.T) {
	c := newTestWSClient(t)
	signer, err := identity.New()
	require.NoError(t, err)

	event := &Event{Kind: EventKindMakerOrder, CreatedAt: 1700000000, Content: "hello"}
	require.NoError(t, event.Sign(signer))
	event.Content = "tampered"

	eventJSON, err := marshalFrame("EVENT", "sub-1", event)
	require.NoError(t, err)
	c.handleFrame("wss://relay.example", eventJSON)

	select {
	case <-c.notifyCh:
		t.Fatal("expected no notification for a tampered event")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleFrameOKDeliversToPendingChannel(t *testing.T) {
	c := newTestWSClient(t)
	ch := make(chan okResult, 1)
	c.pendingMu.Lock()
	c.pending["evt-1"] = ch
	c.pendingMu.Unlock()

	okJSON, err := marshalFrame("OK", "evt-1", true, "")
	require.NoError(t, err)
	c.handleFrame("wss://relay.example", okJSON)

	select {
	case res := <-ch:
		assert.True(t, res.accepted)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for OK delivery")
	}
}

func TestBuildReqFrameIncludesFilterFields(t *testing.T) {
	since := time.Unix(1700000000, 0)
	frame := buildReqFrame("sub-1", Filter{
		Kinds: []int{EventKindMakerOrder},
		Since: &since,
		Tags:  map[string][]string{"#k": {"MakerOrder"}},
	})

	require.Len(t, frame, 3)
	assert.Equal(t, "REQ", frame[0])
	assert.Equal(t, "sub-1", frame[1])

	filterMap, ok := frame[2].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, filterMap, "kinds")
	assert.Contains(t, filterMap, "since")
	assert.Contains(t, filterMap, "#k")
}

func TestToHTTPConvertsScheme(t *testing.T) {
	httpURL, err := toHTTP("wss://relay.example/path")
	require.NoError(t, err)
	assert.Equal(t, "https://relay.example/path", httpURL)

	httpURL, err = toHTTP("ws://relay.example")
	require.NoError(t, err)
	assert.Equal(t, "http://relay.example", httpURL)
}

// marshalFrame builds a relay wire frame ["KIND", ...values] as JSON,
// matching the shape handleFrame parses.
func marshalFrame(kind string, values ...interface{}) ([]byte, error) {
	frame := append([]interface{}{kind}, values...)
	return json.Marshal(frame)
}
