package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/n3xb-core/internal/identity"
)

func TestEventSignAssignsIDAndSignature(t *testing.T) {
	id, err := identity.New()
	require.NoError(t, err)

	event := &Event{
		Kind:      EventKindMakerOrder,
		CreatedAt: 1700000000,
		Content:   "hello",
		Tags:      [][]string{{"k", "MakerOrder"}},
	}
	require.NoError(t, event.Sign(id))

	assert.NotEmpty(t, event.ID)
	assert.NotEmpty(t, event.Sig)
	assert.Equal(t, id.Pubkey().String(), event.Pubkey)
}

func TestEventVerifyRoundTrips(t *testing.T) {
	id, err := identity.New()
	require.NoError(t, err)

	event := &Event{Kind: EventKindMakerOrder, CreatedAt: 1700000000, Content: "hello"}
	require.NoError(t, event.Sign(id))
	assert.NoError(t, event.Verify())
}

func TestEventVerifyDetectsTamperedContent(t *testing.T) {
	id, err := identity.New()
	require.NoError(t, err)

	event := &Event{Kind: EventKindMakerOrder, CreatedAt: 1700000000, Content: "hello"}
	require.NoError(t, event.Sign(id))

	event.Content = "tampered"
	assert.Error(t, event.Verify())
}

func TestEventVerifyDetectsForeignSignature(t *testing.T) {
	id, err := identity.New()
	require.NoError(t, err)
	other, err := identity.New()
	require.NoError(t, err)

	event := &Event{Kind: EventKindMakerOrder, CreatedAt: 1700000000, Content: "hello"}
	require.NoError(t, event.Sign(id))

	otherEvent := &Event{Kind: EventKindMakerOrder, CreatedAt: 1700000000, Content: "hello"}
	require.NoError(t, otherEvent.Sign(other))

	event.Sig = otherEvent.Sig
	assert.Error(t, event.Verify())
}

func TestEventTagAndTagValues(t *testing.T) {
	event := &Event{Tags: [][]string{{"k", "MakerOrder"}, {"d", "trade-1"}, {"p", "pub1", "pub2"}}}

	assert.Equal(t, []string{"k", "MakerOrder"}, event.Tag("k"))
	assert.Nil(t, event.Tag("missing"))
	assert.Equal(t, []string{"pub1", "pub2"}, event.TagValues("p"))
}
