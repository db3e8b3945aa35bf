package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/n3xb-core/internal/identity"
	"github.com/klingon-exchange/n3xb-core/internal/trade"
)

func samplePeerMessage(t *testing.T) trade.PeerMessage {
	t.Helper()
	msg, err := trade.NewPeerMessage(nil, "order-evt", trade.NewTradeUUID(), trade.MessageTypeTakerOffer, map[string]string{"hello": "world"})
	require.NoError(t, err)
	return *msg
}

func TestEncryptDecryptDMRoundTrips(t *testing.T) {
	sender, err := identity.New()
	require.NoError(t, err)
	recipient, err := identity.New()
	require.NoError(t, err)

	msg := samplePeerMessage(t)

	sealed, err := EncryptDM(sender, recipient.Pubkey(), msg)
	require.NoError(t, err)
	assert.NotEmpty(t, sealed)

	decrypted, err := DecryptDM(recipient, sender.Pubkey(), sealed)
	require.NoError(t, err)
	assert.Equal(t, msg.TradeUUID, decrypted.TradeUUID)
	assert.Equal(t, msg.MessageType, decrypted.MessageType)
}

func TestDecryptDMFailsForWrongRecipient(t *testing.T) {
	sender, err := identity.New()
	require.NoError(t, err)
	recipient, err := identity.New()
	require.NoError(t, err)
	bystander, err := identity.New()
	require.NoError(t, err)

	msg := samplePeerMessage(t)
	sealed, err := EncryptDM(sender, recipient.Pubkey(), msg)
	require.NoError(t, err)

	_, err = DecryptDM(bystander, sender.Pubkey(), sealed)
	assert.Error(t, err)
}

func TestSharedKeyIsSymmetric(t *testing.T) {
	a, err := identity.New()
	require.NoError(t, err)
	b, err := identity.New()
	require.NoError(t, err)

	keyAB, err := sharedKey(a, b.Pubkey())
	require.NoError(t, err)
	keyBA, err := sharedKey(b, a.Pubkey())
	require.NoError(t, err)

	assert.Equal(t, keyAB, keyBA)
}
