// Package relay implements the relay client: connection management,
// event publish/query, encrypted direct messaging, and proof-of-work
// event mining.
package relay

import (
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/klingon-exchange/n3xb-core/internal/identity"
	"github.com/klingon-exchange/n3xb-core/internal/trade"
	"github.com/klingon-exchange/n3xb-core/pkg/helpers"
)

// sealedEnvelope is the wire form of an encrypted direct message.
type sealedEnvelope struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// EncryptDM encrypts msg for recipient using a secp256k1 ECDH shared
// secret and NaCl secretbox. The shared point is derived directly from
// the two parties' secp256k1 identity keys (no Ed25519-to-X25519
// conversion needed, since n3xb identities are secp256k1 x-only
// nostr-style keys from the start), and the static shared secret lets
// both sides use symmetric secretbox rather than ephemeral-key box.
func EncryptDM(id *identity.Identity, recipient trade.Pubkey, msg trade.PeerMessage) ([]byte, error) {
	plaintext, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal peer message: %w", err)
	}

	key, err := sharedKey(id, recipient)
	if err != nil {
		return nil, err
	}

	nonceBytes, err := helpers.GenerateSecureRandom(24)
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	var nonce [24]byte
	copy(nonce[:], nonceBytes)

	ciphertext := secretbox.Seal(nil, plaintext, &nonce, &key)

	return json.Marshal(sealedEnvelope{Nonce: nonce[:], Ciphertext: ciphertext})
}

// DecryptDM decrypts a sealed DM received from sender.
func DecryptDM(id *identity.Identity, sender trade.Pubkey, data []byte) (*trade.PeerMessage, error) {
	var sealed sealedEnvelope
	if err := json.Unmarshal(data, &sealed); err != nil {
		return nil, fmt.Errorf("parse sealed envelope: %w", err)
	}
	if len(sealed.Nonce) != 24 {
		return nil, fmt.Errorf("invalid nonce length %d", len(sealed.Nonce))
	}

	key, err := sharedKey(id, sender)
	if err != nil {
		return nil, err
	}

	var nonce [24]byte
	copy(nonce[:], sealed.Nonce)

	plaintext, ok := secretbox.Open(nil, sealed.Ciphertext, &nonce, &key)
	if !ok {
		return nil, fmt.Errorf("decryption failed")
	}

	var msg trade.PeerMessage
	if err := json.Unmarshal(plaintext, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal peer message: %w", err)
	}
	return &msg, nil
}

// sharedKey derives the secretbox key from the ECDH shared secret
// between id's private key and peer's x-only public key.
func sharedKey(id *identity.Identity, peer trade.Pubkey) ([32]byte, error) {
	var key [32]byte

	peerPub, err := identity.FullPubKey(peer)
	if err != nil {
		return key, fmt.Errorf("parse peer pubkey: %w", err)
	}

	secret := btcec.GenerateSharedSecret(id.SecretKey(), peerPub)
	copy(key[:], secret)
	return key, nil
}
