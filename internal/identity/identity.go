// Package identity manages the secp256k1 keypair that an application uses
// to publish orders, query for orders, and exchange encrypted direct
// messages with counterparties.
package identity

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/klingon-exchange/n3xb-core/internal/trade"
)

// Identity holds a secret key and its derived x-only public key.
type Identity struct {
	secretKey *btcec.PrivateKey
	pubkey    trade.Pubkey
}

// New generates a fresh identity.
func New() (*Identity, error) {
	sk, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return fromPrivateKey(sk), nil
}

// FromHex reconstructs an identity from a hex-encoded 32-byte secret key.
func FromHex(s string) (*Identity, error) {
	raw, err := trade.ParsePubkeyHex(s) // reuse the 32-byte hex decode
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}
	sk, _ := btcec.PrivKeyFromBytes(raw[:])
	return fromPrivateKey(sk), nil
}

func fromPrivateKey(sk *btcec.PrivateKey) *Identity {
	pub, _ := schnorr.ParsePubKey(schnorr.SerializePubKey(sk.PubKey()))
	var arr trade.Pubkey
	copy(arr[:], schnorr.SerializePubKey(pub))
	return &Identity{secretKey: sk, pubkey: arr}
}

// LoadOrCreate reads a hex-encoded secret key from path, generating and
// persisting a new one (mode 0600) if the file does not exist yet.
func LoadOrCreate(path string) (*Identity, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}

	if data, err := os.ReadFile(path); err == nil {
		return FromHex(string(data))
	}

	id, err := New()
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, []byte(id.SecretKeyHex()), 0600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}

	return id, nil
}

// SecretKey returns the underlying secp256k1 private key.
func (id *Identity) SecretKey() *btcec.PrivateKey {
	return id.secretKey
}

// SecretKeyHex returns the 32-byte secret key hex-encoded.
func (id *Identity) SecretKeyHex() string {
	return trade.Pubkey(id.secretKey.Key.Bytes()).String()
}

// Pubkey returns the x-only public key.
func (id *Identity) Pubkey() trade.Pubkey {
	return id.pubkey
}

// FullPubKey reconstructs the full (even-y) secp256k1 public key from an
// x-only pubkey, needed for ECDH.
func FullPubKey(xonly trade.Pubkey) (*btcec.PublicKey, error) {
	return schnorr.ParsePubKey(xonly[:])
}
