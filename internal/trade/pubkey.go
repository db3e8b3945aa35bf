package trade

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Pubkey is a 32-byte x-only secp256k1 public key, the wire representation
// of a peer's identity.
type Pubkey [32]byte

// ParsePubkeyHex parses a hex-encoded x-only public key.
func ParsePubkeyHex(s string) (Pubkey, error) {
	var out Pubkey
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("decode pubkey: %w", err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("pubkey must be 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// String returns the hex encoding of the pubkey.
func (p Pubkey) String() string {
	return hex.EncodeToString(p[:])
}

// MarshalJSON renders the pubkey as a hex string.
func (p Pubkey) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON parses a hex-string pubkey.
func (p *Pubkey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePubkeyHex(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
