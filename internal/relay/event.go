package relay

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/klingon-exchange/n3xb-core/internal/identity"
	"github.com/klingon-exchange/n3xb-core/internal/trade"
)

// Event kinds used on the wire. MakerOrder is a parameterized-replaceable
// kind (NIP-33 style); EncryptedDM and Deletion follow NIP-04 and NIP-09.
const (
	EventKindMakerOrder  = 30078
	EventKindEncryptedDM = 4
	EventKindDeletion    = 5
)

// Event is a signed, relay-broadcast message: an order note or an
// encrypted direct message, addressed and deduplicated by ID.
type Event struct {
	ID        string     `json:"id"`
	Pubkey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// serializationTuple is the fixed six-element array the event ID digest
// is computed over.
func (e *Event) serializationTuple() []interface{} {
	return []interface{}{0, e.Pubkey, e.CreatedAt, e.Kind, e.Tags, e.Content}
}

// computeID sets e.ID to the hex sha256 digest of the event's canonical
// serialization.
func (e *Event) computeID() error {
	tuple, err := json.Marshal(e.serializationTuple())
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}
	digest := sha256.Sum256(tuple)
	e.ID = hex.EncodeToString(digest[:])
	return nil
}

// Sign computes the event ID and a schnorr signature over it, using id's
// secret key. Pubkey is set from id.
func (e *Event) Sign(id *identity.Identity) error {
	e.Pubkey = id.Pubkey().String()
	if err := e.computeID(); err != nil {
		return err
	}

	digest, err := hex.DecodeString(e.ID)
	if err != nil {
		return fmt.Errorf("decode event id: %w", err)
	}

	sig, err := schnorr.Sign(id.SecretKey(), digest)
	if err != nil {
		return fmt.Errorf("sign event: %w", err)
	}
	e.Sig = hex.EncodeToString(sig.Serialize())
	return nil
}

// Verify checks that e.ID matches its content and e.Sig is a valid
// schnorr signature over it by e.Pubkey.
func (e *Event) Verify() error {
	want := e.ID
	if err := e.computeID(); err != nil {
		return err
	}
	if e.ID != want {
		e.ID = want
		return fmt.Errorf("event id mismatch: content does not hash to claimed id")
	}

	pubkeyRaw, err := trade.ParsePubkeyHex(e.Pubkey)
	if err != nil {
		return fmt.Errorf("parse event pubkey: %w", err)
	}
	pubkey, err := identity.FullPubKey(pubkeyRaw)
	if err != nil {
		return fmt.Errorf("reconstruct event pubkey: %w", err)
	}

	sigRaw, err := hex.DecodeString(e.Sig)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	sig, err := schnorr.ParseSignature(sigRaw)
	if err != nil {
		return fmt.Errorf("parse signature: %w", err)
	}

	digest, err := hex.DecodeString(e.ID)
	if err != nil {
		return fmt.Errorf("decode event id: %w", err)
	}
	if !sig.Verify(digest, pubkey) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}

// Tag returns the first tag matching key, or nil.
func (e *Event) Tag(key string) []string {
	for _, t := range e.Tags {
		if len(t) > 0 && t[0] == key {
			return t
		}
	}
	return nil
}

// TagValues returns the values (everything after the key) of every tag
// matching key, flattened.
func (e *Event) TagValues(key string) []string {
	var out []string
	for _, t := range e.Tags {
		if len(t) > 1 && t[0] == key {
			out = append(out, t[1:]...)
		}
	}
	return out
}
