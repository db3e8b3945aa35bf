package relay

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/klingon-exchange/n3xb-core/internal/identity"
)

// DefaultPowDifficulty is the event-builder difficulty used when an
// application does not configure one.
const DefaultPowDifficulty = 8

// tagKeyNonce is the NIP-13 proof-of-work nonce tag key: ["nonce", "<n>", "<difficulty>"].
const tagKeyNonce = "nonce"

// Mine repeatedly re-signs event with an incrementing nonce tag until its
// ID has at least difficulty leading zero bits, per the NIP-13 convention
// nostr-style relay clients build against.
func Mine(ctx context.Context, id *identity.Identity, event *Event, difficulty uint64) error {
	if difficulty == 0 {
		return event.Sign(id)
	}

	var nonce uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		event.Tags = setTag(event.Tags, tagKeyNonce, strconv.FormatUint(nonce, 10), strconv.FormatUint(difficulty, 10))
		if err := event.Sign(id); err != nil {
			return fmt.Errorf("mine: sign attempt: %w", err)
		}
		if leadingZeroBits(event.ID) >= difficulty {
			return nil
		}
		nonce++
	}
}

// setTag replaces the first tag matching key, or appends a new one.
func setTag(tags [][]string, key string, values ...string) [][]string {
	tag := append([]string{key}, values...)
	for i, t := range tags {
		if len(t) > 0 && t[0] == key {
			tags[i] = tag
			return tags
		}
	}
	return append(tags, tag)
}

// leadingZeroBits counts the leading zero bits of a hex-encoded digest.
func leadingZeroBits(hexDigest string) uint64 {
	raw, err := hex.DecodeString(hexDigest)
	if err != nil {
		return 0
	}

	var count uint64
	for _, b := range raw {
		if b == 0 {
			count += 8
			continue
		}
		for bit := 7; bit >= 0; bit-- {
			if b&(1<<uint(bit)) != 0 {
				return count
			}
			count++
		}
	}
	return count
}
