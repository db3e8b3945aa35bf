// Package ordertag implements the bidirectional mapping between an Order's
// typed attributes and the single-letter-keyed tag set attached to the
// published relay event, plus the FilterTag helpers used to query for
// orders by those same attributes.
package ordertag

import (
	"fmt"
	"strings"

	"github.com/klingon-exchange/n3xb-core/internal/trade"
)

// Tag keys, one character each, matching the wire convention.
const (
	KeyTradeUUID         = "i"
	KeyMakerObligations   = "m"
	KeyTakerObligations   = "t"
	KeyParameters         = "p"
	KeyEngineName         = "n"
	KeyEventKind          = "k"
	KeyApplicationTag     = "d"
)

// EventKindMakerOrder is the sole currently defined `k` tag value.
const EventKindMakerOrder = "MakerOrder"

// ApplicationTag is the constant `d` tag value identifying n3xb events.
const ApplicationTag = "n3xb"

// Tag is one key plus its set of values as attached to a published event.
type Tag struct {
	Key    string
	Values []string
}

// Set is the full tag-set of a published order, keyed by tag key.
type Set map[string][]string

// Slice renders the set as an ordered list of Tags, one per populated key,
// in wire order (i, m, t, p, n, k, d).
func (s Set) Slice() []Tag {
	order := []string{KeyTradeUUID, KeyMakerObligations, KeyTakerObligations, KeyParameters, KeyEngineName, KeyEventKind, KeyApplicationTag}
	out := make([]Tag, 0, len(order))
	for _, k := range order {
		if vals, ok := s[k]; ok {
			out = append(out, Tag{Key: k, Values: vals})
		}
	}
	return out
}

// EncodeOrder builds the full tag-set for publishing order.
func EncodeOrder(order trade.Order) Set {
	set := Set{
		KeyTradeUUID:       {order.TradeUUID.String()},
		KeyMakerObligations: expandKindSet(order.MakerObligation.Kinds),
		KeyTakerObligations: expandKindSet(order.TakerObligation.Kinds),
		KeyParameters:       expandParameterSet(order.TradeDetails.Parameters),
		KeyEngineName:       {order.EngineName},
		KeyEventKind:        {EventKindMakerOrder},
		KeyApplicationTag:   {ApplicationTag},
	}
	return set
}

// expandKindSet expands every ObligationKind in the set to all of its
// prefix-chain levels, e.g. Bitcoin-Lightning expands to both "Bitcoin"
// and "Bitcoin-Lightning", so a set-intersection filter on the bare
// category still matches.
func expandKindSet(kinds trade.ObligationSet) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, k := range kinds.Slice() {
		for _, prefix := range chainPrefixes(k.Chain()) {
			if _, ok := seen[prefix]; !ok {
				seen[prefix] = struct{}{}
				out = append(out, prefix)
			}
		}
	}
	return out
}

// expandParameterSet expands every Parameter to its bare name and, if it
// carries a sub-value, the suffixed form too.
func expandParameterSet(params trade.ParameterSet) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range params.Slice() {
		for _, prefix := range parameterPrefixes(p) {
			if _, ok := seen[prefix]; !ok {
				seen[prefix] = struct{}{}
				out = append(out, prefix)
			}
		}
	}
	return out
}

func chainPrefixes(chain []string) []string {
	out := make([]string, 0, len(chain))
	for i := 1; i <= len(chain); i++ {
		out = append(out, strings.Join(chain[:i], "-"))
	}
	return out
}

func parameterPrefixes(p trade.Parameter) []string {
	if p.Value == "" {
		return []string{p.Name}
	}
	return []string{p.Name, p.Name + "-" + p.Value}
}

// leaves returns the subset of values that are not a strict prefix
// (followed by "-") of any other value in the set. This is the inverse of
// chainPrefixes/parameterPrefixes: given the full expanded set written to
// the wire, the leaves are exactly the original, most-specific values.
func leaves(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		isPrefixOfAnother := false
		for _, w := range values {
			if v != w && strings.HasPrefix(w, v+"-") {
				isPrefixOfAnother = true
				break
			}
		}
		if !isPrefixOfAnother {
			out = append(out, v)
		}
	}
	return out
}

// Decoded holds the subset of an Order's fields recoverable purely from
// its tag-set, without the event's content body.
type Decoded struct {
	TradeUUID        string
	MakerObligations trade.ObligationSet
	TakerObligations trade.ObligationSet
	Parameters       trade.ParameterSet
	EngineName       string
}

// Decode reconstructs a Decoded view of an Order from its tag-set.
func Decode(set Set) (Decoded, error) {
	var d Decoded

	ids := set[KeyTradeUUID]
	if len(ids) == 0 {
		return d, fmt.Errorf("ordertag: missing %q tag", KeyTradeUUID)
	}
	d.TradeUUID = ids[0]

	d.MakerObligations = decodeKindSet(set[KeyMakerObligations])
	d.TakerObligations = decodeKindSet(set[KeyTakerObligations])
	d.Parameters = decodeParameterSet(set[KeyParameters])

	if names := set[KeyEngineName]; len(names) > 0 {
		d.EngineName = names[0]
	}

	return d, nil
}

func decodeKindSet(values []string) trade.ObligationSet {
	set := trade.NewObligationSet()
	for _, leaf := range leaves(values) {
		set.Add(trade.ParseObligationKindChain(strings.Split(leaf, "-")))
	}
	return set
}

func decodeParameterSet(values []string) trade.ParameterSet {
	set := trade.NewParameterSet()
	for _, leaf := range leaves(values) {
		parts := strings.SplitN(leaf, "-", 2)
		if len(parts) == 1 {
			set.Add(trade.NewParameter(parts[0]))
		} else {
			set.Add(trade.NewValuedParameter(parts[0], parts[1]))
		}
	}
	return set
}

// FilterTag is a caller-supplied constraint on one tag key, used to build
// relay-level query filters. A query matches an event iff its tag-set
// contains every value listed for every FilterTag key.
type FilterTag struct {
	Key    string
	Values []string
}

// TradeUUIDFilter constrains results to one trade UUID.
func TradeUUIDFilter(tradeUUID string) FilterTag {
	return FilterTag{Key: KeyTradeUUID, Values: []string{tradeUUID}}
}

// ObligationFilter constrains results to orders whose obligation set
// (maker or taker, per key) includes the given kind at any prefix depth.
func ObligationFilter(key string, kind trade.ObligationKind) FilterTag {
	return FilterTag{Key: key, Values: []string{kind.String()}}
}

// ParameterFilter constrains results to orders carrying the given parameter.
func ParameterFilter(p trade.Parameter) FilterTag {
	return FilterTag{Key: KeyParameters, Values: []string{p.String()}}
}

// EngineNameFilter constrains results to orders naming a specific trade engine.
func EngineNameFilter(name string) FilterTag {
	return FilterTag{Key: KeyEngineName, Values: []string{name}}
}

// ApplicationTagFilter constrains results to n3xb-application events. Most
// queries should include it to exclude unrelated relay traffic.
func ApplicationTagFilter() FilterTag {
	return FilterTag{Key: KeyApplicationTag, Values: []string{ApplicationTag}}
}

// ToRelayFilter converts a list of FilterTag into the relay client's
// tag-filter representation: one "#<key>" entry per FilterTag, with
// values from multiple FilterTags sharing a key merged together.
func ToRelayFilter(filters []FilterTag) map[string][]string {
	out := make(map[string][]string)
	for _, f := range filters {
		key := "#" + f.Key
		out[key] = append(out[key], f.Values...)
	}
	return out
}
