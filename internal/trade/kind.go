package trade

import (
	"encoding/json"
	"sort"
	"strings"
)

// ObligationCategory is the top-level prefix of an ObligationKind chain.
type ObligationCategory string

const (
	CategoryBitcoin ObligationCategory = "Bitcoin"
	CategoryFiat    ObligationCategory = "Fiat"
	CategoryCustom  ObligationCategory = "Custom"
)

// ObligationKind is a settlement asset + method, represented as a prefix
// chain (e.g. Bitcoin-Lightning, Fiat-USD-Venmo, Custom-my-method).
type ObligationKind struct {
	Category ObligationCategory
	Params   []string
}

// Bitcoin builds a Bitcoin obligation kind. settlementMethod may be empty
// for the bare "Bitcoin" kind.
func Bitcoin(settlementMethod string) ObligationKind {
	if settlementMethod == "" {
		return ObligationKind{Category: CategoryBitcoin}
	}
	return ObligationKind{Category: CategoryBitcoin, Params: []string{settlementMethod}}
}

// Fiat builds a Fiat obligation kind. paymentMethod may be empty.
func Fiat(currencyCode, paymentMethod string) ObligationKind {
	params := []string{currencyCode}
	if paymentMethod != "" {
		params = append(params, paymentMethod)
	}
	return ObligationKind{Category: CategoryFiat, Params: params}
}

// Custom builds a Custom obligation kind from an opaque string.
func Custom(value string) ObligationKind {
	return ObligationKind{Category: CategoryCustom, Params: []string{value}}
}

// Chain returns the full prefix chain, category first.
func (k ObligationKind) Chain() []string {
	chain := make([]string, 0, len(k.Params)+1)
	chain = append(chain, string(k.Category))
	chain = append(chain, k.Params...)
	return chain
}

// String returns the dash-joined chain, e.g. "Fiat-USD-Venmo".
func (k ObligationKind) String() string {
	return strings.Join(k.Chain(), "-")
}

// Equal reports whether two obligation kinds have the same chain.
func (k ObligationKind) Equal(other ObligationKind) bool {
	return k.String() == other.String()
}

// MarshalJSON renders the kind as its dash-joined chain string.
func (k ObligationKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses a dash-joined chain string back into a kind.
func (k *ObligationKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*k = ParseObligationKindChain(strings.Split(s, "-"))
	return nil
}

// ParseObligationKindChain reconstructs an ObligationKind from a full,
// already-resolved chain (category + params), as produced by regrouping
// tag values to their leaf (most specific) chain.
func ParseObligationKindChain(chain []string) ObligationKind {
	if len(chain) == 0 {
		return ObligationKind{}
	}
	return ObligationKind{Category: ObligationCategory(chain[0]), Params: append([]string{}, chain[1:]...)}
}

// ObligationSet is a set of ObligationKind, keyed by their String() form.
type ObligationSet map[string]ObligationKind

// NewObligationSet builds a set from the given kinds.
func NewObligationSet(kinds ...ObligationKind) ObligationSet {
	set := make(ObligationSet, len(kinds))
	for _, k := range kinds {
		set[k.String()] = k
	}
	return set
}

// Add inserts a kind into the set.
func (s ObligationSet) Add(k ObligationKind) {
	s[k.String()] = k
}

// Contains reports whether the set has the exact kind.
func (s ObligationSet) Contains(k ObligationKind) bool {
	_, ok := s[k.String()]
	return ok
}

// Slice returns the set's members in no particular order.
func (s ObligationSet) Slice() []ObligationKind {
	out := make([]ObligationKind, 0, len(s))
	for _, k := range s {
		out = append(out, k)
	}
	return out
}

// TopLevelCategory validates that every kind in the set shares the same
// top-level category, and returns it. Returns false for an empty set.
func (s ObligationSet) TopLevelCategory() (ObligationCategory, bool) {
	var cat ObligationCategory
	first := true
	for _, k := range s {
		if first {
			cat = k.Category
			first = false
			continue
		}
		if k.Category != cat {
			return "", false
		}
	}
	return cat, !first
}

// MarshalJSON renders the set as a sorted array of chain strings.
func (s ObligationSet) MarshalJSON() ([]byte, error) {
	strs := make([]string, 0, len(s))
	for _, k := range s {
		strs = append(strs, k.String())
	}
	sort.Strings(strs)
	return json.Marshal(strs)
}

// UnmarshalJSON rebuilds the set from an array of chain strings.
func (s *ObligationSet) UnmarshalJSON(data []byte) error {
	var strs []string
	if err := json.Unmarshal(data, &strs); err != nil {
		return err
	}
	set := make(ObligationSet, len(strs))
	for _, str := range strs {
		k := ParseObligationKindChain(strings.Split(str, "-"))
		set[k.String()] = k
	}
	*s = set
	return nil
}
