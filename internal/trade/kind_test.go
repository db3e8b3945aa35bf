package trade

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObligationKindStringAndChain(t *testing.T) {
	k := Fiat("USD", "Venmo")
	assert.Equal(t, "Fiat-USD-Venmo", k.String())
	assert.Equal(t, []string{"Fiat", "USD", "Venmo"}, k.Chain())
}

func TestObligationKindBareBitcoin(t *testing.T) {
	k := Bitcoin("")
	assert.Equal(t, "Bitcoin", k.String())
}

func TestObligationKindEqual(t *testing.T) {
	a := Fiat("USD", "Venmo")
	b := ParseObligationKindChain([]string{"Fiat", "USD", "Venmo"})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(Fiat("EUR", "Venmo")))
}

func TestObligationKindJSONRoundTrip(t *testing.T) {
	k := Fiat("USD", "Venmo")
	data, err := json.Marshal(k)
	require.NoError(t, err)
	assert.Equal(t, `"Fiat-USD-Venmo"`, string(data))

	var decoded ObligationKind
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, k.Equal(decoded))
}

func TestObligationSetTopLevelCategory(t *testing.T) {
	set := NewObligationSet(Fiat("USD", ""), Fiat("EUR", "Venmo"))
	cat, ok := set.TopLevelCategory()
	require.True(t, ok)
	assert.Equal(t, CategoryFiat, cat)

	mixed := NewObligationSet(Fiat("USD", ""), Bitcoin("Lightning"))
	_, ok = mixed.TopLevelCategory()
	assert.False(t, ok)

	empty := NewObligationSet()
	_, ok = empty.TopLevelCategory()
	assert.False(t, ok)
}

func TestObligationSetContainsAndAdd(t *testing.T) {
	set := NewObligationSet(Bitcoin(""))
	assert.True(t, set.Contains(Bitcoin("")))
	assert.False(t, set.Contains(Bitcoin("Lightning")))

	set.Add(Bitcoin("Lightning"))
	assert.True(t, set.Contains(Bitcoin("Lightning")))
}

func TestObligationSetJSONRoundTrip(t *testing.T) {
	set := NewObligationSet(Fiat("USD", ""), Bitcoin("Lightning"))
	data, err := json.Marshal(set)
	require.NoError(t, err)

	var decoded ObligationSet
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Contains(Fiat("USD", "")))
	assert.True(t, decoded.Contains(Bitcoin("Lightning")))
	assert.Len(t, decoded, 2)
}
