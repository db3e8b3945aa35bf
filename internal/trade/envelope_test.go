package trade

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelaySetUnion(t *testing.T) {
	a := NewRelaySet("wss://a", "wss://b")
	b := NewRelaySet("wss://b", "wss://c")

	union := a.Union(b)
	assert.ElementsMatch(t, []string{"wss://a", "wss://b", "wss://c"}, union.Slice())

	// The receiver is untouched by Union.
	assert.ElementsMatch(t, []string{"wss://a", "wss://b"}, a.Slice())
}

func TestRelaySetJSONRoundTripIsSorted(t *testing.T) {
	set := NewRelaySet("wss://b", "wss://a")
	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.Equal(t, `["wss://a","wss://b"]`, string(data))

	var decoded RelaySet
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.ElementsMatch(t, []string{"wss://a", "wss://b"}, decoded.Slice())
}

func TestRelaySetAdd(t *testing.T) {
	set := NewRelaySet()
	set.Add("wss://a")
	assert.ElementsMatch(t, []string{"wss://a"}, set.Slice())
}
