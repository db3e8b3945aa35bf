package trade

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	Foo string `json:"foo"`
}

func TestEngineSpecificsMarshalMergesTypeAndPayload(t *testing.T) {
	es, err := NewEngineSpecifics("sample", samplePayload{Foo: "bar"})
	require.NoError(t, err)

	data, err := json.Marshal(es)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "sample", decoded["type"])
	assert.Equal(t, "bar", decoded["foo"])
}

func TestEngineSpecificsUnmarshalRecoversTypeAndPayload(t *testing.T) {
	es, err := NewEngineSpecifics("sample", samplePayload{Foo: "bar"})
	require.NoError(t, err)
	data, err := json.Marshal(es)
	require.NoError(t, err)

	var decoded EngineSpecifics
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "sample", decoded.Type)

	var payload samplePayload
	require.NoError(t, decoded.Decode(&payload))
	assert.Equal(t, "bar", payload.Foo)
}

func TestRegistryDecodesToConcreteType(t *testing.T) {
	reg := NewRegistry()
	reg.Register("sample", func() interface{} { return &samplePayload{} })

	es, err := NewEngineSpecifics("sample", samplePayload{Foo: "bar"})
	require.NoError(t, err)

	decoded, err := reg.Decode(es)
	require.NoError(t, err)

	payload, ok := decoded.(*samplePayload)
	require.True(t, ok)
	assert.Equal(t, "bar", payload.Foo)
}

func TestRegistryDecodeWithoutFactoryReturnsRaw(t *testing.T) {
	reg := NewRegistry()
	es, err := NewEngineSpecifics("unknown", samplePayload{Foo: "bar"})
	require.NoError(t, err)

	decoded, err := reg.Decode(es)
	require.NoError(t, err)
	assert.Same(t, es, decoded)
}
