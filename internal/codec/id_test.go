package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDRoundTripUUID(t *testing.T) {
	id := NewRequestID()
	data, err := json.Marshal(id)
	require.NoError(t, err)

	var decoded RequestID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)
	assert.Equal(t, id.String(), decoded.String())
}

func TestRequestIDRoundTripInteger(t *testing.T) {
	data := []byte(`"42"`)
	var decoded RequestID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "42", decoded.String())

	reencoded, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.Equal(t, `"42"`, string(reencoded))
}

func TestRequestIDRejectsGarbage(t *testing.T) {
	var decoded RequestID
	err := json.Unmarshal([]byte(`"not-a-uuid-or-int"`), &decoded)
	assert.Error(t, err)
}

func TestSubscriptionIDUsableAsMapKey(t *testing.T) {
	a := NewSubscriptionID()
	b := NewSubscriptionID()

	m := map[SubscriptionID]string{a: "first", b: "second"}
	assert.Equal(t, "first", m[a])
	assert.Equal(t, "second", m[b])
	assert.NotEqual(t, a, b)
}

func TestSubscriptionIDRoundTripInteger(t *testing.T) {
	var decoded SubscriptionID
	require.NoError(t, json.Unmarshal([]byte(`"7"`), &decoded))
	assert.Equal(t, "7", decoded.String())
}
