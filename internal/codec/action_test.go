package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeActionGet(t *testing.T) {
	req, err := DecodeAction([]byte(`{"action":"get","path":"Vehicle.Speed","requestId":"1"}`))
	require.NoError(t, err)

	get, ok := req.(*GetRequest)
	require.True(t, ok)
	assert.Equal(t, "Vehicle.Speed", get.Path.String())
	assert.Equal(t, "1", get.RequestID.String())
}

func TestDecodeActionCaseInsensitive(t *testing.T) {
	req, err := DecodeAction([]byte(`{"action":"SUBSCRIBE","path":"Vehicle.Speed","requestId":"2"}`))
	require.NoError(t, err)

	sub, ok := req.(*SubscribeRequest)
	require.True(t, ok)
	assert.Equal(t, "Vehicle.Speed", sub.Path.String())
	assert.Nil(t, sub.Filters)
}

func TestDecodeActionSubscribeWithFilters(t *testing.T) {
	req, err := DecodeAction([]byte(`{
		"action":"subscribe",
		"path":"Vehicle.Speed",
		"requestId":"3",
		"filters":{"interval":1000,"minChange":2}
	}`))
	require.NoError(t, err)

	sub, ok := req.(*SubscribeRequest)
	require.True(t, ok)
	require.NotNil(t, sub.Filters)
	require.NotNil(t, sub.Filters.IntervalMillis)
	assert.Equal(t, int64(1000), *sub.Filters.IntervalMillis)
	require.NotNil(t, sub.Filters.MinChange)
}

func TestDecodeActionSet(t *testing.T) {
	req, err := DecodeAction([]byte(`{"action":"set","path":"Vehicle.Cabin.Door.Row1.Left.IsOpen","value":true,"requestId":"4"}`))
	require.NoError(t, err)

	set, ok := req.(*SetRequest)
	require.True(t, ok)
	assert.Equal(t, "true", string(set.Value.Raw()))
}

func TestDecodeActionUnsubscribe(t *testing.T) {
	req, err := DecodeAction([]byte(`{"action":"unsubscribe","subscriptionId":"5","requestId":"6"}`))
	require.NoError(t, err)

	unsub, ok := req.(*UnsubscribeRequest)
	require.True(t, ok)
	assert.Equal(t, "5", unsub.SubscriptionID.String())
}

func TestDecodeActionUnsubscribeMissingIDFails(t *testing.T) {
	_, err := DecodeAction([]byte(`{"action":"unsubscribe","requestId":"6"}`))
	assert.Error(t, err)
}

func TestDecodeActionUnsubscribeAll(t *testing.T) {
	req, err := DecodeAction([]byte(`{"action":"unsubscribeAll","requestId":"7"}`))
	require.NoError(t, err)
	_, ok := req.(*UnsubscribeAllRequest)
	assert.True(t, ok)
}

func TestDecodeActionAuthorizeAndGetMetadataDecodeCleanly(t *testing.T) {
	req, err := DecodeAction([]byte(`{"action":"authorize","requestId":"8"}`))
	require.NoError(t, err)
	_, ok := req.(*AuthorizeRequest)
	assert.True(t, ok)

	req, err = DecodeAction([]byte(`{"action":"getMetadata","path":"Vehicle.Speed","requestId":"9"}`))
	require.NoError(t, err)
	_, ok = req.(*GetMetadataRequest)
	assert.True(t, ok)
}

func TestDecodeActionUnrecognizedFails(t *testing.T) {
	_, err := DecodeAction([]byte(`{"action":"frobnicate","requestId":"10"}`))
	assert.Error(t, err)
}

func TestDecodeActionMissingPathFails(t *testing.T) {
	_, err := DecodeAction([]byte(`{"action":"get","requestId":"11"}`))
	assert.Error(t, err)
}

func TestDecodeActionGeneratesRequestIDWhenAbsent(t *testing.T) {
	req, err := DecodeAction([]byte(`{"action":"unsubscribeAll"}`))
	require.NoError(t, err)
	all, ok := req.(*UnsubscribeAllRequest)
	require.True(t, ok)
	assert.NotEmpty(t, all.RequestID.String())
}

// Encode-then-decode of any action success response yields back an equal
// value, field for field other than timestamp, which responses only ever
// write.
func TestActionSuccessResponseRoundTrip(t *testing.T) {
	reqID := NewRequestID()
	subID := NewSubscriptionID()
	value, err := ValueFromAny(42)
	require.NoError(t, err)

	t.Run("get", func(t *testing.T) {
		original := GetResponse{RequestID: reqID, Value: value, Timestamp: 123}
		data, err := json.Marshal(original)
		require.NoError(t, err)
		var decoded GetResponse
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, original, decoded)
	})

	t.Run("set", func(t *testing.T) {
		original := SetResponse{RequestID: reqID, Timestamp: 123}
		data, err := json.Marshal(original)
		require.NoError(t, err)
		var decoded SetResponse
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, original, decoded)
	})

	t.Run("subscribe", func(t *testing.T) {
		original := SubscribeResponse{RequestID: reqID, SubscriptionID: subID, Timestamp: 123}
		data, err := json.Marshal(original)
		require.NoError(t, err)
		var decoded SubscribeResponse
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, original, decoded)
	})

	t.Run("unsubscribe", func(t *testing.T) {
		original := UnsubscribeResponse{RequestID: reqID, SubscriptionID: subID, Timestamp: 123}
		data, err := json.Marshal(original)
		require.NoError(t, err)
		var decoded UnsubscribeResponse
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, original, decoded)
	})

	t.Run("unsubscribeAll", func(t *testing.T) {
		original := UnsubscribeAllResponse{RequestID: reqID, Timestamp: 123}
		data, err := json.Marshal(original)
		require.NoError(t, err)
		var decoded UnsubscribeAllResponse
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, original, decoded)
	})
}
