package producer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vehicle-signal/vis-server/internal/codec"
	"github.com/vehicle-signal/vis-server/internal/logger"
)

func TestPushProducerDisabledWithoutURL(t *testing.T) {
	eng := startTestEngine(t)
	p := NewPushProducer(PushConfig{}, eng)
	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Start())
	p.Close()
}

func TestPushProducerDisabledOnUnreachableBroker(t *testing.T) {
	eng := startTestEngine(t)
	p := NewPushProducer(PushConfig{URL: "nats://127.0.0.1:1"}, eng)
	assert.False(t, p.IsEnabled())
}

func TestPushProducerHandleMessageUpdatesEngine(t *testing.T) {
	eng := startTestEngine(t)
	p := &PushProducer{eng: eng, enabled: true, log: logger.Producer()}

	p.handleMessage([]byte(`{"path":"Vehicle.Speed","value":55}`))

	require.Eventually(t, func() bool {
		v, ok := eng.Get(codec.NewPath("Vehicle.Speed"))
		return ok && string(v.Raw()) == "55"
	}, time.Second, 5*time.Millisecond)
}

func TestPushProducerHandleMessageIgnoresMalformedJSON(t *testing.T) {
	eng := startTestEngine(t)
	p := &PushProducer{eng: eng, enabled: true, log: logger.Producer()}

	p.handleMessage([]byte(`not json`))

	_, ok := eng.Get(codec.NewPath("Vehicle.Speed"))
	assert.False(t, ok)
}
