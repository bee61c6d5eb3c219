package engine

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vehicle-signal/vis-server/internal/codec"
	"github.com/vehicle-signal/vis-server/internal/errorset"
)

// recordingSink captures delivered acks, notifications, and errors for
// assertions. order additionally records the relative sequence of acks and
// notifications, which the separate slices can't express.
type recordingSink struct {
	mu            sync.Mutex
	acks          []codec.SubscribeResponse
	notifications []codec.SubscriptionNotification
	errors        []*errorset.AppError
	order         []string
}

func (r *recordingSink) DeliverSubscribeAck(resp codec.SubscribeResponse) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acks = append(r.acks, resp)
	r.order = append(r.order, "ack")
}

func (r *recordingSink) DeliverNotification(n codec.SubscriptionNotification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
	r.order = append(r.order, "notification")
}

func (r *recordingSink) DeliverSubscriptionError(_ codec.SubscriptionID, err *errorset.AppError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notifications)
}

func (r *recordingSink) firstEvent() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.order) == 0 {
		return "", false
	}
	return r.order[0], true
}

func jsonVal(literal string) codec.Value {
	return codec.ValueFromJSON(json.RawMessage(literal))
}

func startEngine(t *testing.T) *Engine {
	t.Helper()
	e := New()
	go e.Run()
	t.Cleanup(e.Stop)
	return e
}

func TestGetMissingPath(t *testing.T) {
	e := startEngine(t)
	_, ok := e.Get(codec.NewPath("Vehicle.Speed"))
	assert.False(t, ok)
}

func TestUpdateThenGet(t *testing.T) {
	e := startEngine(t)
	e.UpdateSignal(codec.NewPath("Vehicle.Speed"), jsonVal("42"))

	require.Eventually(t, func() bool {
		v, ok := e.Get(codec.NewPath("Vehicle.Speed"))
		return ok && string(v.Raw()) == "42"
	}, time.Second, 5*time.Millisecond)
}

func TestSubscribeReceivesImmediateUpdate(t *testing.T) {
	e := startEngine(t)
	sink := &recordingSink{}
	e.RegisterSession("session-1", sink)

	subID := e.Subscribe("session-1", codec.NewPath("Vehicle.Speed"), nil, codec.NewRequestID())
	e.UpdateSignal(codec.NewPath("Vehicle.Speed"), jsonVal("10"))

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
	sink.mu.Lock()
	assert.Equal(t, subID, sink.notifications[0].SubscriptionID)
	sink.mu.Unlock()
}

func TestSubscribeNoChangeSkipsDelivery(t *testing.T) {
	e := startEngine(t)
	sink := &recordingSink{}
	e.RegisterSession("session-1", sink)

	e.Subscribe("session-1", codec.NewPath("Vehicle.Speed"), nil, codec.NewRequestID())
	e.UpdateSignal(codec.NewPath("Vehicle.Speed"), jsonVal("10"))
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)

	e.UpdateSignal(codec.NewPath("Vehicle.Speed"), jsonVal("10"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, sink.count())
}

func TestUnsubscribeRejectsWrongSession(t *testing.T) {
	e := startEngine(t)
	e.RegisterSession("session-1", &recordingSink{})

	subID := e.Subscribe("session-1", codec.NewPath("Vehicle.Speed"), nil, codec.NewRequestID())
	err := e.Unsubscribe("session-2", subID)
	require.NotNil(t, err)
	assert.Equal(t, "invalid_subscriptionId", err.Reason)
}

func TestUnsubscribeAllStopsDelivery(t *testing.T) {
	e := startEngine(t)
	sink := &recordingSink{}
	e.RegisterSession("session-1", sink)
	e.Subscribe("session-1", codec.NewPath("Vehicle.Speed"), nil, codec.NewRequestID())

	e.UnsubscribeAll("session-1", true)
	e.UpdateSignal(codec.NewPath("Vehicle.Speed"), jsonVal("99"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, sink.count())
}

func TestSetDispatchesToHandler(t *testing.T) {
	e := startEngine(t)
	received := make(chan codec.Value, 1)
	e.RegisterHandler(codec.NewPath("Vehicle.Cabin.Door.IsOpen"), func(_ codec.RequestID, v codec.Value) *errorset.AppError {
		received <- v
		return nil
	})

	err := e.Set(codec.NewPath("Vehicle.Cabin.Door.IsOpen"), jsonVal("true"), codec.NewRequestID())
	assert.Nil(t, err)

	select {
	case v := <-received:
		assert.Equal(t, "true", string(v.Raw()))
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestSetMissingHandlerReturnsInvalidPath(t *testing.T) {
	e := startEngine(t)
	err := e.Set(codec.NewPath("Vehicle.Unknown"), jsonVal("1"), codec.NewRequestID())
	require.NotNil(t, err)
	assert.Equal(t, "invalid_path", err.Reason)
}

func TestIntervalSubscriptionDefersDeliveryToTick(t *testing.T) {
	e := startEngine(t)
	sink := &recordingSink{}
	e.RegisterSession("session-1", sink)

	interval := int64(30)
	e.Subscribe("session-1", codec.NewPath("Vehicle.Speed"), &codec.Filters{IntervalMillis: &interval}, codec.NewRequestID())
	e.UpdateSignal(codec.NewPath("Vehicle.Speed"), jsonVal("5"))

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, sink.count())

	require.Eventually(t, func() bool { return sink.count() >= 1 }, time.Second, 5*time.Millisecond)
}

func TestSubscribeAckAlwaysPrecedesNotification(t *testing.T) {
	e := startEngine(t)
	path := codec.NewPath("Vehicle.Speed")

	for i := 0; i < 200; i++ {
		sink := &recordingSink{}
		sessionID := fmt.Sprintf("session-%d", i)
		e.RegisterSession(sessionID, sink)

		// Race an UpdateSignal for the same path against the Subscribe
		// call: whichever operation the engine's run loop dequeues first
		// wins, but the sink must never see a notification before its ack.
		go e.UpdateSignal(path, jsonVal(fmt.Sprintf("%d", i)))
		e.Subscribe(sessionID, path, nil, codec.NewRequestID())

		require.Eventually(t, func() bool {
			_, ok := sink.firstEvent()
			return ok
		}, time.Second, time.Millisecond)

		first, _ := sink.firstEvent()
		assert.Equal(t, "ack", first, "subscribe ack must be the first frame a session sees")

		e.UnregisterSession(sessionID)
	}
}

func TestStatsReportsSignalAndSubscriptionCounts(t *testing.T) {
	e := startEngine(t)
	e.RegisterSession("session-1", &recordingSink{})

	e.UpdateSignal(codec.NewPath("Vehicle.Speed"), jsonVal("1"))
	e.UpdateSignal(codec.NewPath("Vehicle.Cabin.Door.IsOpen"), jsonVal("false"))
	e.Subscribe("session-1", codec.NewPath("Vehicle.Speed"), nil, codec.NewRequestID())

	require.Eventually(t, func() bool {
		signals, subs := e.Stats()
		return signals == 2 && subs == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSnapshotReturnsEveryCachedPath(t *testing.T) {
	e := startEngine(t)
	e.UpdateSignal(codec.NewPath("Vehicle.Speed"), jsonVal("10"))
	e.UpdateSignal(codec.NewPath("Vehicle.Cabin.Door.IsOpen"), jsonVal("true"))

	require.Eventually(t, func() bool {
		return len(e.Snapshot()) == 2
	}, time.Second, 5*time.Millisecond)

	snapshot := e.Snapshot()
	require.Contains(t, snapshot, "Vehicle.Speed")
	assert.Equal(t, "10", string(snapshot["Vehicle.Speed"].Raw()))
}
