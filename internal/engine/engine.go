// Package engine implements the signal-subscription engine: the single
// writer of the signal store, the subscription registry, and the
// set-handler registry. All mutation flows through the engine's operation
// channels (ops and interval ticks), drained by a single goroutine, so the
// three structures never need their own locks.
package engine

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/vehicle-signal/vis-server/internal/codec"
	"github.com/vehicle-signal/vis-server/internal/errorset"
	"github.com/vehicle-signal/vis-server/internal/filter"
	"github.com/vehicle-signal/vis-server/internal/logger"
	"github.com/vehicle-signal/vis-server/internal/registry"
	"github.com/vehicle-signal/vis-server/internal/store"
)

// Sink is how the engine delivers asynchronous frames (the subscribe
// acknowledgement, subscription notifications, subscription errors) to a
// session. A session implements this by forwarding to its write pump; it
// must not block the engine's operation loop, so implementations should
// buffer or drop rather than wait.
//
// DeliverSubscribeAck is called from inside the engine's own operation
// handler for Subscribe, before the engine processes anything else — this
// is what guarantees I4 (the subscribe acknowledgement reaches the sink
// strictly before any notification for that subscription can). Enqueuing
// the acknowledgement from the calling session goroutine instead, after
// Subscribe's synchronous reply unblocks it, would race: the engine can
// already be handling a queued UpdateSignal for the same path by the time
// the session goroutine gets scheduled.
type Sink interface {
	DeliverSubscribeAck(resp codec.SubscribeResponse)
	DeliverNotification(n codec.SubscriptionNotification)
	DeliverSubscriptionError(subscriptionID codec.SubscriptionID, err *errorset.AppError)
}

// operation is the sum type of everything the engine processes. kind says
// which operation it is and which of the other fields it uses; the engine's
// handler switches on kind.
type operation struct {
	kind operationKind

	sessionID string
	path      codec.Path
	value     codec.Value
	requestID codec.RequestID
	subID     codec.SubscriptionID
	filters   *codec.Filters
	sink      Sink
	consumer  registry.SetConsumer

	hasRequestID bool

	reply chan operationResult
}

type operationKind int

const (
	opRegisterSession operationKind = iota
	opUnregisterSession
	opSubscribe
	opUnsubscribe
	opUnsubscribeAll
	opGet
	opSet
	opRegisterHandler
	opUpdateSignal
	opIntervalTick
	opStats
	opSnapshot
)

// operationResult is the synchronous reply an operation may produce; ops
// originating from the producer side (UpdateSignal, IntervalTick) don't
// wait for one.
type operationResult struct {
	subID     codec.SubscriptionID
	value     codec.Value
	found     bool
	appErr    *errorset.AppError

	signalCount       int
	subscriptionCount int
	snapshot          map[string]codec.Value
}

// Engine is the signal-subscription engine. Construct with New and start
// its loop with go engine.Run().
type Engine struct {
	ops    chan operation
	ticks  chan operation
	done   chan struct{}
	log    *zerolog.Logger

	store    *store.Store
	subs     *registry.Registry
	handlers *registry.SetHandlers
	sinks    map[string]Sink

	intervalCancel map[codec.SubscriptionID]chan struct{}
}

// New constructs an idle engine. Call Run in its own goroutine to start
// processing operations.
func New() *Engine {
	return &Engine{
		ops:            make(chan operation, 256),
		ticks:          make(chan operation, 256),
		done:           make(chan struct{}),
		log:            logger.Engine(),
		store:          store.New(),
		subs:           registry.New(),
		handlers:       registry.NewSetHandlers(),
		sinks:          make(map[string]Sink),
		intervalCancel: make(map[codec.SubscriptionID]chan struct{}),
	}
}

// Run processes operations until Stop is called. It owns the store,
// registry, and set-handler registry for as long as it runs; nothing else
// may touch them.
func (e *Engine) Run() {
	e.log.Info().Msg("engine loop starting")
	for {
		select {
		case op := <-e.ops:
			e.handle(op)
		case op := <-e.ticks:
			e.handle(op)
		case <-e.done:
			e.log.Info().Msg("engine loop stopping")
			return
		}
	}
}

// Stop ends the Run loop. Safe to call once.
func (e *Engine) Stop() {
	close(e.done)
}

func (e *Engine) handle(op operation) {
	switch op.kind {
	case opRegisterSession:
		e.sinks[op.sessionID] = op.sink
	case opUnregisterSession:
		delete(e.sinks, op.sessionID)
		e.unsubscribeAll(op.sessionID)
	case opSubscribe:
		e.subscribe(op)
	case opUnsubscribe:
		e.unsubscribe(op)
	case opUnsubscribeAll:
		ids := e.unsubscribeAll(op.sessionID)
		if op.hasRequestID {
			op.reply <- operationResult{found: true}
			_ = ids
		}
	case opGet:
		e.get(op)
	case opSet:
		e.set(op)
	case opRegisterHandler:
		e.handlers.Register(op.path, op.consumer)
	case opUpdateSignal:
		e.updateSignal(op.path, op.value)
	case opIntervalTick:
		e.intervalTick(op.subID)
	case opStats:
		op.reply <- operationResult{signalCount: e.store.Len(), subscriptionCount: e.subs.Count()}
	case opSnapshot:
		op.reply <- operationResult{snapshot: e.store.Snapshot()}
	}
}

func (e *Engine) subscribe(op operation) {
	subID := codec.NewSubscriptionID()
	sub := &registry.Subscription{
		ID:        subID,
		SessionID: op.sessionID,
		Path:      op.path,
		Filter:    op.filters,
	}
	e.subs.Insert(sub)

	if current, ok := e.store.Get(op.path); ok {
		v := current
		sub.LatestValue = &v
	}

	if sub.HasInterval() {
		e.startIntervalTask(subID, *sub.Filter.IntervalMillis)
	}

	// The ack must reach the sink before this handler returns: the engine
	// won't look at the next queued operation (which may be an
	// UpdateSignal for op.path) until it does, so no notification for
	// subID can ever be delivered ahead of it.
	if sink, ok := e.sinks[op.sessionID]; ok {
		sink.DeliverSubscribeAck(codec.SubscribeResponse{
			RequestID:      op.requestID,
			SubscriptionID: subID,
			Timestamp:      time.Now().UnixMilli(),
		})
	}

	op.reply <- operationResult{subID: subID}
}

func (e *Engine) unsubscribe(op operation) {
	if !e.subs.OwnedBySession(op.subID, op.sessionID) {
		op.reply <- operationResult{appErr: errorset.InvalidSubscriptionID(op.subID.String())}
		return
	}
	e.subs.Remove(op.subID)
	e.cancelIntervalTask(op.subID)
	op.reply <- operationResult{}
}

func (e *Engine) unsubscribeAll(sessionID string) []codec.SubscriptionID {
	ids := e.subs.RemoveForSession(sessionID)
	for _, id := range ids {
		e.cancelIntervalTask(id)
	}
	return ids
}

func (e *Engine) get(op operation) {
	v, ok := e.store.Get(op.path)
	op.reply <- operationResult{value: v, found: ok}
}

func (e *Engine) set(op operation) {
	appErr := e.handlers.Dispatch(op.path, op.value, op.requestID)
	op.reply <- operationResult{appErr: appErr}
}

func (e *Engine) updateSignal(path codec.Path, value codec.Value) {
	e.store.Put(path, value)

	now := time.Now()
	for _, id := range e.subs.ForPath(path) {
		sub, ok := e.subs.Get(id)
		if !ok {
			continue
		}
		if sub.HasInterval() {
			v := value
			sub.LatestValue = &v
			continue
		}
		e.attemptDelivery(sub, value, now)
	}
}

func (e *Engine) intervalTick(subID codec.SubscriptionID) {
	sub, ok := e.subs.Get(subID)
	if !ok {
		return
	}
	if sub.LatestValue == nil {
		return
	}
	e.attemptDelivery(sub, *sub.LatestValue, time.Now())
}

func (e *Engine) attemptDelivery(sub *registry.Subscription, candidate codec.Value, now time.Time) {
	decision, appErr := filter.Evaluate(candidate, sub.LastDelivered, sub.Filter, now)
	sink, hasSink := e.sinks[sub.SessionID]

	switch decision {
	case filter.Deliver:
		sub.LastDelivered = &filter.LastDelivered{At: now, Value: candidate}
		if hasSink {
			sink.DeliverNotification(codec.SubscriptionNotification{
				SubscriptionID: sub.ID,
				Value:          candidate,
				Timestamp:      now.UnixMilli(),
			})
		}
	case filter.Error:
		if hasSink {
			sink.DeliverSubscriptionError(sub.ID, appErr)
		}
	case filter.Skip:
		// nothing to do
	}
}

func (e *Engine) startIntervalTask(subID codec.SubscriptionID, millis int64) {
	stop := make(chan struct{})
	e.intervalCancel[subID] = stop

	go func() {
		ticker := time.NewTicker(time.Duration(millis) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case e.ticks <- operation{kind: opIntervalTick, subID: subID}:
				case <-stop:
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

func (e *Engine) cancelIntervalTask(subID codec.SubscriptionID) {
	if stop, ok := e.intervalCancel[subID]; ok {
		close(stop)
		delete(e.intervalCancel, subID)
	}
}

// Public request/response surface. Each method posts one operation and
// blocks for its synchronous reply, mirroring the Engine table: Subscribe,
// Unsubscribe, UnsubscribeAll, Get, and Set all answer immediately;
// UpdateSignal and interval ticks are fire-and-forget from the producer
// and scheduler sides.

// RegisterSession tells the engine where to deliver asynchronous
// notifications for sessionID.
func (e *Engine) RegisterSession(sessionID string, sink Sink) {
	e.ops <- operation{kind: opRegisterSession, sessionID: sessionID, sink: sink}
}

// UnregisterSession drops sessionID's sink and unsubscribes everything it
// owned, the effect of a session ending.
func (e *Engine) UnregisterSession(sessionID string) {
	e.ops <- operation{kind: opUnregisterSession, sessionID: sessionID}
}

// RegisterHandler installs consumer as the set-handler for path.
func (e *Engine) RegisterHandler(path codec.Path, consumer registry.SetConsumer) {
	e.ops <- operation{kind: opRegisterHandler, path: path, consumer: consumer}
}

// Subscribe mints a subscription, delivers the subscribe acknowledgement
// to sessionID's sink from within the engine's own operation handler (see
// Sink.DeliverSubscribeAck), and returns the new subscription's id.
func (e *Engine) Subscribe(sessionID string, path codec.Path, filters *codec.Filters, requestID codec.RequestID) codec.SubscriptionID {
	reply := make(chan operationResult, 1)
	e.ops <- operation{kind: opSubscribe, sessionID: sessionID, path: path, filters: filters, requestID: requestID, reply: reply}
	res := <-reply
	return res.subID
}

// Unsubscribe removes subID if sessionID owns it.
func (e *Engine) Unsubscribe(sessionID string, subID codec.SubscriptionID) *errorset.AppError {
	reply := make(chan operationResult, 1)
	e.ops <- operation{kind: opUnsubscribe, sessionID: sessionID, subID: subID, reply: reply}
	res := <-reply
	return res.appErr
}

// UnsubscribeAll removes every subscription sessionID owns. Pass
// waitForReply true when the call originated from an explicit client
// request that expects a response.
func (e *Engine) UnsubscribeAll(sessionID string, waitForReply bool) {
	if !waitForReply {
		e.ops <- operation{kind: opUnsubscribeAll, sessionID: sessionID}
		return
	}
	reply := make(chan operationResult, 1)
	e.ops <- operation{kind: opUnsubscribeAll, sessionID: sessionID, hasRequestID: true, reply: reply}
	<-reply
}

// Get returns the cached value for path, or found=false if none exists.
func (e *Engine) Get(path codec.Path) (codec.Value, bool) {
	reply := make(chan operationResult, 1)
	e.ops <- operation{kind: opGet, path: path, reply: reply}
	res := <-reply
	return res.value, res.found
}

// Set dispatches a set request through the handler registry.
func (e *Engine) Set(path codec.Path, value codec.Value, requestID codec.RequestID) *errorset.AppError {
	reply := make(chan operationResult, 1)
	e.ops <- operation{kind: opSet, path: path, value: value, requestID: requestID, reply: reply}
	res := <-reply
	return res.appErr
}

// UpdateSignal is how a producer adapter reports a new observation for
// path. It never blocks waiting for subscriber delivery.
func (e *Engine) UpdateSignal(path codec.Path, value codec.Value) {
	e.ops <- operation{kind: opUpdateSignal, path: path, value: value}
}

// Stats reports the number of distinct signal paths currently cached and
// the number of active subscriptions, for the liveness probe.
func (e *Engine) Stats() (signalCount, subscriptionCount int) {
	reply := make(chan operationResult, 1)
	e.ops <- operation{kind: opStats, reply: reply}
	res := <-reply
	return res.signalCount, res.subscriptionCount
}

// Snapshot returns every cached signal path and its current value.
func (e *Engine) Snapshot() map[string]codec.Value {
	reply := make(chan operationResult, 1)
	e.ops <- operation{kind: opSnapshot, reply: reply}
	res := <-reply
	return res.snapshot
}
