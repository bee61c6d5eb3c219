// Package session implements one WebSocket connection's lifecycle: the
// read/write pump pair, the Open/Closing/Closed state machine, and
// dispatch of decoded client actions to the engine.
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/vehicle-signal/vis-server/internal/codec"
	"github.com/vehicle-signal/vis-server/internal/engine"
	"github.com/vehicle-signal/vis-server/internal/errorset"
	"github.com/vehicle-signal/vis-server/internal/logger"
)

// State is the session lifecycle state machine: Open while serving
// requests, Closing once teardown has started, Closed once the connection
// and its subscriptions are fully torn down.
type State int

const (
	Open State = iota
	Closing
	Closed
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

// Session represents one connected WebSocket client.
type Session struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	engine *engine.Engine
	log    *zerolog.Logger

	mu    sync.Mutex
	state State
}

// New wraps a WebSocket connection as a session and registers it with eng.
// Call Serve to run its read/write pumps; it blocks until the connection
// closes.
func New(id string, conn *websocket.Conn, eng *engine.Engine) *Session {
	l := logger.Session()
	s := &Session{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		engine: eng,
		log:    l,
		state:  Open,
	}
	eng.RegisterSession(id, s)
	return s
}

// Serve runs the read and write pumps, blocking until the connection ends.
// On return the session has unsubscribed everything it owned and is Closed.
func (s *Session) Serve() {
	done := make(chan struct{})
	go func() {
		s.writePump()
		close(done)
	}()
	s.readPump()
	s.beginClosing()
	close(s.send)
	<-done
	s.finishClosing()
}

func (s *Session) beginClosing() {
	s.mu.Lock()
	s.state = Closing
	s.mu.Unlock()
}

func (s *Session) finishClosing() {
	s.engine.UnsubscribeAll(s.id, true)
	s.engine.UnregisterSession(s.id)
	s.mu.Lock()
	s.state = Closed
	s.mu.Unlock()
}

// readPump reads client frames, decodes them into actions, and dispatches
// to the engine. It returns when the connection closes or errors.
func (s *Session) readPump() {
	defer s.conn.Close()

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn().Err(err).Str("session", s.id).Msg("websocket read error")
			}
			return
		}

		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		if messageType != websocket.TextMessage {
			s.log.Warn().Str("session", s.id).Int("messageType", messageType).Msg("ignoring non-text frame")
			continue
		}

		s.handleFrame(data)
	}
}

// writePump drains the send queue to the connection and issues periodic
// pings. It returns once send is closed and drained.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) handleFrame(data []byte) {
	req, err := codec.DecodeAction(data)
	if err != nil {
		s.enqueueError(errorset.BadRequest(err.Error()), nil, nil, "unknown")
		return
	}

	switch r := req.(type) {
	case *codec.GetRequest:
		s.handleGet(r)
	case *codec.SetRequest:
		s.handleSet(r)
	case *codec.SubscribeRequest:
		s.handleSubscribe(r)
	case *codec.UnsubscribeRequest:
		s.handleUnsubscribe(r)
	case *codec.UnsubscribeAllRequest:
		s.handleUnsubscribeAll(r)
	case *codec.AuthorizeRequest:
		s.enqueueError(errorset.NotImplemented("authorize"), &r.RequestID, nil, "authorize")
	case *codec.GetMetadataRequest:
		s.enqueueError(errorset.NotImplemented("getMetadata"), &r.RequestID, nil, "getMetadata")
	}
}

func (s *Session) handleGet(r *codec.GetRequest) {
	value, ok := s.engine.Get(r.Path)
	if !ok {
		s.enqueueError(errorset.InvalidPath(r.Path.String()), &r.RequestID, nil, "get")
		return
	}
	s.enqueue(codec.GetResponse{RequestID: r.RequestID, Value: value, Timestamp: nowMillis()})
}

func (s *Session) handleSet(r *codec.SetRequest) {
	if appErr := s.engine.Set(r.Path, r.Value, r.RequestID); appErr != nil {
		s.enqueueError(appErr, &r.RequestID, nil, "set")
		return
	}
	s.enqueue(codec.SetResponse{RequestID: r.RequestID, Timestamp: nowMillis()})
}

func (s *Session) handleSubscribe(r *codec.SubscribeRequest) {
	// The engine delivers the subscribe acknowledgement itself, via
	// DeliverSubscribeAck, before this call returns — see engine.Sink.
	s.engine.Subscribe(s.id, r.Path, r.Filters, r.RequestID)
}

func (s *Session) handleUnsubscribe(r *codec.UnsubscribeRequest) {
	if appErr := s.engine.Unsubscribe(s.id, r.SubscriptionID); appErr != nil {
		s.enqueueError(appErr, &r.RequestID, &r.SubscriptionID, "unsubscribe")
		return
	}
	s.enqueue(codec.UnsubscribeResponse{RequestID: r.RequestID, SubscriptionID: r.SubscriptionID, Timestamp: nowMillis()})
}

func (s *Session) handleUnsubscribeAll(r *codec.UnsubscribeAllRequest) {
	s.engine.UnsubscribeAll(s.id, true)
	s.enqueue(codec.UnsubscribeAllResponse{RequestID: r.RequestID, Timestamp: nowMillis()})
}

// DeliverSubscribeAck implements engine.Sink.
func (s *Session) DeliverSubscribeAck(resp codec.SubscribeResponse) {
	s.enqueue(resp)
}

// DeliverNotification implements engine.Sink.
func (s *Session) DeliverNotification(n codec.SubscriptionNotification) {
	s.enqueue(n)
}

// DeliverSubscriptionError implements engine.Sink.
func (s *Session) DeliverSubscriptionError(subscriptionID codec.SubscriptionID, err *errorset.AppError) {
	s.enqueueError(err, nil, &subscriptionID, "subscription")
}

func (s *Session) enqueue(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode outbound frame")
		var zero codec.RequestID
		data, _ = json.Marshal(codec.NewActionError("unknown", &zero, nil, errorset.Internal(err), nowMillis()))
	}
	s.trySend(data)
}

func (s *Session) enqueueError(err *errorset.AppError, requestID *codec.RequestID, subscriptionID *codec.SubscriptionID, action string) {
	data, marshalErr := json.Marshal(codec.NewActionError(action, requestID, subscriptionID, err, nowMillis()))
	if marshalErr != nil {
		s.log.Error().Err(marshalErr).Msg("failed to encode error frame")
		return
	}
	s.trySend(data)
}

// trySend writes to the session's send queue without blocking; a full
// queue means the client is too slow to keep up, so the session is closed
// rather than letting a slow session stall the engine.
func (s *Session) trySend(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Open {
		return
	}

	select {
	case s.send <- data:
	default:
		s.log.Warn().Str("session", s.id).Msg("send buffer full, closing slow session")
		s.conn.Close()
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
