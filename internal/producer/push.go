// Package producer implements the two producer adapter forms the engine is
// fed from: a NATS push-stream subscriber and a periodic generator driven
// by ticker or cron schedules.
package producer

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/vehicle-signal/vis-server/internal/codec"
	"github.com/vehicle-signal/vis-server/internal/engine"
	"github.com/vehicle-signal/vis-server/internal/logger"
)

// PushConfig configures the NATS push-stream producer.
type PushConfig struct {
	URL      string
	Subject  string
	User     string
	Password string
}

// signalUpdate is the wire shape expected on the configured NATS subject:
// a path and its new value, exactly the UpdateSignal operation's payload.
type signalUpdate struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value"`
}

// PushProducer feeds UpdateSignal operations into the engine from NATS
// messages. If NATS is unreachable at construction time it degrades to a
// disabled no-op rather than failing startup, matching the rest of the
// deployment's tolerance for an absent broker.
type PushProducer struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	eng     *engine.Engine
	cfg     PushConfig
	enabled bool
	log     *zerolog.Logger
}

// NewPushProducer connects to NATS and prepares to forward messages on
// cfg.Subject into eng. The subscription itself starts in Start.
func NewPushProducer(cfg PushConfig, eng *engine.Engine) *PushProducer {
	log := logger.Producer()

	if cfg.URL == "" {
		log.Warn().Msg("no push-stream URL configured, signal push producer disabled")
		return &PushProducer{enabled: false, log: log}
	}

	opts := []nats.Option{
		nats.Name("vis-server-producer"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("push-stream producer disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("push-stream producer reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("push-stream producer error")
		}),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		log.Warn().Err(err).Str("url", cfg.URL).Msg("failed to connect push-stream producer, disabling")
		return &PushProducer{enabled: false, log: log}
	}

	log.Info().Str("url", conn.ConnectedUrl()).Msg("push-stream producer connected")

	return &PushProducer{conn: conn, eng: eng, cfg: cfg, enabled: true, log: log}
}

// Start subscribes to the configured subject. A no-op on a disabled
// producer.
func (p *PushProducer) Start() error {
	if !p.enabled {
		return nil
	}

	sub, err := p.conn.Subscribe(p.cfg.Subject, func(msg *nats.Msg) {
		p.handleMessage(msg.Data)
	})
	if err != nil {
		return err
	}
	p.sub = sub
	p.log.Info().Str("subject", p.cfg.Subject).Msg("push-stream producer subscribed")
	return nil
}

// Close unsubscribes and drains the NATS connection.
func (p *PushProducer) Close() {
	if !p.enabled {
		return
	}
	if p.sub != nil {
		p.sub.Unsubscribe()
	}
	p.conn.Drain()
	p.conn.Close()
}

// IsEnabled reports whether the producer actually has a live connection.
func (p *PushProducer) IsEnabled() bool {
	return p.enabled
}

func (p *PushProducer) handleMessage(data []byte) {
	var update signalUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		p.log.Warn().Err(err).Msg("failed to decode push-stream signal update")
		return
	}
	p.eng.UpdateSignal(codec.NewPath(update.Path), codec.ValueFromJSON(update.Value))
}
