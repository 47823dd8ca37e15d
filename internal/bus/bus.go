// Package bus implements Maestra's dual fan-out: a NATS-style dotted
// subject tree and an MQTT-style slash topic tree, both carrying the same
// JSON payloads, plus request/reply for stream negotiation.
package bus

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nats-io/nats.go"

	"github.com/jordansnyder/maestra-core/internal/apperr"
	"github.com/jordansnyder/maestra-core/internal/logger"
	"github.com/jordansnyder/maestra-core/internal/metrics"
)

// Config holds the connection parameters for both fan-out trees.
type Config struct {
	NATSURL    string
	MQTTBroker string
	MQTTPort   int
	MQTTClient string
}

// Bus is the concrete Publisher: it owns one NATS connection and one MQTT
// client and fans every publish out on whichever tree it's asked for.
// Publish failures never propagate to the caller — they are logged and
// swallowed, per the at-most-once, best-effort delivery semantics the
// fan-out bus promises.
type Bus struct {
	nc      *nats.Conn
	mq      mqtt.Client
	log     logger.Logger
	metrics *metrics.Metrics
}

// SetMetrics attaches the collectors every publish increments. Optional:
// a Bus with no metrics attached publishes exactly as before.
func (b *Bus) SetMetrics(m *metrics.Metrics) {
	b.metrics = m
}

// Connect dials both the NATS and MQTT brokers. Either connection failing
// is fatal to startup — the bus is a required dependency, not an optional
// one, for every subsystem that negotiates or emits events.
func Connect(cfg Config, log logger.Logger) (*Bus, error) {
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name(cfg.MQTTClient),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	brokerURL := fmt.Sprintf("%s:%d", cfg.MQTTBroker, cfg.MQTTPort)

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(cfg.MQTTClient).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	mq := mqtt.NewClient(opts)
	if token := mq.Connect(); token.Wait() && token.Error() != nil {
		nc.Close()

		return nil, fmt.Errorf("connect mqtt: %w", token.Error())
	}

	return &Bus{nc: nc, mq: mq, log: log}, nil
}

// Close shuts down both connections.
func (b *Bus) Close() {
	b.nc.Close()
	b.mq.Disconnect(250)
}

// PublishSubject fans payload out on the NATS subject tree.
func (b *Bus) PublishSubject(subject string, payload []byte) {
	b.metrics.RecordBusPublish("nats")

	if err := b.nc.Publish(subject, payload); err != nil {
		b.log.Warn().Err(err).Str("subject", subject).Msg("nats publish failed")
	}
}

// PublishTopic fans payload out on the MQTT topic tree, at QoS 0
// (at-most-once), matching the bus's best-effort delivery semantics.
func (b *Bus) PublishTopic(topic string, payload []byte) {
	b.metrics.RecordBusPublish("mqtt")

	token := b.mq.Publish(topic, 0, false, payload)
	if token.Wait() && token.Error() != nil {
		b.log.Warn().Err(token.Error()).Str("topic", topic).Msg("mqtt publish failed")
	}
}

// SubscribeSubject registers handler on the NATS subject tree. Pattern may
// use '*' (single segment) or '>' (tail) wildcards.
func (b *Bus) SubscribeSubject(pattern string, handler func(subject string, payload []byte)) (func(), error) {
	sub, err := b.nc.Subscribe(pattern, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe subject %s: %w", pattern, err)
	}

	return func() { _ = sub.Unsubscribe() }, nil
}

// SubscribeTopic registers handler on the MQTT topic tree. Pattern may use
// '+' (single segment) or '#' (tail) wildcards.
func (b *Bus) SubscribeTopic(pattern string, handler func(topic string, payload []byte)) (func(), error) {
	token := b.mq.Subscribe(pattern, 0, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("subscribe topic %s: %w", pattern, token.Error())
	}

	unsub := pattern

	return func() { b.mq.Unsubscribe(unsub) }, nil
}

// Request issues a NATS request/reply with a hard timeout. On timeout it
// returns an apperr UpstreamTimeout error so callers can surface a
// 504-class response without inspecting nats.ErrTimeout themselves.
func (b *Bus) Request(ctx context.Context, subject string, payload []byte, timeout time.Duration) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := b.nc.RequestWithContext(reqCtx, subject, payload)
	if err != nil {
		if err == context.DeadlineExceeded || err == nats.ErrTimeout {
			return nil, apperr.UpstreamTimeout(fmt.Sprintf("no reply on %s within %s", subject, timeout))
		}

		return nil, fmt.Errorf("request %s: %w", subject, err)
	}

	return msg.Data, nil
}
