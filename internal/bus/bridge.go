package bus

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/jordansnyder/maestra-core/internal/logger"
)

const (
	mqttToNATSPrefix = "maestra.mqtt"
	natsToMQTTPrefix = "maestra.to_mqtt."
	mqttSubscribeAll = "maestra/#"
	natsSubscribeAll = "maestra.to_mqtt.>"
)

// Bridge relays everything under the MQTT topic namespace "maestra/…" onto
// the NATS subject tree prefixed "maestra.mqtt.", and everything published
// to "maestra.to_mqtt.<rest>" on NATS onto the MQTT topic "<rest>" (dots to
// slashes). It is a standalone relay: an outage on one side must never
// block or fail a publish on the other.
type Bridge struct {
	bus         *Bus
	log         logger.Logger
	unsubMQTT   func()
	unsubNATS   func()
}

func NewBridge(b *Bus, log logger.Logger) *Bridge {
	return &Bridge{bus: b, log: log}
}

// Start subscribes both relay directions. It returns once both
// subscriptions are registered; the relays themselves run in the bus's own
// callback goroutines.
func (br *Bridge) Start() error {
	unsubMQTT, err := br.bus.SubscribeTopic(mqttSubscribeAll, br.relayMQTTToNATS)
	if err != nil {
		return err
	}

	unsubNATS, err := br.bus.SubscribeSubject(natsSubscribeAll, br.relayNATSToMQTT)
	if err != nil {
		unsubMQTT()

		return err
	}

	br.unsubMQTT = unsubMQTT
	br.unsubNATS = unsubNATS

	return nil
}

// Stop tears down both relay subscriptions.
func (br *Bridge) Stop() {
	if br.unsubMQTT != nil {
		br.unsubMQTT()
	}

	if br.unsubNATS != nil {
		br.unsubNATS()
	}
}

// mqttEnvelope is the shape the bridge wraps relayed MQTT->NATS payloads
// in, matching the original bridge's message dict.
type mqttEnvelope struct {
	Source    string      `json:"source"`
	Topic     string      `json:"topic"`
	Payload   string      `json:"payload"`
	QoS       byte        `json:"qos"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func (br *Bridge) relayMQTTToNATS(topic string, payload []byte) {
	subject := mqttTopicToNATSSubject(topic)

	env := mqttEnvelope{
		Source:    "mqtt",
		Topic:     topic,
		Payload:   string(payload),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	var parsed interface{}
	if err := json.Unmarshal(payload, &parsed); err == nil {
		env.Data = parsed
	} else {
		env.Data = env.Payload
	}

	body, err := json.Marshal(env)
	if err != nil {
		br.log.Warn().Err(err).Str("topic", topic).Msg("bridge: failed to encode mqtt->nats envelope")

		return
	}

	br.bus.PublishSubject(subject, body)
}

func (br *Bridge) relayNATSToMQTT(subject string, payload []byte) {
	topic := natsSubjectToMQTTTopic(subject)
	br.bus.PublishTopic(topic, extractMQTTPayload(payload))
}

// extractMQTTPayload implements the bridge's payload-extraction rule: if
// the NATS body parses as a JSON object with a "payload" field, that
// field's value (unwrapped if it's a string) becomes the MQTT body;
// otherwise the whole parsed value is re-encoded, and if it doesn't parse
// as JSON at all the raw bytes pass through unchanged.
func extractMQTTPayload(payload []byte) []byte {
	var data interface{}
	if err := json.Unmarshal(payload, &data); err != nil {
		return payload
	}

	if m, ok := data.(map[string]interface{}); ok {
		if p, ok := m["payload"]; ok {
			if s, ok := p.(string); ok {
				return []byte(s)
			}

			data = p
		}
	}

	if b, err := json.Marshal(data); err == nil {
		return b
	}

	return payload
}

// mqttTopicToNATSSubject converts "maestra/devices/esp32/sensor" to
// "maestra.mqtt.maestra.devices.esp32.sensor".
func mqttTopicToNATSSubject(topic string) string {
	return mqttToNATSPrefix + "." + strings.ReplaceAll(topic, "/", ".")
}

// natsSubjectToMQTTTopic converts "maestra.to_mqtt.devices.esp32.cmd" to
// "devices/esp32/cmd".
func natsSubjectToMQTTTopic(subject string) string {
	if !strings.HasPrefix(subject, natsToMQTTPrefix) {
		return subject
	}

	rest := strings.TrimPrefix(subject, natsToMQTTPrefix)

	return strings.ReplaceAll(rest, ".", "/")
}
