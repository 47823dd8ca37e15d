package bus

import "testing"

func TestMQTTTopicToNATSSubject(t *testing.T) {
	got := mqttTopicToNATSSubject("maestra/devices/esp32/sensor")
	want := "maestra.mqtt.maestra.devices.esp32.sensor"

	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestNATSSubjectToMQTTTopic(t *testing.T) {
	got := natsSubjectToMQTTTopic("maestra.to_mqtt.devices.esp32.cmd")
	want := "devices/esp32/cmd"

	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestNATSSubjectToMQTTTopic_NoPrefixPassesThrough(t *testing.T) {
	got := natsSubjectToMQTTTopic("maestra.entity.state")
	if got != "maestra.entity.state" {
		t.Errorf("expected passthrough, got %q", got)
	}
}

func TestExtractMQTTPayload_PayloadFieldUnwrapped(t *testing.T) {
	got := extractMQTTPayload([]byte(`{"payload":"hi"}`))
	if string(got) != "hi" {
		t.Errorf("got %q want %q", got, "hi")
	}
}

func TestExtractMQTTPayload_NoPayloadFieldReEncodesWhole(t *testing.T) {
	got := extractMQTTPayload([]byte(`{"v":1}`))
	if string(got) != `{"v":1}` {
		t.Errorf("got %q want %q", got, `{"v":1}`)
	}
}

func TestExtractMQTTPayload_NonJSONPassesThrough(t *testing.T) {
	got := extractMQTTPayload([]byte("not-json"))
	if string(got) != "not-json" {
		t.Errorf("got %q want %q", got, "not-json")
	}
}
