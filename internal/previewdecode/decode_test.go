package previewdecode

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func sdrfFrame(t *testing.T, seq uint32, centerFreq, sampleRate float64, powerDB []float32) []byte {
	t.Helper()

	buf := make([]byte, 36+4*len(powerDB))
	binary.LittleEndian.PutUint32(buf[0:4], sdrfMagic)
	binary.LittleEndian.PutUint32(buf[4:8], seq)
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(centerFreq))
	binary.LittleEndian.PutUint64(buf[16:24], math.Float64bits(sampleRate))
	binary.LittleEndian.PutUint64(buf[24:32], 0)
	binary.LittleEndian.PutUint32(buf[32:36], uint32(len(powerDB)))

	for i, v := range powerDB {
		binary.LittleEndian.PutUint32(buf[36+i*4:40+i*4], math.Float32bits(v))
	}

	return buf
}

func TestDecodeSDRF_S5Scenario(t *testing.T) {
	frame := sdrfFrame(t, 7, 1e8, 2.048e6, []float32{-40.0, -35.0})

	out := Decode("sensor", frame)

	require.Equal(t, "sensor", out["type"])
	require.Equal(t, uint32(7), out["seq"])
	require.Equal(t, 1e8, out["center_freq"])
	require.Equal(t, 2.048e6, out["sample_rate"])
	require.Equal(t, uint32(2), out["fft_size"])
	powerDB, ok := out["power_db"].([]float64)
	require.True(t, ok)
	require.InDelta(t, -40.0, powerDB[0], 1e-4)
	require.InDelta(t, -35.0, powerDB[1], 1e-4)
}

func TestDecodeSDRF_BadMagicFallsBackToRaw(t *testing.T) {
	frame := make([]byte, 40)

	out := Decode("sensor", frame)
	require.Equal(t, "raw", out["type"])
}

func TestDecodeSDRF_TruncatedFallsBackToRaw(t *testing.T) {
	frame := sdrfFrame(t, 1, 1.0, 1.0, []float32{1, 2, 3})
	truncated := frame[:len(frame)-4]

	out := Decode("sensor", truncated)
	require.Equal(t, "raw", out["type"])
}

func TestDecodeJSON_ObjectPassesThrough(t *testing.T) {
	out := Decode("data", []byte(`{"x":1}`))
	require.Equal(t, float64(1), out["x"])
}

func TestDecodeJSON_NonObjectWrapped(t *testing.T) {
	out := Decode("osc", []byte(`42`))
	require.Equal(t, float64(42), out["payload"])
}

func TestDecodeJSON_InvalidFallsBackToRaw(t *testing.T) {
	out := Decode("midi", []byte(`not json`))
	require.Equal(t, "raw", out["type"])
}

func TestDecodePCM16_SilenceHasVeryLowLevel(t *testing.T) {
	silence := make([]byte, 8)

	out := Decode("audio", silence)
	require.Equal(t, "audio", out["type"])
	require.Equal(t, 4, out["sample_count"])
	require.InDelta(t, 0.0, out["rms_level"].(float64), 1e-9)
}

func TestDecodePCM16_FullScaleSampleHasUnitPeak(t *testing.T) {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, uint16(int16(32767)))

	out := Decode("audio", buf)
	require.InDelta(t, 1.0, out["peak_level"].(float64), 1e-3)
}

func TestDecodeUnknownType_RawFallback(t *testing.T) {
	out := Decode("video", []byte{0x01, 0x02, 0x03})
	require.Equal(t, "raw", out["type"])
	require.Equal(t, 3, out["size"])
	require.Equal(t, "010203", out["hex"])
}

func TestRawFallback_TruncatesHexTo256Bytes(t *testing.T) {
	data := make([]byte, 300)

	out := Decode("unknown", data)
	require.Equal(t, 300, out["size"])
	require.Len(t, out["hex"].(string), 512)
}
