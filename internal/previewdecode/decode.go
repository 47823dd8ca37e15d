// Package previewdecode implements the SSE preview proxy's decoder family:
// turning a raw UDP datagram into the JSON fields re-emitted as a
// `preview` SSE event. Each decoder is a pure function over bytes so it
// can be exercised without a socket.
package previewdecode

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"math"

	"github.com/jordansnyder/maestra-core/internal/domain"
)

const (
	sdrfMagic      uint32 = 0x53445246
	sdrfHeaderSize        = 36

	rawHexPreviewBytes = 256

	pcm16FullScale = 32768.0
	minDBFloor     = 1e-12
)

// Decode dispatches to the decoder family member for streamType,
// falling back to the raw/hex representation on an unknown type or a
// failed decode.
func Decode(streamType string, data []byte) domain.JSON {
	switch streamType {
	case "sensor":
		if out, ok := decodeSDRF(data); ok {
			return out
		}
	case "data", "osc", "midi":
		if out, ok := decodeJSON(data); ok {
			return out
		}
	case "audio":
		if out, ok := decodePCM16(data); ok {
			return out
		}
	}

	return rawFallback(data)
}

// decodeSDRF parses the binary spectrum-frame wire format: a 36-byte
// little-endian header (magic, seq, center_freq, sample_rate, reserved,
// fft_size) followed by fft_size little-endian f32 power_db values.
func decodeSDRF(data []byte) (domain.JSON, bool) {
	if len(data) < sdrfHeaderSize {
		return nil, false
	}

	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != sdrfMagic {
		return nil, false
	}

	seq := binary.LittleEndian.Uint32(data[4:8])
	centerFreq := math.Float64frombits(binary.LittleEndian.Uint64(data[8:16]))
	sampleRate := math.Float64frombits(binary.LittleEndian.Uint64(data[16:24]))
	fftSize := binary.LittleEndian.Uint32(data[32:36])

	want := sdrfHeaderSize + 4*int(fftSize)
	if len(data) < want {
		return nil, false
	}

	powerDB := make([]float64, fftSize)

	for i := 0; i < int(fftSize); i++ {
		off := sdrfHeaderSize + i*4
		bits := binary.LittleEndian.Uint32(data[off : off+4])
		powerDB[i] = float64(math.Float32frombits(bits))
	}

	return domain.JSON{
		"type":        "sensor",
		"seq":         seq,
		"center_freq": centerFreq,
		"sample_rate": sampleRate,
		"fft_size":    fftSize,
		"power_db":    powerDB,
	}, true
}

// decodeJSON parses data as UTF-8 JSON. An object root passes through
// unchanged; anything else is wrapped as {payload: ...}.
func decodeJSON(data []byte) (domain.JSON, bool) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}

	if obj, ok := v.(map[string]interface{}); ok {
		return domain.JSON(obj), true
	}

	return domain.JSON{"payload": v}, true
}

// decodePCM16 interprets data as little-endian signed 16-bit PCM and
// computes level metrics over the whole buffer.
func decodePCM16(data []byte) (domain.JSON, bool) {
	n := len(data) / 2
	if n == 0 {
		return nil, false
	}

	var sumSquares float64

	peak := 0.0

	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
		v := math.Abs(float64(sample))

		sumSquares += float64(sample) * float64(sample)

		if v > peak {
			peak = v
		}
	}

	rms := math.Sqrt(sumSquares / float64(n))

	rmsLevel := rms / pcm16FullScale
	peakLevel := peak / pcm16FullScale

	return domain.JSON{
		"type":         "audio",
		"sample_count": n,
		"rms_db":       20 * math.Log10(math.Max(rmsLevel, minDBFloor)),
		"peak_db":      20 * math.Log10(math.Max(peakLevel, minDBFloor)),
		"rms_level":    rmsLevel,
		"peak_level":   peakLevel,
	}, true
}

func rawFallback(data []byte) domain.JSON {
	n := len(data)
	if n > rawHexPreviewBytes {
		n = rawHexPreviewBytes
	}

	return domain.JSON{
		"type": "raw",
		"size": len(data),
		"hex":  hex.EncodeToString(data[:n]),
	}
}
