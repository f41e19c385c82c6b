package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	targetRate     = 16000
	targetChannels = 1
	targetBits     = 16
)

var errNotWAV = errors.New("audio: not a PCM WAV file")

type wavData struct {
	sampleRate int
	channels   int
	samples    []float64 // mono after downmix
}

// decodeWAV parses a RIFF/WAVE file holding 16-bit PCM and downmixes to mono
// float samples. Other containers and codecs are left to the exec strategies.
func decodeWAV(b []byte) (*wavData, error) {
	if len(b) < 44 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, errNotWAV
	}

	var (
		sampleRate, channels, bits int
		data                       []byte
	)
	off := 12
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		body := off + 8
		if body+size > len(b) {
			size = len(b) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, errNotWAV
			}
			format := binary.LittleEndian.Uint16(b[body : body+2])
			if format != 1 { // PCM only
				return nil, fmt.Errorf("audio: unsupported WAV format code %d", format)
			}
			channels = int(binary.LittleEndian.Uint16(b[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(b[body+14 : body+16]))
		case "data":
			data = b[body : body+size]
		}
		off = body + size
		if size%2 == 1 {
			off++ // chunks are word-aligned
		}
	}
	if sampleRate == 0 || channels == 0 || data == nil {
		return nil, errNotWAV
	}
	if bits != 16 {
		return nil, fmt.Errorf("audio: unsupported WAV bit depth %d", bits)
	}

	frameCount := len(data) / (2 * channels)
	samples := make([]float64, frameCount)
	for i := 0; i < frameCount; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			v := int16(binary.LittleEndian.Uint16(data[(i*channels+c)*2:]))
			sum += float64(v)
		}
		samples[i] = sum / float64(channels)
	}
	return &wavData{sampleRate: sampleRate, channels: channels, samples: samples}, nil
}

// resampleLinear interpolates mono samples from srcRate to dstRate.
func resampleLinear(samples []float64, srcRate, dstRate int) []float64 {
	if srcRate == dstRate || len(samples) == 0 {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out
	}
	n := int(math.Round(float64(len(samples)) * float64(dstRate) / float64(srcRate)))
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	step := float64(len(samples)-1) / float64(maxInt(n-1, 1))
	for i := range out {
		pos := float64(i) * step
		lo := int(pos)
		hi := lo + 1
		if hi >= len(samples) {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(lo)
		out[i] = samples[lo]*(1-frac) + samples[hi]*frac
	}
	return out
}

// encodeWAV writes mono float samples as a 16 kHz 16-bit PCM WAV blob.
func encodeWAV(samples []float64, sampleRate int) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, 44+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], targetChannels)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*targetChannels*targetBits/8))
	binary.LittleEndian.PutUint16(buf[32:34], targetChannels*targetBits/8)
	binary.LittleEndian.PutUint16(buf[34:36], targetBits)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range samples {
		v := math.Round(s)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		}
		if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(int16(v)))
	}
	return buf
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
