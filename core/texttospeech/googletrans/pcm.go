package googletrans

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// splitChunks breaks text into pieces the endpoint accepts, preferring word
// boundaries. Words longer than the limit are hard-split.
func splitChunks(text string, limit int) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, word := range strings.Fields(text) {
		runes := []rune(word)
		for len(runes) > limit {
			flush()
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}
		if len(runes) == 0 {
			continue
		}
		if currentLen > 0 && currentLen+1+len(runes) > limit {
			flush()
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(string(runes))
		currentLen += len(runes)
	}
	flush()

	return chunks
}

// decodeMP3 decodes an MP3 stream to mono samples and its source rate.
func decodeMP3(data []byte) ([]int16, int, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}

	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, err
	}
	if len(raw) == 0 {
		return nil, 0, fmt.Errorf("empty audio stream")
	}

	return downmixStereo(raw), decoder.SampleRate(), nil
}

// downmixStereo averages the decoder's 16-bit little endian stereo frames
// into mono samples.
func downmixStereo(raw []byte) []int16 {
	samples := make([]int16, 0, len(raw)/4)
	for i := 0; i+3 < len(raw); i += 4 {
		left := int16(binary.LittleEndian.Uint16(raw[i : i+2]))
		right := int16(binary.LittleEndian.Uint16(raw[i+2 : i+4]))
		samples = append(samples, int16((int32(left)+int32(right))/2))
	}
	return samples
}

// resample linearly interpolates samples from one rate to another.
func resample(samples []int16, from, to int) []int16 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		return samples
	}

	outLen := int(int64(len(samples)) * int64(to) / int64(from))
	if outLen == 0 {
		return nil
	}

	out := make([]int16, outLen)
	for i := range out {
		pos := float64(i) * float64(from) / float64(to)
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = int16(float64(samples[idx])*(1-frac) + float64(samples[idx+1])*frac)
	}
	return out
}

func pcmBytes(samples []int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(sample))
	}
	return pcm
}
