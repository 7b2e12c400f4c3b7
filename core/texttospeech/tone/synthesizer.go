// Package tone is an offline synthesizer for tests and dry runs. It renders
// a sine burst whose length tracks the text, so a run can exercise the full
// audio path without network access or credentials.
package tone

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/callwright/callwright/core/audio"
	"github.com/callwright/callwright/core/texttospeech"
)

const (
	burstFrequency = 440.0
	amplitude      = 0.3

	// Rough speech pacing: one word takes about 300ms, followed by a
	// short pause.
	wordDuration = 300 * time.Millisecond
	tailDuration = 150 * time.Millisecond
)

type Synthesizer struct {
	options texttospeech.SynthesisOptions
}

func NewSynthesizer(opts ...texttospeech.SynthesisOption) *Synthesizer {
	options := texttospeech.SynthesisOptions{
		Speed: 1.0,
		EncodingInfo: audio.EncodingInfo{
			SampleRate: audio.TTSSampleRate,
			Encoding:   audio.EncodingLinear16,
		},
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Synthesizer{options: options}
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) ([]byte, error) {
	options := s.options
	for _, opt := range opts {
		opt(&options)
	}

	if options.EncodingInfo.Encoding != audio.EncodingLinear16 {
		return nil, fmt.Errorf("unsupported encoding %q", options.EncodingInfo.Encoding.Name())
	}

	words := len(strings.Fields(text))
	if words == 0 {
		return nil, fmt.Errorf("no text to synthesize")
	}

	speed := options.Speed
	if speed <= 0 {
		speed = 1.0
	}

	rate := options.EncodingInfo.SampleRate
	burst := time.Duration(float64(words) * float64(wordDuration) / speed)
	burstSamples := int(float64(rate) * burst.Seconds())
	tailSamples := int(float64(rate) * tailDuration.Seconds())

	pcm := make([]byte, (burstSamples+tailSamples)*2)
	for i := 0; i < burstSamples; i++ {
		sample := int16(amplitude * math.MaxInt16 *
			math.Sin(2*math.Pi*burstFrequency*float64(i)/float64(rate)))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(sample))
	}

	pcm = audio.PadSilence(options.EncodingInfo, pcm, options.MinDuration)
	return audio.EncodeWAV(options.EncodingInfo, pcm), nil
}
