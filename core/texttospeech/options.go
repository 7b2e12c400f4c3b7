// Package texttospeech turns stimulus text into playable audio. Engines
// live in subpackages; this package holds the synthesizer contract and the
// option set shared by all of them.
package texttospeech

import (
	"context"
	"time"

	"github.com/callwright/callwright/core/audio"
)

// Synthesizer renders one utterance to a complete WAV payload.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts ...SynthesisOption) ([]byte, error)
}

// SynthesisOptions is shared by all engines. An engine ignores the knobs it
// has no equivalent for.
type SynthesisOptions struct {
	// Language is the language code understood by the engine.
	Language string
	// Accent selects a regional flavor where the engine distinguishes them.
	// For the translate endpoint this is the top-level domain.
	Accent string
	// Voice names an engine-specific voice model.
	Voice string
	// Speed is the speaking rate multiplier, clamped to [0.5, 2.0].
	Speed float64
	// MinDuration pads synthesized audio with trailing silence up to this
	// length, so very short clips are not dropped by the agent's ASR.
	// Zero means no padding.
	MinDuration time.Duration

	EncodingInfo audio.EncodingInfo
}

type SynthesisOption func(*SynthesisOptions)

func WithLanguage(language string) SynthesisOption {
	return func(o *SynthesisOptions) {
		if language != "" {
			o.Language = language
		}
	}
}

func WithAccent(accent string) SynthesisOption {
	return func(o *SynthesisOptions) {
		if accent != "" {
			o.Accent = accent
		}
	}
}

func WithVoice(voice string) SynthesisOption {
	return func(o *SynthesisOptions) {
		if voice != "" {
			o.Voice = voice
		}
	}
}

// WithSpeed sets the speaking rate multiplier. Values outside [0.5, 2.0]
// are clamped.
func WithSpeed(speed float64) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.Speed = min(2.0, max(0.5, speed))
	}
}

func WithMinDuration(duration time.Duration) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.MinDuration = duration
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SynthesisOption {
	return func(o *SynthesisOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}
