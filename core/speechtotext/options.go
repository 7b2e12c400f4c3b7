// Package speechtotext turns agent reply audio back into text. Engines live
// in subpackages; this package holds the option set shared by all of them.
package speechtotext

import "github.com/callwright/callwright/core/audio"

type TranscriptionOptions struct {
	// Model names the engine's recognition model.
	Model string
	// Language is the language code understood by the engine.
	Language string

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithModel(model string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		if model != "" {
			o.Model = model
		}
	}
}

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		if language != "" {
			o.Language = language
		}
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}
