package audio

import "time"

const (
	DefaultSampleRate = 16000
	DefaultEncoding   = "linear16"
)

// TTSSampleRate is the rate synthesized stimuli are produced at.
const TTSSampleRate = 24000

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Encoding: encodingFormat(DefaultEncoding)}
}

type EncodingInfo struct {
	SampleRate int
	Encoding   encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Encoding.Name() == ""
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Encoding {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	case EncodingLinear16:
		return 0
	}

	return 0
}

// BytesPerSecond returns the byte rate of mono audio in this encoding.
func (e EncodingInfo) BytesPerSecond() int {
	size := e.Encoding.ByteSize()
	if size <= 0 {
		return 0
	}
	return e.SampleRate * size
}

// PadSilence appends trailing silence until pcm lasts at least minDuration.
// Agent-side speech recognition tends to drop clips that end too abruptly,
// so synthesized stimuli are padded before they are sent.
func PadSilence(info EncodingInfo, pcm []byte, minDuration time.Duration) []byte {
	byteRate := info.BytesPerSecond()
	if minDuration <= 0 || byteRate <= 0 {
		return pcm
	}

	minBytes := int(minDuration * time.Duration(byteRate) / time.Second)
	if rem := minBytes % info.Encoding.ByteSize(); rem != 0 {
		minBytes += info.Encoding.ByteSize() - rem
	}
	for len(pcm) < minBytes {
		pcm = append(pcm, info.SilenceValue())
	}
	return pcm
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)
