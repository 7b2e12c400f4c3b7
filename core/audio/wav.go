package audio

import (
	"encoding/binary"
	"fmt"
)

const wavHeaderSize = 44

// EncodeWAV wraps mono PCM in a canonical RIFF/WAVE header so files on disk
// are playable by standard tooling.
func EncodeWAV(info EncodingInfo, pcm []byte) []byte {
	if info.IsZero() {
		info = GetDefaultEncodingInfo()
	}

	var formatCode uint16
	switch info.Encoding {
	case EncodingALaw:
		formatCode = 6
	case EncodingMulaw:
		formatCode = 7
	default:
		formatCode = 1
	}

	const channels = 1
	bitsPerSample := uint16(info.Encoding.ByteSize() * 8)
	blockAlign := channels * int(bitsPerSample) / 8
	byteRate := info.SampleRate * blockAlign

	header := make([]byte, wavHeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], formatCode)
	binary.LittleEndian.PutUint16(header[22:24], channels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(info.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	return append(header, pcm...)
}

// DecodeWAV extracts the encoding and PCM body from a RIFF/WAVE payload.
func DecodeWAV(data []byte) (EncodingInfo, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return EncodingInfo{}, nil, fmt.Errorf("not a RIFF/WAVE stream")
	}

	var info EncodingInfo
	var pcm []byte

	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(data) {
			chunkSize = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return EncodingInfo{}, nil, fmt.Errorf("malformed fmt chunk (%d bytes)", chunkSize)
			}
			formatCode := binary.LittleEndian.Uint16(data[body : body+2])
			channels := binary.LittleEndian.Uint16(data[body+2 : body+4])
			if channels != 1 {
				return EncodingInfo{}, nil, fmt.Errorf("unsupported channel count %d", channels)
			}
			info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			switch formatCode {
			case 1:
				info.Encoding = EncodingLinear16
			case 6:
				info.Encoding = EncodingALaw
			case 7:
				info.Encoding = EncodingMulaw
			default:
				return EncodingInfo{}, nil, fmt.Errorf("unsupported wav format code %d", formatCode)
			}
		case "data":
			pcm = data[body : body+chunkSize]
		}

		// Chunks are word aligned.
		offset = body + chunkSize + chunkSize%2
	}

	if info.IsZero() {
		return EncodingInfo{}, nil, fmt.Errorf("missing fmt chunk")
	}
	if pcm == nil {
		return EncodingInfo{}, nil, fmt.Errorf("missing data chunk")
	}

	return info, pcm, nil
}
