package audio

import (
	"bytes"
	"testing"
	"time"
)

func TestEncodeDecodeWAV(t *testing.T) {
	info := EncodingInfo{SampleRate: 24000, Encoding: EncodingLinear16}
	pcm := bytes.Repeat([]byte{0x12, 0x34}, 240)

	encoded := EncodeWAV(info, pcm)
	if len(encoded) != wavHeaderSize+len(pcm) {
		t.Fatalf("expected %d encoded bytes, got %d", wavHeaderSize+len(pcm), len(encoded))
	}

	decodedInfo, decodedPCM, err := DecodeWAV(encoded)
	if err != nil {
		t.Fatalf("failed to decode wav: %v", err)
	}
	if decodedInfo.SampleRate != 24000 {
		t.Errorf("expected sample rate 24000, got %d", decodedInfo.SampleRate)
	}
	if decodedInfo.Encoding != EncodingLinear16 {
		t.Errorf("expected linear16 encoding, got %q", decodedInfo.Encoding.Name())
	}
	if !bytes.Equal(decodedPCM, pcm) {
		t.Errorf("expected decoded pcm to match input (%d bytes vs %d)", len(decodedPCM), len(pcm))
	}
}

func TestDecodeWAVRejectsOtherPayloads(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("ID3\x04rest of an mp3 stream")); err == nil {
		t.Error("expected an error for a non-RIFF payload")
	}
	if _, _, err := DecodeWAV([]byte{0x00, 0x01}); err == nil {
		t.Error("expected an error for a truncated payload")
	}
}

func TestDecodeWAVSkipsExtraChunks(t *testing.T) {
	info := EncodingInfo{SampleRate: 16000, Encoding: EncodingLinear16}
	pcm := []byte{1, 2, 3, 4}
	encoded := EncodeWAV(info, pcm)

	// Splice a LIST chunk between fmt and data.
	list := append([]byte("LIST"), 0x04, 0x00, 0x00, 0x00, 'I', 'N', 'F', 'O')
	withList := append([]byte{}, encoded[:36]...)
	withList = append(withList, list...)
	withList = append(withList, encoded[36:]...)

	_, decodedPCM, err := DecodeWAV(withList)
	if err != nil {
		t.Fatalf("failed to decode wav with LIST chunk: %v", err)
	}
	if !bytes.Equal(decodedPCM, pcm) {
		t.Errorf("expected pcm %v, got %v", pcm, decodedPCM)
	}
}

func TestEncodingInfoByteRates(t *testing.T) {
	if got := (EncodingInfo{SampleRate: 16000, Encoding: EncodingLinear16}).BytesPerSecond(); got != 32000 {
		t.Errorf("expected 32000 bytes/s for linear16, got %d", got)
	}
	if got := (EncodingInfo{SampleRate: 8000, Encoding: EncodingMulaw}).BytesPerSecond(); got != 8000 {
		t.Errorf("expected 8000 bytes/s for mulaw, got %d", got)
	}
	if got := (EncodingInfo{}).BytesPerSecond(); got != 0 {
		t.Errorf("expected 0 bytes/s for zero encoding, got %d", got)
	}
}

func TestPadSilenceExtendsShortClips(t *testing.T) {
	info := EncodingInfo{SampleRate: 8000, Encoding: EncodingLinear16}
	pcm := bytes.Repeat([]byte{0x12, 0x34}, 400)

	padded := PadSilence(info, pcm, time.Second)
	if len(padded) != 16000 {
		t.Fatalf("expected 16000 padded bytes, got %d", len(padded))
	}
	if !bytes.Equal(padded[:len(pcm)], pcm) {
		t.Error("expected the original samples to be preserved")
	}
	for i, b := range padded[len(pcm):] {
		if b != 0 {
			t.Fatalf("expected silence at byte %d, got %#x", len(pcm)+i, b)
		}
	}
}

func TestPadSilenceLeavesLongClipsAlone(t *testing.T) {
	info := EncodingInfo{SampleRate: 8000, Encoding: EncodingMulaw}
	pcm := bytes.Repeat([]byte{0x7F}, 9000)

	if got := PadSilence(info, pcm, time.Second); len(got) != len(pcm) {
		t.Errorf("expected clip to stay %d bytes, got %d", len(pcm), len(got))
	}
	if got := PadSilence(info, pcm, 0); len(got) != len(pcm) {
		t.Errorf("expected no padding without a minimum duration, got %d bytes", len(got))
	}
}
