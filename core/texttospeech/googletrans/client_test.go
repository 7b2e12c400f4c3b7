package googletrans

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/callwright/callwright/core/audio"
	"github.com/callwright/callwright/core/texttospeech"
)

func TestSynthesizeRetriesTransientFailures(t *testing.T) {
	requests := atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)

		query := r.URL.Query()
		if query.Get("client") != "tw-ob" || query.Get("ie") != "UTF-8" {
			t.Errorf("unexpected client params: %v", query)
		}
		if query.Get("tl") != "en" || query.Get("q") != "hello there" {
			t.Errorf("unexpected text params: %v", query)
		}
		if query.Get("total") != "1" || query.Get("idx") != "0" || query.Get("textlen") != "11" {
			t.Errorf("unexpected chunk params: %v", query)
		}
		if query.Get("ttsspeed") != "1" {
			t.Errorf("unexpected speed: %q", query.Get("ttsspeed"))
		}
		if !strings.Contains(r.Header.Get("User-Agent"), "Mozilla") {
			t.Errorf("unexpected user agent: %q", r.Header.Get("User-Agent"))
		}

		if requests.Load() == 1 {
			http.Error(w, "try again", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("not an mp3 stream"))
	}))
	defer srv.Close()

	client := NewClient()
	client.baseURL = srv.URL

	_, err := client.Synthesize(context.Background(), "hello there")
	if err == nil || !strings.Contains(err.Error(), "failed to decode synthesized speech") {
		t.Fatalf("expected a decode error, got: %v", err)
	}
	if got := requests.Load(); got != 2 {
		t.Fatalf("expected 2 fetch attempts, got %d", got)
	}
}

func TestSynthesizeGivesUpAfterRetries(t *testing.T) {
	requests := atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient()
	client.baseURL = srv.URL

	_, err := client.Synthesize(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "failed to fetch synthesized speech") {
		t.Fatalf("expected a fetch error, got: %v", err)
	}
	if got := requests.Load(); got != 2 {
		t.Fatalf("expected 2 fetch attempts, got %d", got)
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	if _, err := NewClient().Synthesize(context.Background(), "   "); err == nil {
		t.Fatal("expected an error for empty text")
	}
}

func TestSynthesizeRejectsNonLinearEncoding(t *testing.T) {
	client := NewClient(texttospeech.WithEncodingInfo(
		audio.EncodingInfo{SampleRate: 8000, Encoding: audio.EncodingMulaw}))

	if _, err := client.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatal("expected an error for a non-linear16 encoding")
	}
}

func TestSplitChunksPrefersWordBoundaries(t *testing.T) {
	chunks := splitChunks("the quick brown fox jumps", 10)

	want := []string{"the quick", "brown fox", "jumps"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %v", len(want), chunks)
	}
	for i, chunk := range chunks {
		if chunk != want[i] {
			t.Fatalf("expected chunk %d to be %q, got %q", i, want[i], chunk)
		}
	}
}

func TestSplitChunksHardSplitsLongWords(t *testing.T) {
	chunks := splitChunks("abcdefghij12345", 10)

	if len(chunks) != 2 || chunks[0] != "abcdefghij" || chunks[1] != "12345" {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
}

func TestSplitChunksIgnoresWhitespaceOnlyText(t *testing.T) {
	if chunks := splitChunks(" \n\t ", 10); len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %v", chunks)
	}
}

func TestResampleInterpolatesBetweenSamples(t *testing.T) {
	up := resample([]int16{0, 100}, 8000, 16000)
	want := []int16{0, 50, 100, 100}
	if len(up) != len(want) {
		t.Fatalf("expected %d samples, got %v", len(want), up)
	}
	for i, sample := range up {
		if sample != want[i] {
			t.Fatalf("expected sample %d to be %d, got %d", i, want[i], sample)
		}
	}

	down := resample([]int16{0, 10, 20, 30}, 16000, 8000)
	if len(down) != 2 || down[0] != 0 || down[1] != 20 {
		t.Fatalf("unexpected downsampled result: %v", down)
	}
}

func TestResampleLeavesMatchingRatesAlone(t *testing.T) {
	samples := []int16{1, 2, 3}
	if got := resample(samples, 24000, 24000); len(got) != 3 {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestDownmixStereoAveragesChannels(t *testing.T) {
	raw := []byte{
		100, 0, 200, 0, // L=100 R=200
		0x00, 0x80, 0x00, 0x80, // L=R=-32768
		0x01, // trailing partial frame is dropped
	}

	samples := downmixStereo(raw)
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %v", samples)
	}
	if samples[0] != 150 {
		t.Fatalf("expected averaged sample 150, got %d", samples[0])
	}
	if samples[1] != -32768 {
		t.Fatalf("expected averaged sample -32768, got %d", samples[1])
	}
}

func TestPCMBytesEncodesLittleEndian(t *testing.T) {
	pcm := pcmBytes([]int16{1, -1})
	want := []byte{0x01, 0x00, 0xFF, 0xFF}
	if len(pcm) != len(want) {
		t.Fatalf("expected %d bytes, got %v", len(want), pcm)
	}
	for i, b := range pcm {
		if b != want[i] {
			t.Fatalf("expected byte %d to be %#x, got %#x", i, want[i], b)
		}
	}
}
