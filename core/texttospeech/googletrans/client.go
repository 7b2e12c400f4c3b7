// Package googletrans synthesizes speech through the Google Translate TTS
// endpoint. It needs no credentials, which makes it the default engine for
// synthetic stimuli.
package googletrans

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/callwright/callwright/core/audio"
	"github.com/callwright/callwright/core/texttospeech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultLanguage = "en"
	// DefaultAccent is the translate host's top-level domain, which selects
	// the regional voice flavor.
	DefaultAccent = "com"
	// DefaultMinDuration matches what the platform's speech recognition
	// needs to reliably pick up a clip.
	DefaultMinDuration = 18 * time.Second

	defaultTimeout = 30 * time.Second

	// The endpoint rejects long queries, so text is synthesized in parts.
	maxChunkChars = 100
	fetchAttempts = 2

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

type Client struct {
	// baseURL overrides the translate host when set.
	baseURL    string
	httpClient *http.Client
	options    texttospeech.SynthesisOptions
}

func NewClient(opts ...texttospeech.SynthesisOption) *Client {
	options := texttospeech.SynthesisOptions{
		Language:    DefaultLanguage,
		Accent:      DefaultAccent,
		Speed:       1.0,
		MinDuration: DefaultMinDuration,
		EncodingInfo: audio.EncodingInfo{
			SampleRate: audio.TTSSampleRate,
			Encoding:   audio.EncodingLinear16,
		},
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		options: options,
	}
}

func (c *Client) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()

	options := c.options
	for _, opt := range opts {
		opt(&options)
	}

	if options.EncodingInfo.Encoding != audio.EncodingLinear16 {
		err := fmt.Errorf("unsupported encoding %q", options.EncodingInfo.Encoding.Name())
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return nil, err
	}

	chunks := splitChunks(text, maxChunkChars)
	if len(chunks) == 0 {
		err := fmt.Errorf("no text to synthesize")
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return nil, err
	}
	span.SetAttributes(attribute.Int("speech.chunks", len(chunks)))

	var encoded []byte
	for i, chunk := range chunks {
		data, err := c.fetchChunk(ctx, chunk, i, len(chunks), options)
		if err != nil {
			err = fmt.Errorf("failed to fetch synthesized speech: %w", err)
			span.RecordError(err)
			span.SetAttributes(attribute.String("error", err.Error()))
			return nil, err
		}
		encoded = append(encoded, data...)
	}

	samples, sourceRate, err := decodeMP3(encoded)
	if err != nil {
		err = fmt.Errorf("failed to decode synthesized speech: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return nil, err
	}

	samples = resample(samples, sourceRate, options.EncodingInfo.SampleRate)
	pcm := audio.PadSilence(options.EncodingInfo, pcmBytes(samples), options.MinDuration)
	span.SetAttributes(attribute.Int("speech.bytes", len(pcm)))
	return audio.EncodeWAV(options.EncodingInfo, pcm), nil
}

// fetchChunk requests one MP3 part, retrying once on transient failures.
func (c *Client) fetchChunk(ctx context.Context, chunk string, idx, total int, options texttospeech.SynthesisOptions) ([]byte, error) {
	endpoint := c.baseURL
	if endpoint == "" {
		endpoint = "https://translate.google." + options.Accent
	}

	query := url.Values{}
	query.Set("ie", "UTF-8")
	query.Set("client", "tw-ob")
	query.Set("tl", options.Language)
	query.Set("q", chunk)
	query.Set("total", strconv.Itoa(total))
	query.Set("idx", strconv.Itoa(idx))
	query.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))
	if options.Speed > 0 {
		query.Set("ttsspeed", strconv.FormatFloat(options.Speed, 'f', -1, 64))
	}

	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		data, err := c.fetchOnce(ctx, endpoint+"/translate_tts?"+query.Encode())
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}

	return io.ReadAll(resp.Body)
}
