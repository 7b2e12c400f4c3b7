// Package deepgram synthesizes speech over Deepgram's speak websocket.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/callwright/callwright/core/audio"
	"github.com/callwright/callwright/core/texttospeech"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

const dialTimeout = 30 * time.Second

// TextToSpeechClient renders whole utterances. A stimulus is sent in one
// piece rather than streamed, so every call opens a connection, speaks the
// text, drains the audio until the flush confirmation, and closes.
type TextToSpeechClient struct {
	endpoint url.URL
	voice    Voice
	options  texttospeech.SynthesisOptions
}

func NewTextToSpeechClient(voice Voice, opts ...texttospeech.SynthesisOption) (*TextToSpeechClient, error) {
	if voice == "" {
		voice = defaultVoice
	}
	if !slices.Contains(GetAvailableVoices(), voice) {
		return nil, fmt.Errorf("invalid voice")
	}

	options := texttospeech.SynthesisOptions{
		EncodingInfo: audio.EncodingInfo{
			SampleRate: audio.TTSSampleRate,
			Encoding:   audio.EncodingLinear16,
		},
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &TextToSpeechClient{
		endpoint: url.URL{Scheme: "wss", Host: "api.deepgram.com", Path: "/v1/speak"},
		voice:    voice,
		options:  options,
	}, nil
}

func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()

	options := c.options
	for _, opt := range opts {
		opt(&options)
	}

	voice := c.voice
	if options.Voice != "" {
		voice = Voice(options.Voice)
		if !slices.Contains(GetAvailableVoices(), voice) {
			err := fmt.Errorf("invalid voice")
			span.RecordError(err)
			span.SetAttributes(attribute.String("error", err.Error()))
			return nil, err
		}
	}
	span.SetAttributes(attribute.String("speech.voice", string(voice)))

	conn, err := c.dial(ctx, voice, options.EncodingInfo)
	if err != nil {
		err = fmt.Errorf("failed to open websocket: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return nil, err
	}
	defer conn.Close()

	if err := conn.WriteJSON(speakMessage{Type: "Speak", Text: text}); err != nil {
		err = fmt.Errorf("failed to send text to deepgram through websocket: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return nil, err
	}
	if err := conn.WriteJSON(controlMessage{Type: "Flush"}); err != nil {
		err = fmt.Errorf("failed to flush deepgram buffer through websocket: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return nil, err
	}

	pcm, err := collectAudio(conn)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return nil, err
	}

	if err := conn.WriteJSON(controlMessage{Type: "Close"}); err != nil {
		log.Printf("Failed to send close message to deepgram websocket: %v", err)
	}

	pcm = audio.PadSilence(options.EncodingInfo, pcm, options.MinDuration)
	span.SetAttributes(attribute.Int("speech.bytes", len(pcm)))
	return audio.EncodeWAV(options.EncodingInfo, pcm), nil
}

func (c *TextToSpeechClient) dial(ctx context.Context, voice Voice, encodingInfo audio.EncodingInfo) (*websocket.Conn, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	urlValues := url.Values{}
	urlValues.Set("encoding", encodingInfo.Encoding.Name())
	urlValues.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	urlValues.Set("model", string(voice))
	urlValues.Set("container", "none")

	endpoint := c.endpoint
	endpoint.RawQuery = urlValues.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint.String(),
		http.Header{"Authorization": {"token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

// collectAudio reads until the flush confirmation and returns the
// concatenated binary frames.
func collectAudio(conn *websocket.Conn) ([]byte, error) {
	var pcm []byte
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("connection closed before synthesis finished: %w", err)
		}

		switch msgType {
		case websocket.BinaryMessage:
			pcm = append(pcm, msg...)
		case websocket.TextMessage:
			var parsedMsg struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				log.Printf("Failed to unmarshal deepgram message: %v", err)
				continue
			}
			if parsedMsg.Type == "Flushed" {
				return pcm, nil
			}
		}
	}
}

type controlMessage struct {
	Type string `json:"type"`
}

type speakMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
