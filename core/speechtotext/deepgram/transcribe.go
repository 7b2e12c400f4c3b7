// Package deepgram transcribes recorded audio over Deepgram's listen
// websocket.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"

	"github.com/callwright/callwright/core/audio"
	"github.com/callwright/callwright/core/speechtotext"
)

const (
	defaultModel    = "nova-3"
	defaultLanguage = "en-US"

	dialTimeout = 30 * time.Second
	// Audio is streamed in slices this long rather than as one frame.
	chunkDuration = 50 * time.Millisecond
)

// TranscriptionClient transcribes whole reply payloads, one connection per
// call.
type TranscriptionClient struct {
	endpoint url.URL
	options  speechtotext.TranscriptionOptions
}

func NewTranscriptionClient(opts ...speechtotext.TranscriptionOption) *TranscriptionClient {
	options := speechtotext.TranscriptionOptions{
		Model:        defaultModel,
		Language:     defaultLanguage,
		EncodingInfo: audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &TranscriptionClient{
		endpoint: url.URL{Scheme: "wss", Host: "api.deepgram.com", Path: "/v1/listen"},
		options:  options,
	}
}

// Transcribe implements the harness recognizer.
func (c *TranscriptionClient) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	return c.TranscribeOnce(ctx, audioData)
}

// TranscribeOnce streams one audio payload, closes the stream, and returns
// the joined final transcripts.
func (c *TranscriptionClient) TranscribeOnce(ctx context.Context, audioData []byte, opts ...speechtotext.TranscriptionOption) (string, error) {
	ctx, span := tracer.Start(ctx, "transcribe audio")
	defer span.End()

	options := c.options
	for _, opt := range opts {
		opt(&options)
	}

	if len(audioData) == 0 {
		err := fmt.Errorf("no audio to transcribe")
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return "", err
	}

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		err = fmt.Errorf("invalid encoding: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return "", err
	}

	conn, err := c.dial(ctx, options, encoding)
	if err != nil {
		err = fmt.Errorf("failed to open websocket: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return "", err
	}
	defer conn.Close()

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- streamAudio(conn, audioData, options.EncodingInfo)
	}()

	transcript := collectTranscripts(conn)

	if err := <-writeErr; err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return "", err
	}

	span.SetAttributes(attribute.Int("transcription.characters", len(transcript)))
	return transcript, nil
}

func (c *TranscriptionClient) dial(ctx context.Context, options speechtotext.TranscriptionOptions, encoding *encodingInfo) (*websocket.Conn, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	queryParams := url.Values{}
	queryParams.Set("encoding", encoding.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", options.Model)
	queryParams.Set("language", options.Language)
	queryParams.Set("smart_format", "true")

	endpoint := c.endpoint
	endpoint.RawQuery = queryParams.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint.String(),
		http.Header{"Authorization": {"Token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func streamAudio(conn *websocket.Conn, audioData []byte, encoding audio.EncodingInfo) error {
	chunkSize := int(chunkDuration * time.Duration(encoding.BytesPerSecond()) / time.Second)
	if chunkSize <= 0 {
		chunkSize = len(audioData)
	}

	for start := 0; start < len(audioData); start += chunkSize {
		end := min(start+chunkSize, len(audioData))
		if err := conn.WriteMessage(websocket.BinaryMessage, audioData[start:end]); err != nil {
			return fmt.Errorf("failed to write to deepgram client: %w", err)
		}
	}

	if err := conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return nil
}

// collectTranscripts reads until the server closes the stream, keeping the
// final transcript of each segment.
func collectTranscripts(conn *websocket.Conn) string {
	var parts []string
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if err.Error() != "websocket: close 1000 (normal)" {
				log.Printf("Websocket read error: %v", err)
			}
			break
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		var parsedMsg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &parsedMsg); err != nil {
			log.Printf("Failed to unmarshal deepgram message: %v", err)
			continue
		}
		if api.TypeResponse(parsedMsg.Type) != api.TypeMessageResponse {
			continue
		}

		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Printf("Failed to unmarshal deepgram message: %v", err)
			continue
		}
		if !msgResp.IsFinal || len(msgResp.Channel.Alternatives) == 0 {
			continue
		}

		transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		if len(transcript) > 0 {
			parts = append(parts, transcript)
		}
	}

	return strings.Join(parts, " ")
}
