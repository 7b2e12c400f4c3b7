// Package channel talks to the conversation platform's REST side: creating
// WebSocket sessions for a channel, fetching archived conversations, and
// downloading the audio segments they reference.
package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL     string
	channelID   string
	accessToken string
	deviceID    string

	httpClient *http.Client
}

type ClientOption func(*Client)

// WithAccessToken overrides the ACCESS_TOKEN environment lookup.
func WithAccessToken(token string) ClientOption {
	return func(c *Client) {
		c.accessToken = token
	}
}

// WithDeviceID sets the device identifier sent on archive requests.
func WithDeviceID(deviceID string) ClientOption {
	return func(c *Client) {
		c.deviceID = deviceID
	}
}

// WithTimeout bounds every request made by this client.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func NewClient(baseURL, channelID string, opts ...ClientOption) (*Client, error) {
	client := &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		channelID: channelID,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.accessToken == "" {
		client.accessToken = os.Getenv("ACCESS_TOKEN")
	}
	if client.baseURL == "" {
		return nil, fmt.Errorf("channel base URL not set")
	}
	if client.channelID == "" {
		return nil, fmt.Errorf("channel ID not set")
	}

	return client, nil
}

type createSessionRequest struct {
	User sessionUser `json:"user"`
}

type sessionUser struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// probeUser is the fixed identity the harness presents to the channel.
var probeUser = sessionUser{
	Name:  "User",
	Phone: "9876543210",
	Email: "qabot@avaamo.com",
}

type createSessionResponse struct {
	Token string `json:"token"`
	Data  struct {
		Token string `json:"token"`
	} `json:"data"`
}

// CreateSession opens a WebSocket session on the agentic channel and returns
// the join token. The token lands either at the top level of the response or
// under data, depending on the platform version.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "create channel session")
	defer span.End()
	span.SetAttributes(attribute.String("channel.id", c.channelID))

	url := fmt.Sprintf("%s/web_channel/channel/%s/agentic_agents/create_session", c.baseURL, c.channelID)
	body, err := json.Marshal(createSessionRequest{User: probeUser})
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error creating session: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return "", err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return "", err
	}

	var payload createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		err = fmt.Errorf("error unmarshalling session response: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return "", err
	}

	token := payload.Token
	if token == "" {
		token = payload.Data.Token
	}
	if token == "" {
		err := fmt.Errorf("token not found in session response")
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return "", err
	}

	return token, nil
}

// Messages retrieves the raw message archive of a conversation.
func (c *Client) Messages(ctx context.Context, conversationID string) (Archive, error) {
	ctx, span := tracer.Start(ctx, "fetch conversation archive")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", conversationID))

	url := fmt.Sprintf("%s/conversations/%s/messages.json", c.baseURL, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return Archive{}, err
	}
	req.Header.Set("Access-Token", c.accessToken)
	req.Header.Set("Device-Id", c.deviceID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error fetching conversation: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return Archive{}, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return Archive{}, err
	}

	var archive Archive
	if err := json.NewDecoder(resp.Body).Decode(&archive); err != nil {
		err = fmt.Errorf("error unmarshalling conversation archive: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return Archive{}, err
	}

	span.SetAttributes(attribute.Int("archive.entries", len(archive.Entries)))
	return archive, nil
}

// FetchConversation retrieves an archived conversation and distills it into
// the transcript and per-step audio the harness replays.
func (c *Client) FetchConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	archive, err := c.Messages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return ProcessConversation(archive), nil
}

func (c *Client) downloadFile(ctx context.Context, url, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("error creating HTTP request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error downloading file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("error reading file body: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("error writing file: %w", err)
	}
	return int64(len(data)), nil
}
