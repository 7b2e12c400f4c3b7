// Package openai is a minimal OpenAI chat-completions client covering the two
// calls the harness makes: free-form prompting and schema-constrained JSON
// output.
package openai

import (
	"fmt"
	"net/http"
	"os"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o"
)

type Client struct {
	apiKey  string
	model   string
	baseURL string

	httpClient *http.Client
}

type ClientOption func(*Client)

// WithAPIKey overrides the OPENAI_API_KEY environment lookup.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithModel sets the model used for all prompts from this client.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the client at a different API root.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{
		model:   DefaultModel,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		client.apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if client.apiKey == "" {
		return nil, fmt.Errorf("openai api key not found")
	}

	return client, nil
}

// Model returns the model this client prompts with.
func (c *Client) Model() string {
	return c.model
}
