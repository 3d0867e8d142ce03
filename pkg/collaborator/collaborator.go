// Package collaborator implements the default realization of the fabric's
// host-provided send callback: forwarding delivered content to an
// OpenAI-compatible chat completion endpoint, standing in for "the
// editor's chat surface" that the fabric itself treats as an external,
// out-of-scope collaborator.
package collaborator

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Client forwards dispatched payloads to an OpenAI-compatible endpoint.
type Client struct {
	sdk   openai.Client
	model string
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides the chat completion model. Defaults to DefaultModel.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// New creates a Client authenticated with apiKey. If baseURL is non-empty,
// requests go to that OpenAI-compatible endpoint instead of the public
// OpenAI API — this is how a local model server or Azure OpenAI deployment
// is wired in.
func New(apiKey, baseURL string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("collaborator: API key is required")
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}

	c := &Client{
		sdk:   openai.NewClient(clientOpts...),
		model: DefaultModel,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Deliver sends content to the configured model as a single user turn and
// returns the assistant's reply text. A non-nil error wraps whatever the
// SDK reported (network failure, non-2xx response, malformed response).
func (c *Client) Deliver(ctx context.Context, content string) (string, error) {
	resp, err := c.sdk.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(content),
		},
	})
	if err != nil {
		return "", fmt.Errorf("collaborator: completion request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("collaborator: completion response had no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// Model returns the model this client sends requests to.
func (c *Client) Model() string { return c.model }
