// Package llm calls an OpenAI-compatible chat completion endpoint, such as
// a LiteLLM proxy, on behalf of the generative nodes.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/sieve/internal/logging"
	"github.com/aretw0/sieve/pkg/domain"
	"github.com/sashabaranov/go-openai"
)

const defaultSystemPrompt = "You are a meticulous analyst of document prioritization rules. You answer with JSON only."

// Config selects the endpoint.
type Config struct {
	// Endpoint is the base URL, e.g. http://localhost:4000. Empty means
	// the public OpenAI API.
	Endpoint string
	APIKey   string
	// System replaces the default system message.
	System string
	// JSONMode asks the endpoint to constrain output to a JSON object.
	JSONMode bool
	// HTTPClient overrides the transport.
	HTTPClient *http.Client
}

// Client implements ports.LanguageModel.
type Client struct {
	client   *openai.Client
	system   string
	jsonMode bool
	logger   *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for cfg.
func New(cfg Config, opts ...Option) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		oc.BaseURL = cfg.Endpoint
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}

	c := &Client{
		client:   openai.NewClientWithConfig(oc),
		system:   cfg.System,
		jsonMode: cfg.JSONMode,
		logger:   logging.NewNop(),
	}
	if c.system == "" {
		c.system = defaultSystemPrompt
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke sends prompt as the user message and returns the first choice.
// Failures are reported as *domain.CollaboratorFault.
func (c *Client) Invoke(ctx context.Context, model, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if c.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.ErrorContext(ctx, "chat completion failed", "model", model, "err", err)
		return "", fault(err)
	}
	if len(resp.Choices) == 0 {
		return "", &domain.CollaboratorFault{Kind: "empty", Detail: "endpoint returned no choices"}
	}
	c.logger.DebugContext(ctx, "chat completion",
		"model", model,
		"finish_reason", resp.Choices[0].FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)
	return resp.Choices[0].Message.Content, nil
}

func fault(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &domain.CollaboratorFault{
			Kind:   "api",
			Detail: fmt.Sprintf("status %d: %s", apiErr.HTTPStatusCode, apiErr.Message),
			Err:    err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &domain.CollaboratorFault{
			Kind:   "api",
			Detail: fmt.Sprintf("status %d", reqErr.HTTPStatusCode),
			Err:    err,
		}
	}
	return &domain.CollaboratorFault{Kind: "transport", Detail: err.Error(), Err: err}
}
