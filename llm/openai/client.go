package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/xiaokk2024/mymanus1/llm"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultTimeout   = 120 * time.Second
	defaultUserAgent = "mymanus/1.0"
)

// Client implements the LLM client interface for any OpenAI-compatible
// endpoint (OpenAI, DeepSeek, Qwen/DashScope, vLLM, ...).
type Client struct {
	options llm.ClientOptions
	api     *goopenai.Client
	http    *http.Client
}

// NewClient creates a new OpenAI-compatible client
func NewClient(opts ...llm.ClientOption) (*Client, error) {
	options := llm.ClientOptions{
		BaseURL:    defaultBaseURL,
		Timeout:    defaultTimeout,
		MaxRetries: 3,
		UserAgent:  defaultUserAgent,
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.APIKey == "" {
		return nil, fmt.Errorf("API key not provided")
	}
	if options.Model == "" {
		return nil, fmt.Errorf("model not provided")
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: options.Timeout}
	}
	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *httpClient
	wrapped.Transport = &userAgentTransport{userAgent: options.UserAgent, base: base}

	cfg := goopenai.DefaultConfig(options.APIKey)
	cfg.BaseURL = strings.TrimRight(options.BaseURL, "/")
	cfg.HTTPClient = &wrapped

	return &Client{
		options: options,
		api:     goopenai.NewClientWithConfig(cfg),
		http:    &wrapped,
	}, nil
}

// Chat sends a chat request to the completion endpoint
func (c *Client) Chat(ctx context.Context, request *llm.ChatRequest) (*llm.ChatResponse, error) {
	if request.Model == "" {
		request.Model = c.options.Model
	}

	req := buildRequest(request)

	var resp goopenai.ChatCompletionResponse
	err := c.doWithRetries(ctx, func() error {
		var err error
		resp, err = c.api.CreateChatCompletion(ctx, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	return convertResponse(resp), nil
}

// ListModels returns the models the endpoint advertises
func (c *Client) ListModels(ctx context.Context) ([]llm.Model, error) {
	list, err := c.api.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]llm.Model, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, llm.Model{
			ID:      m.ID,
			Object:  m.Object,
			Created: m.CreatedAt,
			OwnedBy: m.OwnedBy,
		})
	}
	return models, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// doWithRetries executes a function with retries on rate limits and
// transient server errors.
func (c *Client) doWithRetries(ctx context.Context, fn func() error) error {
	var lastErr error

	for i := 0; i <= c.options.MaxRetries; i++ {
		if i > 0 {
			// Linear backoff
			delay := time.Duration(i) * time.Second
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func isRetryable(err error) bool {
	status := 0
	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable:
		return true
	}
	return false
}

func buildRequest(request *llm.ChatRequest) goopenai.ChatCompletionRequest {
	req := goopenai.ChatCompletionRequest{
		Model:       request.Model,
		Messages:    make([]goopenai.ChatCompletionMessage, 0, len(request.Messages)),
		Temperature: request.Temperature,
		TopP:        request.TopP,
		MaxTokens:   request.MaxTokens,
		Stop:        request.Stop,
	}

	for _, msg := range request.Messages {
		req.Messages = append(req.Messages, convertMessage(msg))
	}

	if len(request.Tools) > 0 {
		req.Tools = make([]goopenai.Tool, 0, len(request.Tools))
		for _, def := range request.Tools {
			req.Tools = append(req.Tools, goopenai.Tool{
				Type: goopenai.ToolTypeFunction,
				Function: &goopenai.FunctionDefinition{
					Name:        def.Name,
					Description: def.Description,
					Parameters:  def.Parameters,
				},
			})
		}
		if request.ToolChoice != "" {
			req.ToolChoice = request.ToolChoice
		}
	}

	return req
}

func convertMessage(msg llm.Message) goopenai.ChatCompletionMessage {
	out := goopenai.ChatCompletionMessage{
		Role:       string(msg.Role),
		Content:    msg.Text(),
		Name:       msg.Name,
		ToolCallID: msg.ToolCallID,
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, goopenai.ToolCall{
			ID:   tc.ID,
			Type: goopenai.ToolTypeFunction,
			Function: goopenai.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: string(tc.Function.Arguments),
			},
		})
	}
	return out
}

func convertResponse(resp goopenai.ChatCompletionResponse) *llm.ChatResponse {
	out := &llm.ChatResponse{
		ID:      resp.ID,
		Object:  resp.Object,
		Created: resp.Created,
		Model:   resp.Model,
		Usage: &llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	for _, choice := range resp.Choices {
		msg := llm.Message{
			Role: llm.Role(choice.Message.Role),
		}
		if choice.Message.Content != "" {
			msg.Content = llm.StringPtr(choice.Message.Content)
		}
		for _, tc := range choice.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
				ID:   tc.ID,
				Type: string(tc.Type),
				Function: llm.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: []byte(tc.Function.Arguments),
				},
			})
		}
		out.Choices = append(out.Choices, llm.Choice{
			Index:        choice.Index,
			Message:      msg,
			FinishReason: string(choice.FinishReason),
		})
	}

	return out
}

// userAgentTransport sets the User-Agent on every request.
type userAgentTransport struct {
	userAgent string
	base      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent == "" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}
