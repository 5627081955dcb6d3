package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/tandemhq/profile-agent/internal/errors"
)

const (
	defaultMaxTokens = 1024
	defaultModel     = "gpt-4o"
)

// Client implements Provider against an OpenAI-compatible chat completions API.
type Client struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	http      *http.Client
	logger    zerolog.Logger
}

// Option configures the client.
type Option func(*Client)

func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// NewClient constructs a chat completions client.
func NewClient(apiKey string, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:    apiKey,
		baseURL:   "https://api.openai.com/v1",
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
		http:      &http.Client{Timeout: 60 * time.Second},
		logger:    logger.With().Str("component", "llm").Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ---- wire types ----

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []ChatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a blocking completion request.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	maxTok := c.maxTokens
	if req.MaxTokens > 0 {
		maxTok = req.MaxTokens
	}
	wire := chatRequest{
		Model:     c.model,
		MaxTokens: maxTok,
	}
	if req.SystemPrompt != "" {
		wire.Messages = append(wire.Messages, ChatMessage{Role: "system", Content: req.SystemPrompt})
	}
	wire.Messages = append(wire.Messages, req.Messages...)

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, perrors.NewAPIError("llm", 0, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, perrors.NewAPIError("llm", resp.StatusCode, string(raw))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if cr.Error != nil {
		return nil, perrors.NewAPIError("llm", resp.StatusCode, cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return nil, perrors.NewAPIError("llm", resp.StatusCode, "no choices in response")
	}

	out := &CompletionResponse{
		Text:         cr.Choices[0].Message.Content,
		InputTokens:  cr.Usage.PromptTokens,
		OutputTokens: cr.Usage.CompletionTokens,
	}
	c.logger.Debug().
		Str("model", c.model).
		Int("in_tokens", out.InputTokens).
		Int("out_tokens", out.OutputTokens).
		Msg("llm complete")
	return out, nil
}
