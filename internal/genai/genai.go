// Package genai wraps the OpenAI chat completions API for coaching response
// generation. The client works against any OpenAI-compatible endpoint; the
// base URL and model are configurable so GitHub Models or a local gateway can
// stand in for api.openai.com.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultTimeout bounds a single completion request.
	DefaultTimeout = 15 * time.Second
	// DefaultMaxTokens bounds the length of a generated coaching reply.
	DefaultMaxTokens = 300
)

// chatService defines the minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openaiChatService adapts the openai-go client to chatService.
type openaiChatService struct {
	client openai.Client
}

func (s *openaiChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	MaxTokens int64
}

// Option configures Opts.
type Option func(*Opts)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithMaxTokens overrides the completion token budget.
func WithMaxTokens(n int64) Option {
	return func(o *Opts) { o.MaxTokens = n }
}

// Client generates coaching responses through a chat completion service.
type Client struct {
	chat      chatService
	model     string
	timeout   time.Duration
	maxTokens int64
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not set through options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("genai.NewClient: API key not provided and OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)

	slog.Debug("genai.NewClient: client initialized", "model", cfg.Model, "baseURL", cfg.BaseURL, "timeout", cfg.Timeout, "maxTokens", cfg.MaxTokens)
	return &Client{chat: &openaiChatService{client: cli}, model: cfg.Model, timeout: cfg.Timeout, maxTokens: cfg.MaxTokens}, nil
}

// GenerateWithMessages generates a completion for a full message transcript.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	model := c.model
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	timeout := c.timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxTokens := c.maxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:       model,
		Messages:    messages,
		MaxTokens:   openai.Int(maxTokens),
		Temperature: openai.Float(0.7),
	}

	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("genai.GenerateWithMessages: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}

	slog.Debug("genai.GenerateWithMessages: completion received", "model", model, "messages", len(messages))
	return resp.Choices[0].Message.Content, nil
}
