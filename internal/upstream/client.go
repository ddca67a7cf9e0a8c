// Package upstream wraps the OpenAI chat-completions API behind the single
// call the response assembler needs. The system prompt is fixed and not
// overridable by user input; max_tokens is only a soft control on output
// size, the truncation engine in internal/chat is the authority on the
// character budget.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// systemPrompt is the production persona prompt for the support assistant.
// It instructs the model to keep replies under 300 characters; tokens and
// characters do not line up (especially for Korean), so the reply is still
// truncated deterministically after the call.
const systemPrompt = `당신은 웅진씽크빅 고객센터의 친절한 AI 도우미 '씽키(Thinky)'입니다.

역할:
1. 웅진씽크빅 교육서비스(스마트올, 와이즈캠프, 북클럽 등) 일반 질문 답변
2. 구체적 업무(학습현황/결제정보/배송조회/정보변경)는 해당 메뉴 이용 안내
3. 친절하고 도움이 되는 톤으로 응답
4. 필요시 상담원 연결이나 관련 메뉴 안내

**중요: 답변은 반드시 300자 이내로 완전한 문장으로 작성하세요.**`

const (
	defaultModel       = "gpt-3.5-turbo"
	defaultMaxTokens   = 250
	defaultTemperature = 0.7
)

// ErrNotConfigured means no API key is configured. This is an operator
// fault, detected before any network call and never retried.
var ErrNotConfigured = errors.New("openai api key not configured")

// Error is a classified upstream failure: a non-2xx response or a transport
// error from the completion API. StatusCode is zero for transport failures.
// The Message is server-side diagnostic detail only; callers present a
// generic message to the client.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream completion failed (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream completion failed: %s", e.Message)
}

// Option configures the client.
type Option func(*Client)

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the client at a custom API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithMaxTokens overrides the soft generation cap.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// Client calls the OpenAI chat-completions endpoint.
type Client struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	model       string
	maxTokens   int
	temperature float32

	api *openai.Client
}

// New creates a client. An empty apiKey is accepted so the process can still
// start and serve degraded admin endpoints; Complete then fails with
// ErrNotConfigured.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		model:       defaultModel,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(c)
	}

	cfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	if c.httpClient != nil {
		cfg.HTTPClient = c.httpClient
	}
	c.api = openai.NewClientWithConfig(cfg)

	return c
}

// Model returns the configured completion model.
func (c *Client) Model() string { return c.model }

// Complete sends one user message with the fixed system prompt and returns
// the first choice's content, whitespace-trimmed. Failures are classified;
// the raw upstream error never propagates.
func (c *Client) Complete(ctx context.Context, message string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", &Error{Message: "completion returned no choices"}
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &Error{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &Error{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}

	return &Error{Message: err.Error()}
}
