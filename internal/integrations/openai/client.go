package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"school-relay/internal/domain"
)

// DefaultBaseURL points at OpenRouter, which serves the OpenAI-compatible
// Chat Completions API for many model vendors.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

const (
	tokenSuffix    = "/llm-token"
	defaultTimeout = 60 * time.Second
	maxErrorBody   = 4 << 10
	maxBody        = 1 << 20
)

// schoolAnswerSchema makes the model state whether the school information
// covered the question instead of hiding that in free text.
var schoolAnswerSchema = json.RawMessage(`{"type":"object","additionalProperties":false,"properties":{"answerable":{"type":"boolean"},"answer":{"type":"string"}},"required":["answerable","answer"]}`)

// ParamGetter reads a single SSM parameter.
type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError is returned for any non-2xx answer from the LLM provider.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client talks to an OpenAI-compatible provider on behalf of the answer
// backend. It only knows the school answer schema.
type Client struct {
	baseURL    string
	appTitle   string
	httpClient *http.Client
	token      *tokenSource
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithAppTitle sets the X-Title attribution header understood by OpenRouter.
func WithAppTitle(title string) Option {
	return func(c *Client) {
		c.appTitle = strings.TrimSpace(title)
	}
}

// NewClient reads its API token from {paramPrefix}/llm-token on first use.
// Requests carry no deadline of their own beyond the HTTP client timeout.
func NewClient(params ParamGetter, paramPrefix string, opts ...Option) (*Client, error) {
	if params == nil {
		return nil, errors.New("openai: param getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("openai: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		token:      &tokenSource{params: params, name: paramPrefix + tokenSuffix},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatRequest struct {
	Model          string               `json:"model"`
	Messages       []domain.ChatMessage `json:"messages"`
	ResponseFormat responseFormat       `json:"response_format"`
}

type responseFormat struct {
	Type       string     `json:"type"`
	JSONSchema jsonSchema `json:"json_schema"`
}

type jsonSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

type chatResponse struct {
	Choices []struct {
		Message domain.ChatMessage `json:"message"`
	} `json:"choices"`
}

// Chat sends the conversation and returns the raw content of the first
// choice, which the answer backend decodes as a school answer.
func (c *Client) Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error) {
	if model == "" {
		return "", errors.New("openai: model must not be empty")
	}
	in := chatRequest{
		Model:    model,
		Messages: messages,
		ResponseFormat: responseFormat{
			Type:       "json_schema",
			JSONSchema: jsonSchema{Name: "school_answer", Strict: true, Schema: schoolAnswerSchema},
		},
	}
	var out chatResponse
	if err := c.post(ctx, "chat/completions", in, &out); err != nil {
		return "", fmt.Errorf("openai: chat: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("openai: chat: no choices in response")
	}
	return out.Choices[0].Message.Content, nil
}

type moderationResponse struct {
	Results []struct {
		Flagged bool `json:"flagged"`
	} `json:"results"`
}

// Moderate reports whether the provider flags the input.
func (c *Client) Moderate(ctx context.Context, input string) (bool, error) {
	var out moderationResponse
	if err := c.post(ctx, "moderations", map[string]string{"input": input}, &out); err != nil {
		return false, fmt.Errorf("openai: moderate: %w", err)
	}
	if len(out.Results) == 0 {
		return false, errors.New("openai: moderate: no results in response")
	}
	return out.Results[0].Flagged, nil
}

// endpoint joins path onto the base URL, adding the /v1 segment when the
// base does not already end with it.
func (c *Client) endpoint(path string) string {
	base := strings.TrimRight(c.baseURL, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base + "/" + path
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	key, err := c.token.get(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	url := c.endpoint(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)
	if c.appTitle != "" {
		req.Header.Set("X-Title", c.appTitle)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, maxBody)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// tokenSource loads the API token from SSM, stored as {"token": "..."}.
// Only a successful load is kept; a failure is retried on the next call.
type tokenSource struct {
	params ParamGetter
	name   string

	mu    sync.Mutex
	value string
}

func (s *tokenSource) get(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value != "" {
		return s.value, nil
	}
	raw, err := s.params.GetParameter(ctx, s.name)
	if err != nil {
		return "", fmt.Errorf("openai: read %s: %w", s.name, err)
	}
	var stored struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return "", fmt.Errorf("openai: %s is not a JSON token object: %w", s.name, err)
	}
	if stored.Token = strings.TrimSpace(stored.Token); stored.Token == "" {
		return "", fmt.Errorf("openai: %s holds an empty token", s.name)
	}
	s.value = stored.Token
	return s.value, nil
}
