package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/Iron-Ham/ideaforge/internal/errors"
	"github.com/Iron-Ham/ideaforge/internal/util"
)

const (
	// DefaultBaseURL is the OpenRouter API root.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultModel is used when neither the client nor the request names one.
	DefaultModel = "openai/gpt-4o-mini"

	// APIKeyEnv is consulted when no API key is configured.
	APIKeyEnv = "OPENROUTER_API_KEY"

	maxErrorBody    = 512
	maxStreamLineKB = 1024
)

// Client implements Model against an OpenAI-compatible chat completions API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	provider   string
	title      string
	referer    string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the API root, e.g. "https://api.openai.com/v1".
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithModel sets the default model.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithProvider sets the provider label used in errors.
func WithProvider(provider string) ClientOption {
	return func(c *Client) {
		c.provider = provider
	}
}

// WithHTTPClient replaces the HTTP client. Timeouts are driven by the
// request context, so the client should not set its own Timeout when it
// will be used for streaming.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithAppInfo sets the attribution headers OpenRouter displays.
func WithAppInfo(title, referer string) ClientOption {
	return func(c *Client) {
		c.title = title
		c.referer = referer
	}
}

// NewClient creates a Client. An empty apiKey falls back to the
// OPENROUTER_API_KEY environment variable; an error is returned if neither
// is set.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv(APIKeyEnv)
	}
	if apiKey == "" {
		return nil, errors.NewValidationError("no API key configured").
			WithField("upstream.api_key")
	}

	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		provider:   "openrouter",
		title:      "ideaforge",
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	Stream         bool            `json:"stream,omitempty"`
	StreamOptions  *streamOptions  `json:"stream_options,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type apiError struct {
	Code    any    `json:"code"`
	Message string `json:"message"`
}

type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u *apiUsage) toUsage() Usage {
	if u == nil {
		return Usage{}
	}
	return Usage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens, TotalTokens: u.TotalTokens}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *apiUsage `json:"usage,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

// Complete sends a non-streaming chat completion.
func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.send(ctx, req, false)
	if err != nil {
		return Response{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, c.upstreamErr("read response", errors.Join(errors.ErrUpstreamUnavailable, err))
	}

	var data chatResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return Response{}, c.upstreamErr("unmarshal response", errors.Join(errors.ErrMalformedOutput, err))
	}
	if data.Error != nil {
		return Response{}, c.apiErr(data.Error)
	}
	if len(data.Choices) == 0 {
		return Response{}, c.upstreamErr("empty response from API", errors.ErrMalformedOutput)
	}

	return Response{Text: data.Choices[0].Message.Content, Usage: data.Usage.toUsage()}, nil
}

// Stream sends a streaming chat completion and calls onDelta for every
// content fragment. The returned Response carries the concatenated text.
func (c *Client) Stream(ctx context.Context, req Request, onDelta DeltaFunc) (Response, error) {
	resp, err := c.send(ctx, req, true)
	if err != nil {
		return Response{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var (
		text  strings.Builder
		usage Usage
	)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLineKB*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// blank separators and ": keep-alive" comments
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "[DONE]" {
			break
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return Response{Text: text.String(), Usage: usage},
				c.upstreamErr("unmarshal stream chunk", errors.Join(errors.ErrMalformedOutput, err))
		}
		if chunk.Error != nil {
			return Response{Text: text.String(), Usage: usage}, c.apiErr(chunk.Error)
		}
		if chunk.Usage != nil {
			usage = chunk.Usage.toUsage()
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		text.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return Response{Text: text.String(), Usage: usage}, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Response{Text: text.String(), Usage: usage},
			c.upstreamErr("read stream", errors.Join(errors.ErrUpstreamUnavailable, err))
	}
	return Response{Text: text.String(), Usage: usage}, nil
}

// send issues the HTTP request and returns the response when the status is
// 200. Any other status is converted to an UpstreamError and the body closed.
func (c *Client) send(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	body := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	if stream {
		body.Stream = true
		body.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	reqBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if c.title != "" {
		httpReq.Header.Set("X-Title", c.title)
	}
	if c.referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.referer)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.upstreamErr("send request", errors.Join(errors.ErrUpstreamUnavailable, err))
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	defer func() { _ = resp.Body.Close() }()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := fmt.Sprintf("API error: %s", util.TruncateString(strings.TrimSpace(string(snippet)), maxErrorBody))
	return nil, c.upstreamErr(msg, statusCause(resp.StatusCode)).WithStatus(resp.StatusCode)
}

func statusCause(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return errors.ErrRateLimited
	case code >= 500:
		return errors.ErrUpstreamUnavailable
	default:
		return fmt.Errorf("unexpected status %d", code)
	}
}

// apiErr converts an in-band error object. OpenRouter reports upstream rate
// limits with code 429 inside a 200 response.
func (c *Client) apiErr(e *apiError) error {
	code := 0
	switch v := e.Code.(type) {
	case float64:
		code = int(v)
	case string:
		_, _ = fmt.Sscanf(v, "%d", &code)
	}
	cause := statusCause(code)
	if code == 0 {
		cause = errors.ErrUpstreamUnavailable
	}
	ue := c.upstreamErr("API error: "+e.Message, cause)
	if code != 0 {
		ue = ue.WithStatus(code)
	}
	return ue
}

func (c *Client) upstreamErr(msg string, cause error) *errors.UpstreamError {
	return errors.NewUpstreamError(msg, cause).WithProvider(c.provider)
}
