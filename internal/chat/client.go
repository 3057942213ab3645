// Package chat provides the conversational interface over imported
// simulation data. A Session holds the message history and relays the
// model's tool calls to the query service; the Client speaks the OpenAI
// chat completions API with function calling.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"simdb/internal/config"
	"simdb/internal/logging"
)

// Message is one chat completions message. Role is "system", "user",
// "assistant" or "tool"; tool messages carry the output of one tool call.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool is one function definition advertised to the model.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction describes a callable function and its parameter schema.
type ToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Client is an OpenAI chat completions client.
type Client struct {
	logger     *logging.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

// NewClient builds a Client from the OpenAI configuration. The API key is
// read from OPENAI_API_KEY only; it is never stored in the config file.
func NewClient(cfg config.OpenAIConfig, logger *logging.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY environment variable")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		logger:     logger,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: cfg.MaxRetries,
	}, nil
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Tools    []Tool    `json:"tools,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

// CreateChatCompletion sends one completion request and returns the
// assistant message, which may carry tool calls instead of content.
func (c *Client) CreateChatCompletion(ctx context.Context, messages []Message, tools []Tool) (*Message, error) {
	req := chatRequest{Model: c.model, Messages: messages, Tools: tools}

	var resp chatResponse
	if err := c.do(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}
	return &resp.Choices[0].Message, nil
}

// apiError is a non-2xx response from the API.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, body)
}

// retryable reports whether the request may succeed on a later attempt.
// Rate limits and server errors retry; client errors do not.
func retryable(err error) bool {
	if e, ok := err.(*apiError); ok {
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	}
	// Network-level failures (timeouts, resets) are worth a retry.
	return true
}

func (c *Client) do(ctx context.Context, path string, body, out interface{}) error {
	backoff := 1 * time.Second

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, path, body)
		if err == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w", uErr)
			}
			return nil
		}
		if !retryable(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := retryAfter(resp, backoff)
		c.logger.Warn("OpenAI request retrying", map[string]interface{}{
			"path":        path,
			"attempt":     attempt + 1,
			"max_retries": c.maxRetries,
			"sleep":       sleepFor.String(),
			"error":       err.Error(),
		})

		select {
		case <-time.After(sleepFor):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
}

func (c *Client) doOnce(ctx context.Context, path string, body interface{}) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &apiError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// retryAfter honors a Retry-After header when present, otherwise uses the
// exponential backoff capped at ten seconds.
func retryAfter(resp *http.Response, backoff time.Duration) time.Duration {
	const max = 10 * time.Second

	if resp != nil {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs >= 0 {
				d := time.Duration(secs) * time.Second
				if d > max {
					return max
				}
				return d
			}
		}
	}
	if backoff > max {
		return max
	}
	return backoff
}
