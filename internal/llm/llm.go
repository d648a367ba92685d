// Package llm is the text-generation collaborator: a minimal client for
// an OpenAI-compatible chat completions endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultModel    = "gpt-4o-mini"
)

// Client generates text from a bounded prompt.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type OpenAI struct {
	hc       *http.Client
	endpoint string
	model    string
	apiKey   string
}

type Option func(*OpenAI)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *OpenAI) { c.hc = hc }
}

func WithEndpoint(url string) Option {
	return func(c *OpenAI) { c.endpoint = url }
}

func WithModel(model string) Option {
	return func(c *OpenAI) { c.model = model }
}

func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	c := &OpenAI{
		hc:       &http.Client{Timeout: 60 * time.Second},
		endpoint: defaultEndpoint,
		model:    defaultModel,
		apiKey:   apiKey,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("llm read body: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", fmt.Errorf("llm status %d: %s", res.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("llm decode: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("llm error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
