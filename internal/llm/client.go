// Package llm implements a minimal client for OpenAI-compatible
// chat-completion endpoints (OpenAI, DeepSeek, and friends).
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

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// APIError reports a non-2xx response from the upstream endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned %d: %s", e.StatusCode, e.Body)
}

// Client talks to one OpenAI-compatible chat-completions endpoint.
type Client struct {
	BaseURL string
	Model   string
	APIKey  string
	client  *http.Client
}

// NewClient creates a client for the given endpoint. The base URL is the
// API root, e.g. https://api.openai.com/v1.
func NewClient(baseURL, model, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		Model:   model,
		APIKey:  apiKey,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured checks if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.APIKey != ""
}

// ChatJSON sends the messages with temperature 0 and a strict JSON response
// format, and returns the first choice's message content. The content is
// expected to be a JSON object but is returned raw; parsing is the caller's
// concern.
func (c *Client) ChatJSON(ctx context.Context, messages []Message) (string, error) {
	body := map[string]any{
		"model":           c.Model,
		"temperature":     0,
		"response_format": map[string]string{"type": "json_object"},
		"messages":        messages,
	}
	return c.complete(ctx, body)
}

// Chat sends the messages without a response-format constraint and returns
// the first choice's message content as plain text.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	body := map[string]any{
		"model":       c.Model,
		"temperature": 0,
		"messages":    messages,
	}
	return c.complete(ctx, body)
}

func (c *Client) complete(ctx context.Context, body map[string]any) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return result.Choices[0].Message.Content, nil
}
