// Package llm talks to the Groq chat-completions API and wraps it into the
// small single-purpose agents the request pipeline is built from: intent
// classification, parameter extraction, SQL generation, response composition
// and validation.
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

const groqEndpoint = "https://api.groq.com/openai/v1/chat/completions"

// CompleteOptions are the per-call sampling knobs. The zero value is never
// sent; each agent picks its own temperature and token cap.
type CompleteOptions struct {
	Temperature float64
	MaxTokens   int
}

// Completer is the slice of the client the agents need. Tests substitute a
// canned implementation.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts CompleteOptions) (string, error)
}

type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewClient(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("NewClient: api key is blank")
	}
	if model == "" {
		return nil, fmt.Errorf("NewClient: model is blank")
	}
	return &Client{
		endpoint:   groqEndpoint,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// SetEndpoint points the client at a different chat-completions URL, used by
// tests to target an httptest server.
func (c *Client) SetEndpoint(endpoint string) {
	c.endpoint = endpoint
}

func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, opts CompleteOptions) (string, error) {
	reqBody := struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Stream      bool    `json:"stream"`
	}{
		Messages: []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Model:       c.model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      false,
	}
	reqBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("(*Client).Complete: failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		return "", fmt.Errorf("(*Client).Complete: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("(*Client).Complete: failed to do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("(*Client).Complete: bad status code: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("(*Client).Complete: failed to read body: %w", err)
	}

	var respBody struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &respBody); err != nil {
		return "", fmt.Errorf("(*Client).Complete: failed to unmarshal response: %w", err)
	}
	if len(respBody.Choices) == 0 {
		return "", fmt.Errorf("(*Client).Complete: no choices")
	}
	if len(respBody.Choices[0].Message.Content) == 0 {
		return "", fmt.Errorf("(*Client).Complete: no content")
	}
	return respBody.Choices[0].Message.Content, nil
}
