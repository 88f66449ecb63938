package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Usage carries the provider's token accounting when it reports one.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Known            bool
}

// Client is a minimal OpenAI-compatible chat-completions caller. One request
// per plan generation, no streaming, no retries.
type Client struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client
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
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func NewClient(apiKey, model, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1/chat/completions"
	}
	return &Client{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 120 * time.Second},
	}
}

// Complete sends one user message and returns the assistant's text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, Usage, error) {
	if c.APIKey == "" {
		return "", Usage{}, errors.New("llm api key is required")
	}
	payload, err := json.Marshal(chatRequest{
		Model:    c.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", Usage{}, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return "", Usage{}, err
	}
	request.Header.Set("Authorization", "Bearer "+c.APIKey)
	request.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(request)
	if err != nil {
		return "", Usage{}, fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed chatResponse
	if resp.StatusCode >= 300 {
		if json.Unmarshal(bodyBytes, &parsed) == nil && parsed.Error != nil {
			return "", Usage{}, fmt.Errorf("llm api error: status %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", Usage{}, fmt.Errorf("llm api error: status %d, response: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return "", Usage{}, fmt.Errorf("invalid api response format: %s", string(bodyBytes))
	}
	if parsed.Error != nil {
		return "", Usage{}, fmt.Errorf("llm api error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", Usage{}, errors.New("llm response contained no content")
	}

	usage := Usage{}
	if parsed.Usage != nil {
		usage = Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
			Known:            true,
		}
	}
	return parsed.Choices[0].Message.Content, usage, nil
}
