package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mohammad-safakhou/deepresearch/models"
)

const defaultBaseURL = "https://api.openai.com/v1"

// client implements the provider interface using OpenAI's chat completions API
type client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// request represents a request to the OpenAI API
type request struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat json.RawMessage `json:"response_format,omitempty"`
}

// response represents a response from the OpenAI API
type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIClient creates a new OpenAI client. baseURL may be empty to use
// the public API endpoint.
func NewOpenAIClient(apiKey, baseURL string, timeout time.Duration) *client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Generate implements the provider interface
func (c *client) Generate(ctx context.Context, system, user string, p models.ModelParams) (string, models.Usage, error) {
	messages := buildMessages(system, user)
	return c.sendRequest(ctx, request{
		Model:       p.Model,
		Messages:    messages,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
}

// GenerateSchema constrains the completion to schema via structured outputs
// and returns the raw JSON object.
func (c *client) GenerateSchema(ctx context.Context, system, user string, schema json.RawMessage, p models.ModelParams) (json.RawMessage, models.Usage, error) {
	format, err := json.Marshal(map[string]interface{}{
		"type": "json_schema",
		"json_schema": map[string]interface{}{
			"name":   "response",
			"strict": true,
			"schema": json.RawMessage(schema),
		},
	})
	if err != nil {
		return nil, models.Usage{}, fmt.Errorf("failed to marshal response format: %w", err)
	}

	content, usage, err := c.sendRequest(ctx, request{
		Model:          p.Model,
		Messages:       buildMessages(system, user),
		Temperature:    p.Temperature,
		MaxTokens:      p.MaxTokens,
		ResponseFormat: format,
	})
	if err != nil {
		return nil, usage, err
	}
	return json.RawMessage(content), usage, nil
}

func buildMessages(system, user string) []Message {
	var messages []Message
	if system != "" {
		messages = append(messages, Message{Role: "system", Content: system})
	}
	messages = append(messages, Message{Role: "user", Content: user})
	return messages
}

// sendRequest sends a request to the OpenAI API
func (c *client) sendRequest(ctx context.Context, requestBody request) (string, models.Usage, error) {
	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", models.Usage{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", models.Usage{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", models.Usage{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", models.Usage{}, fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return "", models.Usage{}, fmt.Errorf("failed to read response body: %w", err)
	}

	var openaiResp response
	if err := json.Unmarshal(buf.Bytes(), &openaiResp); err != nil {
		return "", models.Usage{}, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(openaiResp.Choices) == 0 {
		return "", models.Usage{}, fmt.Errorf("no choices in response")
	}

	usage := models.Usage{
		PromptTokens:     openaiResp.Usage.PromptTokens,
		CompletionTokens: openaiResp.Usage.CompletionTokens,
		TotalTokens:      openaiResp.Usage.TotalTokens,
	}
	return openaiResp.Choices[0].Message.Content, usage, nil
}
