package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultOpenAIBaseURL is used when no base URL is configured.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI calls an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	BaseURL    string
	Model      string
	APIKey     string
	HTTPClient *http.Client
}

// NewOpenAI returns an OpenAI completer.
func NewOpenAI(baseURL, model, apiKey string) *OpenAI {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &OpenAI{BaseURL: baseURL, Model: model, APIKey: apiKey, HTTPClient: http.DefaultClient}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	TopP           float64       `json:"top_p,omitempty"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type respFormat struct {
	Type string `json:"type"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Complete implements Completer.
func (o *OpenAI) Complete(ctx context.Context, req Request) (Reply, error) {
	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:          o.Model,
		Messages:       messages,
		Temperature:    req.Temperature,
		TopP:           req.TopP,
		MaxTokens:      req.MaxTokens,
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return Reply{}, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(o.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.APIKey)

	client := o.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return Reply{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Reply{}, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return parseChatResponse(respBody)
}

func parseChatResponse(body []byte) (Reply, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Reply{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return Reply{}, fmt.Errorf("API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, errors.New("empty choices in response")
	}
	return PlainText(resp.Choices[0].Message.Content), nil
}
