package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	StyleResponses       = "responses"
	StyleChatCompletions = "chat_completions"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ClientConfig struct {
	BaseURL  string
	APIKey   string
	Model    string
	APIStyle string
	Timeout  time.Duration
}

// Request is one stateless generation call: fixed behavioral instructions,
// a prompt body, and the model to use.
type Request struct {
	Model        string
	Instructions string
	Input        string
}

// OpenAICompatibleClient talks to the OpenAI Responses API or to any
// chat-completions compatible endpoint.
type OpenAICompatibleClient struct {
	httpClient *http.Client
	cfg        ClientConfig
}

func NewOpenAICompatibleClient(cfg ClientConfig) *OpenAICompatibleClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.APIStyle == "" {
		cfg.APIStyle = StyleResponses
	}
	return &OpenAICompatibleClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
	}
}

func (c *OpenAICompatibleClient) Model() string {
	return c.cfg.Model
}

// Generate returns the raw text output. Empty output is not an error here;
// callers own their fallbacks.
func (c *OpenAICompatibleClient) Generate(ctx context.Context, req Request) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("llm api key is empty")
	}
	if req.Model == "" {
		req.Model = c.cfg.Model
	}

	switch c.cfg.APIStyle {
	case StyleResponses:
		return c.respond(ctx, req)
	case StyleChatCompletions:
		return c.complete(ctx, req)
	default:
		return "", fmt.Errorf("unsupported llm api style %q", c.cfg.APIStyle)
	}
}

func (c *OpenAICompatibleClient) respond(ctx context.Context, req Request) (string, error) {
	reqBody := map[string]interface{}{
		"model":        req.Model,
		"instructions": req.Instructions,
		"input":        req.Input,
	}

	raw, err := c.post(ctx, "/responses", reqBody)
	if err != nil {
		return "", err
	}

	var parsed struct {
		OutputText string `json:"output_text"`
		Output     []struct {
			Type    string `json:"type"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse llm json failed: %w", err)
	}
	if parsed.OutputText != "" {
		return parsed.OutputText, nil
	}

	var text strings.Builder
	for _, item := range parsed.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				text.WriteString(part.Text)
			}
		}
	}
	return text.String(), nil
}

func (c *OpenAICompatibleClient) complete(ctx context.Context, req Request) (string, error) {
	messages := make([]ChatMessage, 0, 2)
	if req.Instructions != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.Instructions})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: req.Input})

	reqBody := map[string]interface{}{
		"model":    req.Model,
		"messages": messages,
		"stream":   false,
	}

	raw, err := c.post(ctx, "/chat/completions", reqBody)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse llm json failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty llm choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *OpenAICompatibleClient) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal llm request failed: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build llm request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read llm response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("llm response status %d: %s", resp.StatusCode, truncate(string(raw), 400))
	}
	return raw, nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
