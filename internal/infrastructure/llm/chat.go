package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/config"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/ports"
)

// ChatClient implements ports.Generator backed by OpenAI-compatible APIs.
type ChatClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.Generator = (*ChatClient)(nil)

// NewChatClient builds a client from configuration.
func NewChatClient(cfg config.ChatConfig, timeout time.Duration) *ChatClient {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ChatClient{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate posts the prompt as a user message and returns the reply text.
func (c *ChatClient) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	if c == nil {
		return "", domain.PermanentError(fmt.Errorf("chat client is nil"))
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", domain.PermanentError(fmt.Errorf("chat client misconfigured"))
	}

	messages := make([]chatMessage, 0, 2)
	if sys := strings.TrimSpace(c.systemPrompt); sys != "" {
		messages = append(messages, chatMessage{Role: "system", Content: sys})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxOutputTokens,
	})
	if err != nil {
		return "", domain.PermanentError(fmt.Errorf("marshal chat payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", domain.PermanentError(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", domain.TransientError(fmt.Errorf("send prompt: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", classifyStatus(resp.StatusCode,
			fmt.Errorf("chat error %s: %s", resp.Status, strings.TrimSpace(string(payload))))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", domain.TransientError(fmt.Errorf("decode chat response: %w", err))
	}
	if len(decoded.Choices) == 0 {
		return "", domain.TransientError(fmt.Errorf("chat response has no choices"))
	}

	return decoded.Choices[0].Message.Content, nil
}

// classifyStatus maps HTTP status codes onto retryable and fatal failures.
func classifyStatus(code int, err error) error {
	switch {
	case code == http.StatusTooManyRequests,
		code == http.StatusRequestTimeout,
		code >= http.StatusInternalServerError:
		return domain.TransientError(err)
	default:
		return domain.PermanentError(err)
	}
}
