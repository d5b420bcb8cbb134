package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/config"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
)

func TestChatClientGenerate(t *testing.T) {
	t.Parallel()

	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"[{\"instruction\":\"Q\",\"output\":\"A\"}]"}}]}`))
	}))
	defer server.Close()

	client := NewChatClient(config.ChatConfig{
		Endpoint:     server.URL,
		Model:        "gpt-4o-mini",
		APIKey:       "secret",
		SystemPrompt: "You write training data.",
	}, 5*time.Second)

	temp := float32(0.8)
	text, err := client.Generate(context.Background(), "prompt body", domain.GenerateOptions{
		Temperature:     &temp,
		MaxOutputTokens: 8000,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != `[{"instruction":"Q","output":"A"}]` {
		t.Fatalf("unexpected text %q", text)
	}

	if got.Model != "gpt-4o-mini" || got.MaxTokens != 8000 || got.Temperature == nil || *got.Temperature != 0.8 {
		t.Fatalf("unexpected request: %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[1].Content != "prompt body" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
}

func TestChatClientClassifiesFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status    int
		permanent bool
	}{
		{http.StatusTooManyRequests, false},
		{http.StatusServiceUnavailable, false},
		{http.StatusUnauthorized, true},
		{http.StatusBadRequest, true},
	}

	for _, tc := range cases {
		status := tc.status
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", status)
		}))

		client := NewChatClient(config.ChatConfig{Endpoint: server.URL, Model: "m", APIKey: "k"}, time.Second)
		_, err := client.Generate(context.Background(), "p", domain.GenerateOptions{})
		server.Close()

		var ce *domain.CallError
		if !errors.As(err, &ce) {
			t.Fatalf("status %d: expected CallError, got %v", status, err)
		}
		if domain.IsPermanent(err) != tc.permanent {
			t.Fatalf("status %d: permanent=%v, want %v", status, domain.IsPermanent(err), tc.permanent)
		}
	}
}

func TestChatClientMisconfigured(t *testing.T) {
	t.Parallel()

	client := NewChatClient(config.ChatConfig{}, time.Second)
	_, err := client.Generate(context.Background(), "p", domain.GenerateOptions{})
	if !domain.IsPermanent(err) {
		t.Fatalf("expected permanent failure, got %v", err)
	}
}
