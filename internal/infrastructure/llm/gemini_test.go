package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/config"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
)

func TestClassifyGenAI(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err       error
		permanent bool
	}{
		{genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, false},
		{genai.APIError{Code: 503, Status: "UNAVAILABLE"}, false},
		{genai.APIError{Code: 403, Status: "PERMISSION_DENIED"}, true},
		{fmt.Errorf("wrapped: %w", genai.APIError{Code: 400, Status: "INVALID_ARGUMENT"}), true},
		{errors.New("connection reset by peer"), false},
	}

	for _, tc := range cases {
		got := classifyGenAI(tc.err)
		if domain.IsPermanent(got) != tc.permanent {
			t.Fatalf("%v: permanent=%v, want %v", tc.err, domain.IsPermanent(got), tc.permanent)
		}
	}

	if err := classifyGenAI(context.Canceled); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancellation must pass through, got %v", err)
	}
}

func TestGeminiClientGenerate(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-test:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"instruction\":\"Q\",\"output\":\"A\"}"}]}}]}`))
	}))
	defer server.Close()

	ctx := context.Background()
	client, err := NewGeminiClient(ctx, config.GeminiConfig{APIKey: "k", Model: "gemini-test", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewGeminiClient: %v", err)
	}

	text, err := client.Generate(ctx, "prompt", domain.GenerateOptions{MaxOutputTokens: 100})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != `{"instruction":"Q","output":"A"}` {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewGeminiClient(context.Background(), config.GeminiConfig{}); err == nil {
		t.Fatalf("expected error without API key")
	}
}
