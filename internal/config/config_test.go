package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileDefaults(t *testing.T) {
	cfg := LoadFile("")

	if cfg.Provider != "gemini" {
		t.Fatalf("expected gemini provider, got %q", cfg.Provider)
	}
	if cfg.Pipeline.MaxAttempts != 2 || cfg.Pipeline.FlushEvery != 5 {
		t.Fatalf("unexpected pipeline defaults: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.Delay != 300*time.Millisecond {
		t.Fatalf("unexpected delay %s", cfg.Pipeline.Delay)
	}
	if len(cfg.Memories.Categories) != 8 {
		t.Fatalf("expected 8 default categories, got %d", len(cfg.Memories.Categories))
	}
	for _, c := range cfg.Memories.Categories {
		if len(c.Topics) != 5 {
			t.Fatalf("category %s has %d topics", c.Name, len(c.Topics))
		}
	}
	if cfg.Pairs.MinChapterChars != 5000 || cfg.Pairs.BatchSize != 50 {
		t.Fatalf("unexpected pairs defaults: %+v", cfg.Pairs)
	}
}

func TestLoadFileMergesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
provider: chat
pipeline:
  delay: 1500ms
  maxAttempts: 4
memories:
  targetCount: 10
  selection: cyclic
  categories:
    - name: career
      description: Work
      topics: [first job]
checkpoint:
  backend: sqlite
  path: ckpt.db
output:
  dedupe: true
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := LoadFile(path)

	if cfg.Provider != "chat" {
		t.Fatalf("provider not merged: %q", cfg.Provider)
	}
	if cfg.Pipeline.Delay != 1500*time.Millisecond || cfg.Pipeline.MaxAttempts != 4 {
		t.Fatalf("pipeline not merged: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.FlushEvery != 5 {
		t.Fatalf("default flushEvery lost: %d", cfg.Pipeline.FlushEvery)
	}
	if len(cfg.Memories.Categories) != 1 || cfg.Memories.Categories[0].Name != "career" {
		t.Fatalf("categories not replaced: %+v", cfg.Memories.Categories)
	}
	if cfg.Checkpoint.Backend != "sqlite" || cfg.Checkpoint.Path != "ckpt.db" {
		t.Fatalf("checkpoint not merged: %+v", cfg.Checkpoint)
	}
	if !cfg.Output.Dedupe {
		t.Fatal("expected dedupe enabled")
	}
	if cfg.Output.RawPath == "" {
		t.Fatal("default raw path lost")
	}
}

func TestLoadFileEnvOverrides(t *testing.T) {
	t.Setenv(googleAPIKeyEnv, "g-key")
	t.Setenv(chatModelEnv, "chat-model")
	t.Setenv(logLevelEnv, "warn")
	t.Setenv(telegramChatIDEnv, "42")

	cfg := LoadFile("")

	if cfg.Gemini.APIKey != "g-key" {
		t.Fatalf("gemini key not applied: %q", cfg.Gemini.APIKey)
	}
	if cfg.Chat.Model != "chat-model" {
		t.Fatalf("chat model not applied: %q", cfg.Chat.Model)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("log level not applied: %q", cfg.Logging.Level)
	}
	if cfg.Notifications.Telegram.ChatID != "42" {
		t.Fatalf("chat id not applied: %q", cfg.Notifications.Telegram.ChatID)
	}
}

func TestLoadFileUnreadableFallsBack(t *testing.T) {
	cfg := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg.Provider != "gemini" {
		t.Fatalf("expected defaults, got provider %q", cfg.Provider)
	}
}
