package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
)

func TestBuildMemoryPrompt(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(Options{})
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}

	unit := domain.GenerationUnit{
		Kind:        domain.KindMemory,
		Category:    "childhood",
		Topic:       "learning to ride a bike",
		Description: "Early life memories, family, school, friends",
	}
	got := b.Build(unit, "PERSONA: Jimmy")

	for _, want := range []string{
		"PERSONA: Jimmy",
		"about: learning to ride a bike (category: childhood)",
		"Early life memories",
		`"category": "childhood"`,
		"Return ONLY this JSON object",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt is missing %q:\n%s", want, got)
		}
	}

	if again := b.Build(unit, "PERSONA: Jimmy"); again != got {
		t.Fatalf("Build is not deterministic")
	}
}

func TestBuildBatchPromptTruncatesExcerpt(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(Options{MaxContextChars: 10})
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}

	unit := domain.GenerationUnit{
		Kind:      domain.KindBatch,
		Category:  "Chapter_01_ONE",
		Source:    "Chapter_01_ONE",
		Context:   "0123456789ABCDEF",
		BatchSize: 25,
	}
	got := b.Build(unit, "persona that must not appear")

	if !strings.Contains(got, "0123456789\n") || strings.Contains(got, "ABCDEF") {
		t.Fatalf("excerpt was not truncated:\n%s", got)
	}
	if strings.Contains(got, "persona that must not appear") {
		t.Fatalf("unit context must win over shared context")
	}
	if !strings.Contains(got, "Generate 25 diverse") || !strings.Contains(got, "JSON array") {
		t.Fatalf("batch instructions missing:\n%s", got)
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	t.Parallel()

	got := truncate("ääääää", 3)
	if got != "äää" || !utf8.ValidString(got) {
		t.Fatalf("unexpected truncation %q", got)
	}
}

func TestCustomTemplate(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(Options{MemoryTemplate: "{{category}}:{{topic}} -> JSON only"})
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	got := b.Build(domain.GenerationUnit{Category: "career", Topic: "first job"}, "")
	if got != "career:first job -> JSON only" {
		t.Fatalf("unexpected prompt %q", got)
	}
}
