package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/config"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/ports"
)

type echoGenerator struct{ calls int }

func (g *echoGenerator) Generate(context.Context, string, domain.GenerateOptions) (string, error) {
	g.calls++
	return `{"instruction": "What happened?", "output": "Something memorable."}`, nil
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "memorygen.yaml")
	raw := `
logging:
  level: error
pipeline:
  delay: 1ms
  backoff: 1ms
memories:
  targetCount: 2
  selection: cyclic
  categories:
    - name: childhood
      topics: [bike]
    - name: career
      topics: [first job]
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestMemoriesCommandWithFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	gen := &echoGenerator{}
	newGenerator = func(config.Config) ports.Generator { return gen }
	t.Cleanup(func() { newGenerator = nil })

	out, err := execute(t, "memories",
		"--config", writeConfig(t, dir),
		"--target", "4",
		"--checkpoint", filepath.Join(dir, "ckpt.json"),
		"--raw", filepath.Join(dir, "raw.json"),
		"--out", filepath.Join(dir, "dataset.json"),
		"--persona", filepath.Join(dir, "missing-persona.txt"),
	)
	if err != nil {
		t.Fatalf("memories command failed: %v", err)
	}
	if gen.calls != 4 {
		t.Fatalf("expected --target to drive 4 calls, got %d", gen.calls)
	}
	if !strings.Contains(out, "4 committed") {
		t.Fatalf("summary not printed:\n%s", out)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "dataset.json"))
	if err != nil {
		t.Fatalf("read dataset: %v", err)
	}
	var records []domain.NormalizedRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		t.Fatalf("decode dataset: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
}

func TestAssembleCommandRejectsCorruptCheckpoint(t *testing.T) {
	dir := t.TempDir()
	ckpt := filepath.Join(dir, "ckpt.json")
	if err := os.WriteFile(ckpt, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write checkpoint: %v", err)
	}

	_, err := execute(t, "assemble", "--config", writeConfig(t, dir), "--checkpoint", ckpt,
		"--out", filepath.Join(dir, "dataset.json"), "--raw", filepath.Join(dir, "raw.json"))
	if err == nil {
		t.Fatal("expected corrupt checkpoint error")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "dataset.json")); statErr == nil {
		t.Fatal("dataset written from a corrupt checkpoint")
	}
}

func TestClassifyExitCodes(t *testing.T) {
	t.Parallel()

	var ce cliError
	if err := classify(context.Canceled); !errors.As(err, &ce) || ce.code != exitInterrupted {
		t.Fatalf("expected interrupted exit code, got %v", err)
	}
	if err := classify(domain.ErrPersistence); !errors.As(err, &ce) || ce.code != exitPersistence {
		t.Fatalf("expected persistence exit code, got %v", err)
	}
	plain := errors.New("boom")
	if err := classify(plain); err != plain {
		t.Fatalf("unexpected wrap of plain error: %v", err)
	}
}
