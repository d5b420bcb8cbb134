package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
)

var unitExpr = regexp.MustCompile(`about: (.+?) \(category: (.+?)\)`)

// unitKey extracts "category/topic" from a rendered memory prompt.
func unitKey(prompt string) string {
	m := unitExpr.FindStringSubmatch(prompt)
	if m == nil {
		return ""
	}
	return m[2] + "/" + m[1]
}

type fakeGenerator struct {
	mu      sync.Mutex
	calls   []string
	respond func(ctx context.Context, key string, attempt int) (string, error)
	perKey  map[string]int
}

func newFakeGenerator(respond func(ctx context.Context, key string, attempt int) (string, error)) *fakeGenerator {
	return &fakeGenerator{respond: respond, perKey: map[string]int{}}
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, _ domain.GenerateOptions) (string, error) {
	key := unitKey(prompt)
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.perKey[key]++
	attempt := f.perKey[key]
	f.mu.Unlock()
	return f.respond(ctx, key, attempt)
}

func (f *fakeGenerator) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeGenerator) CallsFor(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perKey[key]
}

func okResponse(key string) string {
	return fmt.Sprintf("```json\n{\"instruction\": \"Tell me about %s\", \"input\": \"\", \"output\": \"Memory of %s\"}\n```", key, key)
}

type memoryStore struct {
	mu      sync.Mutex
	records []domain.MemoryRecord
	appends int
	failing bool
	// readOnly fails the up-front write check only.
	readOnly bool
}

func (m *memoryStore) Load(context.Context) ([]domain.MemoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.MemoryRecord(nil), m.records...), nil
}

func (m *memoryStore) Append(_ context.Context, recs []domain.MemoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("disk full")
	}
	m.appends++
	m.records = append(m.records, recs...)
	return nil
}

func (m *memoryStore) Writable(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readOnly {
		return errors.New("read-only file system")
	}
	return nil
}

func (m *memoryStore) Records() []domain.MemoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.MemoryRecord(nil), m.records...)
}

type memoryWriter struct {
	mu         sync.Mutex
	raw        []domain.MemoryRecord
	normalized []domain.NormalizedRecord
	writes     int
}

func (w *memoryWriter) WriteRaw(_ context.Context, recs []domain.MemoryRecord) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes++
	w.raw = recs
	return "raw.json", nil
}

func (w *memoryWriter) WriteNormalized(_ context.Context, recs []domain.NormalizedRecord) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.normalized = recs
	return "normalized.json", nil
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) PublishSummary(_ context.Context, summary string) error {
	n.messages = append(n.messages, summary)
	return nil
}
