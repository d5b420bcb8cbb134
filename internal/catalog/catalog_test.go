package catalog

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
)

func TestEnumerateCyclicOrder(t *testing.T) {
	t.Parallel()

	cat, err := New([]Category{
		{Name: "childhood", Topics: []string{"bike", "school"}},
		{Name: "career", Topics: []string{"first job", "promotion"}},
	}, Cyclic{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	units, err := cat.Enumerate(4)
	if err != nil {
		t.Fatalf("Enumerate returned error: %v", err)
	}

	var got []string
	for _, u := range units {
		got = append(got, u.ID())
	}
	want := []string{
		"childhood/bike#0",
		"childhood/school#1",
		"career/first job#0",
		"career/promotion#1",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected units (-want +got):\n%s", diff)
	}
	if !cat.Deterministic() {
		t.Fatalf("cyclic catalog must be deterministic")
	}
}

func TestEnumerateDropsRemainder(t *testing.T) {
	t.Parallel()

	cat, err := New([]Category{
		{Name: "a", Topics: []string{"x"}},
		{Name: "b", Topics: []string{"y"}},
		{Name: "c", Topics: []string{"z"}},
	}, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	units, err := cat.Enumerate(8)
	if err != nil {
		t.Fatalf("Enumerate returned error: %v", err)
	}
	if len(units) != 6 {
		t.Fatalf("expected 6 units, got %d", len(units))
	}
}

func TestNewRejectsEmptyCatalog(t *testing.T) {
	t.Parallel()

	_, err := New([]Category{{Name: "empty"}}, Cyclic{})
	if !errors.Is(err, domain.ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}

	_, err = NewChapters(nil, 10)
	if !errors.Is(err, domain.ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog for chapters, got %v", err)
	}
}

func TestSeededRandomIsRepeatable(t *testing.T) {
	t.Parallel()

	categories := []Category{{Name: "hobbies", Topics: []string{"a", "b", "c", "d"}}}
	first, _ := New(categories, NewRandom(42))
	second, _ := New(categories, NewRandom(42))

	u1, _ := first.Enumerate(10)
	u2, _ := second.Enumerate(10)
	if diff := cmp.Diff(u1, u2); diff != "" {
		t.Fatalf("seeded enumeration differs:\n%s", diff)
	}
	if !first.Deterministic() {
		t.Fatalf("seeded random must report deterministic")
	}
	if NewRandom(0).Deterministic() {
		t.Fatalf("unseeded random must not report deterministic")
	}
}

func TestChapterEnumerate(t *testing.T) {
	t.Parallel()

	cat, err := NewChapters([]Chapter{
		{Name: "Chapter_01_ONE", Text: "first"},
		{Name: "Chapter_02_TWO", Text: "second"},
	}, 50)
	if err != nil {
		t.Fatalf("NewChapters returned error: %v", err)
	}

	units, err := cat.Enumerate(2 * 120)
	if err != nil {
		t.Fatalf("Enumerate returned error: %v", err)
	}
	if len(units) != 4 {
		t.Fatalf("expected 2 batches per chapter, got %d units", len(units))
	}
	u := units[3]
	if u.ID() != "Chapter_02_TWO#1" || u.Context != "second" || u.BatchSize != 50 || u.Kind != domain.KindBatch {
		t.Fatalf("unexpected unit: %+v", u)
	}
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(7)
	if _, err := reg.Resolve("cyclic"); err != nil {
		t.Fatalf("resolve cyclic: %v", err)
	}
	if _, err := reg.Resolve("random"); err != nil {
		t.Fatalf("resolve random: %v", err)
	}
	if _, err := reg.Resolve("weighted"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
