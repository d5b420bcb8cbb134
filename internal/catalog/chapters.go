package catalog

import (
	"fmt"
	"strconv"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/ports"
)

// Chapter is one source excerpt that batches of Q/A pairs are drawn from.
type Chapter struct {
	Name string
	Text string
}

// ChapterCatalog enumerates (chapter, batch index) units.
type ChapterCatalog struct {
	chapters  []Chapter
	batchSize int
}

var _ ports.UnitSource = (*ChapterCatalog)(nil)

// NewChapters validates the chapter list and batch size.
func NewChapters(chapters []Chapter, batchSize int) (*ChapterCatalog, error) {
	if len(chapters) == 0 {
		return nil, domain.ErrEmptyCatalog
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	return &ChapterCatalog{
		chapters:  append([]Chapter(nil), chapters...),
		batchSize: batchSize,
	}, nil
}

// Enumerate splits target pairs evenly over chapters, then into batches.
// Both divisions drop their remainder.
func (c *ChapterCatalog) Enumerate(target int) ([]domain.GenerationUnit, error) {
	if len(c.chapters) == 0 {
		return nil, domain.ErrEmptyCatalog
	}
	if target < 0 {
		return nil, fmt.Errorf("negative target count %d", target)
	}

	batches := (target / len(c.chapters)) / c.batchSize
	units := make([]domain.GenerationUnit, 0, batches*len(c.chapters))
	for _, ch := range c.chapters {
		for b := 0; b < batches; b++ {
			units = append(units, domain.GenerationUnit{
				Kind:      domain.KindBatch,
				Category:  ch.Name,
				Topic:     strconv.Itoa(b),
				Seq:       b,
				Source:    ch.Name,
				Context:   ch.Text,
				BatchSize: c.batchSize,
			})
		}
	}
	return units, nil
}

// Deterministic is always true: batch indices are stable across runs.
func (c *ChapterCatalog) Deterministic() bool { return true }
