package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/ports"
)

var unsafeName = regexp.MustCompile(`[^\w.-]+`)

// JSONDatasetWriter writes the final artifacts as indented JSON arrays.
type JSONDatasetWriter struct {
	rawPath        string
	normalizedPath string
	splitDir       string
}

var _ ports.DatasetWriter = (*JSONDatasetWriter)(nil)

// NewJSONDatasetWriter configures the output locations. splitDir may be
// empty; otherwise raw records are also written per source.
func NewJSONDatasetWriter(rawPath, normalizedPath, splitDir string) *JSONDatasetWriter {
	return &JSONDatasetWriter{
		rawPath:        rawPath,
		normalizedPath: normalizedPath,
		splitDir:       splitDir,
	}
}

// WriteRaw writes records with their lineage fields.
func (w *JSONDatasetWriter) WriteRaw(ctx context.Context, records []domain.MemoryRecord) (string, error) {
	if records == nil {
		records = []domain.MemoryRecord{}
	}
	if err := writeJSONAtomic(w.rawPath, records); err != nil {
		return "", fmt.Errorf("write raw dataset: %w", err)
	}

	if w.splitDir != "" {
		if err := w.writeSplit(records); err != nil {
			return "", err
		}
	}
	return w.rawPath, nil
}

// WriteNormalized writes the {instruction, input, output} projection.
func (w *JSONDatasetWriter) WriteNormalized(ctx context.Context, records []domain.NormalizedRecord) (string, error) {
	if records == nil {
		records = []domain.NormalizedRecord{}
	}
	if err := writeJSONAtomic(w.normalizedPath, records); err != nil {
		return "", fmt.Errorf("write normalized dataset: %w", err)
	}
	return w.normalizedPath, nil
}

func (w *JSONDatasetWriter) writeSplit(records []domain.MemoryRecord) error {
	bySource := map[string][]domain.NormalizedRecord{}
	for _, rec := range records {
		if rec.Source == "" {
			continue
		}
		bySource[rec.Source] = append(bySource[rec.Source], rec.Normalize())
	}

	sources := make([]string, 0, len(bySource))
	for s := range bySource {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	for _, source := range sources {
		path := filepath.Join(w.splitDir, SplitFileName(source))
		if err := writeJSONAtomic(path, bySource[source]); err != nil {
			return fmt.Errorf("write split %s: %w", source, err)
		}
	}
	return nil
}

// SplitFileName maps a source name to its per-source artifact name.
func SplitFileName(source string) string {
	return unsafeName.ReplaceAllString(source, "_") + "_pairs.json"
}
