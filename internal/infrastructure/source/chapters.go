// Package source loads chapter texts from disk for Q/A batch generation.
package source

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/catalog"
)

const (
	chapterPrefix  = "Chapter_"
	combinedPrefix = "00_"
)

// ChapterLoader reads Chapter_* files from a directory.
type ChapterLoader struct {
	dir      string
	minChars int
	logger   *slog.Logger
}

// NewChapterLoader wires the chapters directory. Chapters shorter than
// minChars runes are skipped; zero disables the check.
func NewChapterLoader(dir string, minChars int, logger *slog.Logger) *ChapterLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChapterLoader{dir: dir, minChars: minChars, logger: logger}
}

// Load returns chapters sorted by file name. Plain text and Markdown are read
// verbatim, HTML is reduced to its visible text.
func (l *ChapterLoader) Load() ([]catalog.Chapter, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read chapters dir %s: %w", l.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, chapterPrefix) || strings.HasPrefix(name, combinedPrefix) {
			continue
		}
		if !supportedExt(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	chapters := make([]catalog.Chapter, 0, len(names))
	for _, name := range names {
		text, err := readChapter(filepath.Join(l.dir, name))
		if err != nil {
			return nil, err
		}
		if n := utf8.RuneCountInString(text); n < l.minChars {
			l.logger.Info("skipping short chapter", "chapter", name, "chars", n)
			continue
		}
		chapters = append(chapters, catalog.Chapter{
			Name: strings.TrimSuffix(name, filepath.Ext(name)),
			Text: text,
		})
	}

	return chapters, nil
}

func supportedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".html", ".htm":
		return true
	default:
		return false
	}
}

func readChapter(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read chapter %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return htmlText(raw)
	default:
		return strings.TrimSpace(string(raw)), nil
	}
}

func htmlText(raw []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, nav").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var paragraphs []string
	root.Find("h1, h2, h3, h4, p, li, blockquote").Each(func(_ int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		return strings.Join(strings.Fields(root.Text()), " "), nil
	}
	return strings.Join(paragraphs, "\n\n"), nil
}
