// Package prompt renders generation units into prompt text.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/valyala/fasttemplate"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
)

const (
	startTag = "{{"
	endTag   = "}}"

	// DefaultMaxContextChars keeps the excerpt inside the generator's input limits.
	DefaultMaxContextChars = 8000
)

// MemoryTemplate asks for one persona memory as a JSON object.
const MemoryTemplate = `Given this persona:
{{context}}

Generate a realistic personal memory about: {{topic}} (category: {{category}})
{{description}}

Create:
1. A natural user question asking about this memory
2. A detailed, personal response with specific details and emotions
3. Keep it conversational

Return ONLY this JSON object (no markdown, no extra text):
{
    "instruction": "question here",
    "input": "",
    "output": "detailed memory response here",
    "category": "{{category}}",
    "topic": "{{topic}}"
}
`

// BatchTemplate asks for an array of Q/A pairs grounded in an excerpt.
const BatchTemplate = `Based on this excerpt from "{{source}}":

{{context}}

Generate {{batch_size}} diverse Q&A pairs for AI training.

Questions should be natural and varied (factual, analytical, personal).
Answers should be detailed and conversational, in first person when about the narrator's experiences.

Return ONLY this JSON array (no markdown, no extra text):
[
  {"instruction": "question", "output": "answer"}
]
`

// Options configure the builder.
type Options struct {
	MemoryTemplate  string
	BatchTemplate   string
	MaxContextChars int
}

// Builder renders prompts. It holds no mutable state after construction.
type Builder struct {
	memory     *fasttemplate.Template
	batch      *fasttemplate.Template
	maxContext int
}

// NewBuilder parses the templates, falling back to the built-in ones.
func NewBuilder(opts Options) (*Builder, error) {
	memorySrc := opts.MemoryTemplate
	if strings.TrimSpace(memorySrc) == "" {
		memorySrc = MemoryTemplate
	}
	batchSrc := opts.BatchTemplate
	if strings.TrimSpace(batchSrc) == "" {
		batchSrc = BatchTemplate
	}

	memory, err := fasttemplate.NewTemplate(memorySrc, startTag, endTag)
	if err != nil {
		return nil, fmt.Errorf("parse memory template: %w", err)
	}
	batch, err := fasttemplate.NewTemplate(batchSrc, startTag, endTag)
	if err != nil {
		return nil, fmt.Errorf("parse batch template: %w", err)
	}

	maxContext := opts.MaxContextChars
	if maxContext <= 0 {
		maxContext = DefaultMaxContextChars
	}

	return &Builder{memory: memory, batch: batch, maxContext: maxContext}, nil
}

// Build renders the prompt for unit. The unit's own context (a chapter
// excerpt) wins over the shared context (the persona description).
func (b *Builder) Build(unit domain.GenerationUnit, sharedContext string) string {
	context := sharedContext
	if unit.Context != "" {
		context = unit.Context
	}

	values := map[string]interface{}{
		"context":     truncate(strings.TrimSpace(context), b.maxContext),
		"category":    unit.Category,
		"topic":       unit.Topic,
		"description": unit.Description,
		"source":      sourceName(unit),
		"batch_size":  strconv.Itoa(unit.BatchSize),
	}

	if unit.Kind == domain.KindBatch {
		return b.batch.ExecuteString(values)
	}
	return b.memory.ExecuteString(values)
}

func sourceName(unit domain.GenerationUnit) string {
	if unit.Source != "" {
		return unit.Source
	}
	return unit.Category
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
