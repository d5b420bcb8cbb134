// Package assembler turns committed records into the final dataset shapes.
package assembler

import (
	_ "embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
)

//go:embed schema/memory_record.json
var recordSchema string

// Options tune assembly.
type Options struct {
	// Dedupe drops later records repeating an earlier instruction+output pair.
	Dedupe bool
}

// Result holds both dataset shapes plus what was filtered out.
type Result struct {
	Raw        []domain.MemoryRecord
	Normalized []domain.NormalizedRecord
	Dropped    int
	Duplicates int
	Problems   []string
}

// Assembler validates records against the record schema.
type Assembler struct {
	schema *gojsonschema.Schema
	opts   Options
}

// New compiles the embedded record schema.
func New(opts Options) (*Assembler, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(recordSchema))
	if err != nil {
		return nil, fmt.Errorf("compile record schema: %w", err)
	}
	return &Assembler{schema: schema, opts: opts}, nil
}

// Assemble keeps valid records in their original order and projects them
// to the normalized form.
func (a *Assembler) Assemble(records []domain.MemoryRecord) Result {
	res := Result{
		Raw:        make([]domain.MemoryRecord, 0, len(records)),
		Normalized: make([]domain.NormalizedRecord, 0, len(records)),
	}

	seen := map[[2]string]struct{}{}
	for i, rec := range records {
		if problems := a.Validate(rec); len(problems) > 0 {
			res.Dropped++
			for _, p := range problems {
				res.Problems = append(res.Problems, fmt.Sprintf("record %d (%s): %s", i, rec.UnitID, p))
			}
			continue
		}

		if a.opts.Dedupe {
			key := [2]string{rec.Instruction, rec.Output}
			if _, dup := seen[key]; dup {
				res.Duplicates++
				continue
			}
			seen[key] = struct{}{}
		}

		res.Raw = append(res.Raw, rec)
		res.Normalized = append(res.Normalized, rec.Normalize())
	}

	return res
}

// Validate returns the schema violations of rec, or nil when it is valid.
func (a *Assembler) Validate(rec domain.MemoryRecord) []string {
	result, err := a.schema.Validate(gojsonschema.NewGoLoader(rec))
	if err != nil {
		return []string{err.Error()}
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return errs
}
