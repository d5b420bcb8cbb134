// Package response extracts instruction/response records from raw model output.
package response

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
)

const (
	fieldInstruction = "instruction"
	fieldOutput      = "output"
)

var fencedBlock = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*[ \t]*\r?\n?(.*?)```")

// Result is the tagged outcome of Parse: either records or a failure reason.
type Result struct {
	Records  []domain.MemoryRecord
	Salvaged bool
	Reason   string
}

// Failed reports whether nothing usable was extracted.
func (r Result) Failed() bool {
	return len(r.Records) == 0
}

// Parse extracts records from text. It never panics; an empty result
// carries the reason extraction failed.
func Parse(text string) (res Result) {
	defer func() {
		if recover() != nil {
			res = Result{Reason: "parser panic"}
		}
	}()

	if strings.TrimSpace(text) == "" {
		return Result{Reason: "empty response"}
	}

	for _, candidate := range candidates(text) {
		if records := decode(candidate); len(records) > 0 {
			return Result{Records: records}
		}
	}

	records := Salvage(text)
	if len(records) == 0 {
		return Result{Reason: "no JSON record found"}
	}
	return Result{Records: records, Salvaged: true}
}

// candidates lists the texts worth decoding: the fenced body first, then the
// whole response. A fence inside a string value (a code sample in an answer)
// makes the fenced body wrong, and the whole response still holds the JSON.
func candidates(text string) []string {
	whole := strings.TrimSpace(text)
	body := strings.TrimSpace(Unfence(text))
	if body == "" || body == whole {
		return []string{whole}
	}
	return []string{body, whole}
}

// decode tries s as JSON, then the outermost bracketed span of s.
func decode(s string) []domain.MemoryRecord {
	if records, ok := decodeStrict(Repair(s)); ok && len(records) > 0 {
		return records
	}
	if span, ok := outermostSpan(s); ok {
		if records, ok := decodeStrict(Repair(span)); ok {
			return records
		}
	}
	return nil
}

// Unfence returns the interior of the first fenced code block. An opening
// fence with no closing one (a truncated answer) yields everything after it.
func Unfence(text string) string {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return m[1]
	}

	idx := strings.Index(text, "```")
	if idx < 0 {
		return text
	}
	rest := text[idx+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{[") {
		rest = rest[nl+1:]
	}
	return rest
}

// Repair strips // line comments and trailing commas outside string literals
// and escapes raw control characters inside them.
func Repair(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			case c < 0x20:
				out.WriteString(controlEscape(c))
				continue
			}
			out.WriteByte(c)
			continue
		}

		switch {
		case c == '"':
			inString = true
			out.WriteByte(c)
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				out.WriteByte('\n')
			}
		case c == ',' && closesNext(s[i+1:]):
			// drop trailing comma
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

func controlEscape(c byte) string {
	switch c {
	case '\n':
		return `\n`
	case '\r':
		return `\r`
	case '\t':
		return `\t`
	default:
		return fmt.Sprintf(`\u%04x`, c)
	}
}

// closesNext reports whether the next significant byte closes a container.
func closesNext(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		case '/':
			if i+1 < len(s) && s[i+1] == '/' {
				for i < len(s) && s[i] != '\n' {
					i++
				}
				continue
			}
			return false
		case '}', ']':
			return true
		default:
			return false
		}
	}
	return false
}

// decodeStrict parses s as one object or an array of objects. ok is false
// when s is not valid JSON of either shape.
func decodeStrict(s string) ([]domain.MemoryRecord, bool) {
	data := bytes.TrimSpace([]byte(s))
	if len(data) == 0 {
		return nil, false
	}

	var objects []map[string]json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &objects); err != nil {
			return nil, false
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, false
		}
		objects = append(objects, obj)
	default:
		return nil, false
	}

	records := make([]domain.MemoryRecord, 0, len(objects))
	for _, obj := range objects {
		if rec, ok := toRecord(obj); ok {
			records = append(records, rec)
		}
	}
	return records, true
}

// toRecord requires instruction and output keys with string values.
// Optional fields of the wrong type are ignored.
func toRecord(obj map[string]json.RawMessage) (domain.MemoryRecord, bool) {
	var rec domain.MemoryRecord
	if obj == nil {
		return rec, false
	}

	if !stringField(obj, fieldInstruction, &rec.Instruction, true) {
		return rec, false
	}
	if !stringField(obj, fieldOutput, &rec.Output, true) {
		return rec, false
	}
	stringField(obj, "input", &rec.Input, false)
	stringField(obj, "category", &rec.Category, false)
	stringField(obj, "topic", &rec.Topic, false)
	stringField(obj, "source", &rec.Source, false)
	return rec, true
}

func stringField(obj map[string]json.RawMessage, key string, dst *string, required bool) bool {
	raw, ok := obj[key]
	if !ok {
		return !required
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return !required
	}
	return true
}

// outermostSpan returns the text between the first opening bracket and the
// last matching closer, dropping prose around a JSON value.
func outermostSpan(s string) (string, bool) {
	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return "", false
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return "", false
	}
	if start == 0 && end == len(s)-1 {
		return "", false
	}
	return s[start : end+1], true
}
