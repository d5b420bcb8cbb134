package response

import (
	"strings"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
)

// Salvage scans s for single-level {...} groups that mention both required
// field names and parses each one on its own. Fragments that fail to parse
// or lack a required field are discarded.
func Salvage(s string) []domain.MemoryRecord {
	var records []domain.MemoryRecord
	for _, frag := range fragments(s) {
		if !strings.Contains(frag, `"`+fieldInstruction+`"`) || !strings.Contains(frag, `"`+fieldOutput+`"`) {
			continue
		}
		parsed, ok := decodeStrict(Repair(frag))
		if !ok || len(parsed) != 1 {
			continue
		}
		records = append(records, parsed[0])
	}
	return records
}

// fragments returns every brace group with no nested braces. An opening
// brace seen before the current group closes restarts the group, so an
// unterminated fragment never swallows its neighbour.
func fragments(s string) []string {
	var out []string
	start := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			start = i
		case '}':
			if start >= 0 {
				out = append(out, s[start:i+1])
				start = -1
			}
		}
	}
	return out
}
