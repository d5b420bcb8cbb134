package domain

import "time"

// MemoryRecord is a committed instruction/response example with its lineage.
type MemoryRecord struct {
	ID          string    `json:"id,omitempty"`
	UnitID      string    `json:"unit_id,omitempty"`
	Instruction string    `json:"instruction"`
	Input       string    `json:"input"`
	Output      string    `json:"output"`
	Category    string    `json:"category"`
	Topic       string    `json:"topic"`
	Source      string    `json:"source,omitempty"`
	CommittedAt time.Time `json:"committed_at,omitzero"`
}

// NormalizedRecord is the Alpaca-style projection consumed by trainers.
type NormalizedRecord struct {
	Instruction string `json:"instruction"`
	Input       string `json:"input"`
	Output      string `json:"output"`
}

// Normalize projects a record to the training schema.
func (r MemoryRecord) Normalize() NormalizedRecord {
	return NormalizedRecord{
		Instruction: r.Instruction,
		Input:       r.Input,
		Output:      r.Output,
	}
}
