package domain

import "fmt"

// UnitKind selects which prompt shape a generation unit asks for.
type UnitKind string

const (
	// KindMemory asks for one persona memory as a single JSON object.
	KindMemory UnitKind = "memory"
	// KindBatch asks for an array of Q/A pairs grounded in a source excerpt.
	KindBatch UnitKind = "batch"
)

// GenerationUnit is one request the catalog hands to the pipeline.
// Units are immutable once enumerated.
type GenerationUnit struct {
	Kind        UnitKind
	Category    string
	Topic       string
	Description string
	Seq         int
	Source      string
	Context     string
	BatchSize   int
}

// ID is the stable identity stamped on every record the unit produces.
func (u GenerationUnit) ID() string {
	if u.Kind == KindBatch {
		return fmt.Sprintf("%s#%d", u.Category, u.Seq)
	}
	return fmt.Sprintf("%s/%s#%d", u.Category, u.Topic, u.Seq)
}

func (u GenerationUnit) String() string {
	return u.ID()
}

// GenerateOptions are forwarded to the generation client untouched.
type GenerateOptions struct {
	Temperature     *float32
	MaxOutputTokens int
}
