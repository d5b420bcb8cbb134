// Package catalog enumerates the generation units of a run.
package catalog

import (
	"fmt"
	"strings"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/ports"
)

// Category groups topics under a description shown to the generator.
type Category struct {
	Name        string
	Description string
	Topics      []string
}

// Catalog enumerates persona-memory units across categories.
type Catalog struct {
	categories []Category
	policy     Policy
}

var _ ports.UnitSource = (*Catalog)(nil)

// New copies the category set; it fails when no category has topics.
func New(categories []Category, policy Policy) (*Catalog, error) {
	if policy == nil {
		policy = Cyclic{}
	}

	kept := make([]Category, 0, len(categories))
	for _, c := range categories {
		name := strings.TrimSpace(c.Name)
		if name == "" || len(c.Topics) == 0 {
			continue
		}
		kept = append(kept, Category{
			Name:        name,
			Description: c.Description,
			Topics:      append([]string(nil), c.Topics...),
		})
	}
	if len(kept) == 0 {
		return nil, domain.ErrEmptyCatalog
	}

	return &Catalog{categories: kept, policy: policy}, nil
}

// Enumerate spreads target evenly over categories in configured order.
// The per-category share uses integer division: the remainder is dropped.
func (c *Catalog) Enumerate(target int) ([]domain.GenerationUnit, error) {
	if len(c.categories) == 0 {
		return nil, domain.ErrEmptyCatalog
	}
	if target < 0 {
		return nil, fmt.Errorf("negative target count %d", target)
	}

	perCategory := target / len(c.categories)
	units := make([]domain.GenerationUnit, 0, perCategory*len(c.categories))
	for _, cat := range c.categories {
		for seq := 0; seq < perCategory; seq++ {
			units = append(units, domain.GenerationUnit{
				Kind:        domain.KindMemory,
				Category:    cat.Name,
				Topic:       c.policy.Pick(cat.Topics, seq),
				Description: cat.Description,
				Seq:         seq,
			})
		}
	}

	return units, nil
}

// Deterministic reports whether the selection policy is repeatable.
func (c *Catalog) Deterministic() bool {
	return c.policy.Deterministic()
}

// Categories returns the number of categories kept.
func (c *Catalog) Categories() int {
	return len(c.categories)
}
