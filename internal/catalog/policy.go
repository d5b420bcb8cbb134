package catalog

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Policy picks the topic for the seq-th unit of a category.
type Policy interface {
	Name() string
	Pick(topics []string, seq int) string
	Deterministic() bool
}

// Cyclic walks the topic list round-robin so every topic gets covered.
type Cyclic struct{}

// Name identifies the policy inside the registry.
func (Cyclic) Name() string { return "cyclic" }

// Pick returns topics[seq % len(topics)].
func (Cyclic) Pick(topics []string, seq int) string {
	return topics[seq%len(topics)]
}

// Deterministic is always true for round-robin selection.
func (Cyclic) Deterministic() bool { return true }

// Random picks topics uniformly with replacement.
type Random struct {
	mu     sync.Mutex
	rng    *rand.Rand
	seeded bool
}

// NewRandom seeds the generator; seed 0 means time-based and non-repeatable.
func NewRandom(seed int64) *Random {
	seeded := seed != 0
	if !seeded {
		seed = time.Now().UnixNano()
	}
	return &Random{rng: rand.New(rand.NewSource(seed)), seeded: seeded}
}

// Name identifies the policy inside the registry.
func (r *Random) Name() string { return "random" }

// Pick draws one topic.
func (r *Random) Pick(topics []string, _ int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return topics[r.rng.Intn(len(topics))]
}

// Deterministic is true only for an explicitly seeded generator.
func (r *Random) Deterministic() bool { return r.seeded }

// Registry keeps a mapping from policy names to their implementations.
type Registry struct {
	policies map[string]Policy
}

// NewRegistry builds a registry holding the built-in policies.
func NewRegistry(seed int64) *Registry {
	r := &Registry{policies: map[string]Policy{}}
	r.Register(Cyclic{})
	r.Register(NewRandom(seed))
	return r
}

// Register adds or replaces a policy implementation.
func (r *Registry) Register(p Policy) {
	if r.policies == nil {
		r.policies = map[string]Policy{}
	}
	r.policies[p.Name()] = p
}

// Resolve returns a policy by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Policy, error) {
	if p, ok := r.policies[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("selection policy %s is not registered", name)
}
