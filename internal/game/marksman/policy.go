package marksman

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Built-in policy names.
const (
	PolicySimple  = "simple"
	PolicyNatural = "natural"
)

// ErrUnknownPolicy is returned when a policy name is not registered.
var ErrUnknownPolicy = errors.New("marksman: unknown hit policy")

// HitPolicy turns a final attack bonus and a hit threshold into a hit chance.
//
// Implementations MUST be safe for concurrent use.
type HitPolicy interface {
	// Name is the registry key for the policy.
	Name() string
	// DefaultThreshold is substituted when the threshold field cannot be parsed.
	DefaultThreshold() int
	// HitChance returns the percentage chance that d20 + bonus >= threshold.
	// Values outside [0, 100] are clamped by Resolve.
	HitChance(bonus, threshold int) int
}

// RollJudge is implemented by policies that can decide a single rolled attack.
type RollJudge interface {
	// Hits reports whether a natural d20 roll in [1, 20] hits.
	Hits(roll, bonus, threshold int) bool
}

// SimplePolicy counts the d20 faces that meet the threshold. A needed roll of 1 or
// less always hits and a needed roll above 20 never does.
type SimplePolicy struct{}

// Name implements HitPolicy.
func (SimplePolicy) Name() string { return PolicySimple }

// DefaultThreshold implements HitPolicy.
func (SimplePolicy) DefaultThreshold() int { return 0 }

// HitChance implements HitPolicy.
//
// Postcondition: Returns 100 when needed <= 1, 0 when needed > 20, else (21-needed)*5.
func (SimplePolicy) HitChance(bonus, threshold int) int {
	needed := threshold - bonus
	switch {
	case needed <= 1:
		return 100
	case needed > 20:
		return 0
	default:
		return (21 - needed) * 100 / 20
	}
}

// Hits implements RollJudge.
func (SimplePolicy) Hits(roll, bonus, threshold int) bool {
	needed := threshold - bonus
	return needed <= 1 || roll >= needed
}

// NaturalPolicy applies the natural 1 / natural 20 rule: a 20 always hits and a 1
// always misses, so the chance never leaves [5, 95].
type NaturalPolicy struct{}

// Name implements HitPolicy.
func (NaturalPolicy) Name() string { return PolicyNatural }

// DefaultThreshold implements HitPolicy.
func (NaturalPolicy) DefaultThreshold() int { return 12 }

// HitChance implements HitPolicy.
//
// Postcondition: Returns a value in [5, 95].
func (NaturalPolicy) HitChance(bonus, threshold int) int {
	switch {
	case bonus+20 < threshold:
		return 5
	case bonus+1 >= threshold:
		return 95
	default:
		needed := threshold - bonus
		return (20 - needed + 1) * 100 / 20
	}
}

// Hits implements RollJudge.
func (NaturalPolicy) Hits(roll, bonus, threshold int) bool {
	switch roll {
	case 20:
		return true
	case 1:
		return false
	}
	return roll+bonus >= threshold
}

// PolicyRegistry maps policy names to policies. It always contains the built-in
// simple and natural policies.
type PolicyRegistry struct {
	mu       sync.RWMutex
	policies map[string]HitPolicy
	fallback string
}

// NewPolicyRegistry creates a registry holding the built-in policies and extra.
//
// Precondition: defaultName names a built-in policy or one of extra.
// Postcondition: Returns a registry or an error on duplicate or unknown names.
func NewPolicyRegistry(defaultName string, extra ...HitPolicy) (*PolicyRegistry, error) {
	r := &PolicyRegistry{
		policies: map[string]HitPolicy{
			PolicySimple:  SimplePolicy{},
			PolicyNatural: NaturalPolicy{},
		},
	}
	for _, p := range extra {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	if defaultName == "" {
		defaultName = PolicySimple
	}
	if _, ok := r.policies[defaultName]; !ok {
		return nil, fmt.Errorf("default policy %q: %w", defaultName, ErrUnknownPolicy)
	}
	r.fallback = defaultName
	return r, nil
}

// DefaultPolicyRegistry returns a registry with only the built-in policies and
// simple as the default.
func DefaultPolicyRegistry() *PolicyRegistry {
	r, err := NewPolicyRegistry(PolicySimple)
	if err != nil {
		panic(fmt.Sprintf("building default policy registry: %v", err))
	}
	return r
}

// Register adds p to the registry.
//
// Postcondition: Returns an error if a policy with the same name already exists.
func (r *PolicyRegistry) Register(p HitPolicy) error {
	if p == nil || p.Name() == "" {
		return errors.New("marksman: policy must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.policies[p.Name()]; exists {
		return fmt.Errorf("duplicate hit policy %q", p.Name())
	}
	r.policies[p.Name()] = p
	return nil
}

// Lookup returns the policy registered under name. An empty name returns the default.
func (r *PolicyRegistry) Lookup(name string) (HitPolicy, error) {
	if name == "" {
		return r.Default(), nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownPolicy)
	}
	return p, nil
}

// Default returns the registry's default policy.
func (r *PolicyRegistry) Default() HitPolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.policies[r.fallback]
}

// Names returns all registered policy names sorted alphabetically.
func (r *PolicyRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
