package marksman

import (
	"errors"
	"fmt"
	"strings"
)

// Field identifies one of the six calculator inputs.
type Field string

const (
	FieldBaseAttackRoll     Field = "base"
	FieldAdditionalModifier Field = "modifier"
	FieldHitThreshold       Field = "threshold"
	FieldDamage             Field = "damage"
	FieldAmmoSpent          Field = "ammo"
	FieldExtraAmmo          Field = "extra"
)

// ErrUnknownField is returned when a field name or alias is not recognised.
var ErrUnknownField = errors.New("marksman: unknown field")

var fieldAliases = map[string]Field{
	"base":                FieldBaseAttackRoll,
	"base_attack_roll":    FieldBaseAttackRoll,
	"baseattackroll":      FieldBaseAttackRoll,
	"attack":              FieldBaseAttackRoll,
	"modifier":            FieldAdditionalModifier,
	"mod":                 FieldAdditionalModifier,
	"additional_modifier": FieldAdditionalModifier,
	"additionalmodifier":  FieldAdditionalModifier,
	"threshold":           FieldHitThreshold,
	"hit_threshold":       FieldHitThreshold,
	"hitthreshold":        FieldHitThreshold,
	"dc":                  FieldHitThreshold,
	"damage":              FieldDamage,
	"dmg":                 FieldDamage,
	"ammo":                FieldAmmoSpent,
	"ammo_spent":          FieldAmmoSpent,
	"ammospent":           FieldAmmoSpent,
	"extra":               FieldExtraAmmo,
	"extra_ammo":          FieldExtraAmmo,
	"extraammo":           FieldExtraAmmo,
	"precise":             FieldExtraAmmo,
}

// ParseField resolves a field name or alias, case-insensitively.
func ParseField(name string) (Field, error) {
	f, ok := fieldAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%q: %w", name, ErrUnknownField)
	}
	return f, nil
}

// FieldSpec describes how a presentation layer should offer a field.
type FieldSpec struct {
	Field   Field  `json:"field"`
	Label   string `json:"label"`
	Default string `json:"default"`
	// Choices lists the bounded options; empty means free numeric entry.
	Choices []int `json:"choices,omitempty"`
	// Min is the smallest value offered by free entry.
	Min int `json:"min,omitempty"`
}

// FieldSpecs returns the six fields in display order.
func FieldSpecs() []FieldSpec {
	return []FieldSpec{
		{Field: FieldBaseAttackRoll, Label: "Base Attack Roll", Default: "6", Choices: intRange(0, 20)},
		{Field: FieldAdditionalModifier, Label: "Ext. Modifier", Default: "0", Choices: intRange(-5, 5)},
		{Field: FieldHitThreshold, Label: "Hit Threshold", Default: "14", Choices: []int{10, 12, 14, 16, 18, 20}},
		{Field: FieldDamage, Label: "Damage", Default: "5", Min: 1},
		{Field: FieldAmmoSpent, Label: "Ammo Spent", Default: "0", Choices: intRange(0, 10)},
		{Field: FieldExtraAmmo, Label: "Precise Shots", Default: "0", Choices: intRange(0, 10)},
	}
}

func intRange(lo, hi int) []int {
	out := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, i)
	}
	return out
}

// Form is the mutable state of one calculator session: raw field text plus the
// selected hit policy. Every mutation returns the freshly resolved result.
//
// A Form is not safe for concurrent use; each session owns its own.
type Form struct {
	values Fields
	policy HitPolicy
}

// NewForm creates a form holding the default field values.
//
// Postcondition: Result() reflects base 6, modifier 0, threshold 14, damage 5, no ammo.
func NewForm(policy HitPolicy) *Form {
	if policy == nil {
		policy = SimplePolicy{}
	}
	f := &Form{policy: policy}
	f.Reset()
	return f
}

// Reset restores every field to its default value. The policy is kept.
func (f *Form) Reset() AttackResult {
	f.values = make(Fields, 6)
	for _, spec := range FieldSpecs() {
		f.values[spec.Field] = spec.Default
	}
	return f.Result()
}

// Set stores raw text for the named field and returns the recomputed result.
// Values are never rejected; only an unknown field name is an error.
func (f *Form) Set(name, value string) (AttackResult, error) {
	field, err := ParseField(name)
	if err != nil {
		return AttackResult{}, err
	}
	return f.SetField(field, value), nil
}

// SetField stores raw text for field and returns the recomputed result.
func (f *Form) SetField(field Field, value string) AttackResult {
	f.values[field] = strings.TrimSpace(value)
	return f.Result()
}

// Apply replaces all six fields with the values of in.
func (f *Form) Apply(in AttackInput) AttackResult {
	f.values = FieldsOf(in)
	return f.Result()
}

// SetPolicy switches the hit policy and returns the recomputed result.
func (f *Form) SetPolicy(p HitPolicy) AttackResult {
	if p != nil {
		f.policy = p
	}
	return f.Result()
}

// Policy returns the selected hit policy.
func (f *Form) Policy() HitPolicy { return f.policy }

// Value returns the raw text currently held for field.
func (f *Form) Value(field Field) string { return f.values[field] }

// Input returns the coerced, immutable snapshot of the form.
func (f *Form) Input() AttackInput {
	return ParseInput(f.values, f.policy)
}

// Result resolves the current snapshot.
func (f *Form) Result() AttackResult {
	return Resolve(f.Input(), f.policy)
}
