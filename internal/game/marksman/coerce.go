package marksman

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// Fields holds raw, unvalidated field text keyed by field. Missing keys are absent.
type Fields map[Field]string

// ParseInt reads an integer the way a lenient form control does: leading whitespace
// is skipped, an optional sign is accepted, and digits are read up to the first
// non-digit. "12abc" yields 12 and "3.7" yields 3. Values past the int range
// saturate at math.MaxInt or math.MinInt.
//
// Postcondition: ok is false only when no digits could be read.
func ParseInt(s string) (n int, ok bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return v, true
}

// intOr parses s with ParseInt and substitutes def when nothing can be read.
func intOr(s string, def int) int {
	if v, ok := ParseInt(s); ok {
		return v
	}
	return def
}

// ParseInput coerces raw field text into an AttackInput. It never fails: absent or
// unreadable fields fall back to 0, except the hit threshold, which falls back to the
// policy's DefaultThreshold. A nil policy means the simple policy.
func ParseInput(fields Fields, policy HitPolicy) AttackInput {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return AttackInput{
		BaseAttackRoll:     intOr(fields[FieldBaseAttackRoll], 0),
		AdditionalModifier: intOr(fields[FieldAdditionalModifier], 0),
		HitThreshold:       intOr(fields[FieldHitThreshold], policy.DefaultThreshold()),
		Damage:             intOr(fields[FieldDamage], 0),
		AmmoSpent:          intOr(fields[FieldAmmoSpent], 0),
		ExtraAmmo:          intOr(fields[FieldExtraAmmo], 0),
	}.normalized()
}

// FieldsOf renders in back into field text.
func FieldsOf(in AttackInput) Fields {
	return Fields{
		FieldBaseAttackRoll:     strconv.Itoa(in.BaseAttackRoll),
		FieldAdditionalModifier: strconv.Itoa(in.AdditionalModifier),
		FieldHitThreshold:       strconv.Itoa(in.HitThreshold),
		FieldDamage:             strconv.Itoa(in.Damage),
		FieldAmmoSpent:          strconv.Itoa(in.AmmoSpent),
		FieldExtraAmmo:          strconv.Itoa(in.ExtraAmmo),
	}
}
