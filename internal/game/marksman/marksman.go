// Package marksman implements the Marksman ammo calculator: spending ammo buys extra
// attacks at a cumulative -2 penalty, precise shots buy the penalty back, and the
// resolver turns the resulting attack bonus into a d20 hit chance and expected damage.
package marksman

import (
	"fmt"
	"math"
)

// PenaltyPerAmmo is the attack penalty applied to every attack per unit of ammo spent.
const PenaltyPerAmmo = 2

// FieldLimit bounds the magnitude of every field once normalized. Inside it the bonus,
// needed-roll and rolled-damage arithmetic cannot overflow an int.
const FieldLimit = 1 << 40

// AttackInput is an immutable snapshot of the six calculator fields.
type AttackInput struct {
	BaseAttackRoll     int `json:"base_attack_roll"`
	AdditionalModifier int `json:"additional_modifier"`
	HitThreshold       int `json:"hit_threshold"`
	Damage             int `json:"damage"`
	AmmoSpent          int `json:"ammo_spent"`
	ExtraAmmo          int `json:"extra_ammo"`
}

// normalized floors the resource and damage fields at zero and clamps every field
// into [-FieldLimit, FieldLimit].
//
// Postcondition: Damage, AmmoSpent and ExtraAmmo are all in [0, FieldLimit].
func (in AttackInput) normalized() AttackInput {
	in.BaseAttackRoll = clampField(in.BaseAttackRoll, -FieldLimit)
	in.AdditionalModifier = clampField(in.AdditionalModifier, -FieldLimit)
	in.HitThreshold = clampField(in.HitThreshold, -FieldLimit)
	in.Damage = clampField(in.Damage, 0)
	in.AmmoSpent = clampField(in.AmmoSpent, 0)
	in.ExtraAmmo = clampField(in.ExtraAmmo, 0)
	return in
}

func clampField(v, lo int) int {
	return min(max(v, lo), FieldLimit)
}

// AttackResult is derived from an AttackInput; it has no lifecycle of its own.
type AttackResult struct {
	Input            AttackInput `json:"input"`
	Policy           string      `json:"policy"`
	TotalAttacks     int         `json:"total_attacks"`
	AttackPenalty    int         `json:"attack_penalty"`
	FinalAttackBonus int         `json:"final_attack_bonus"`
	// NeededRoll is the natural d20 face that exactly meets the threshold.
	NeededRoll int `json:"needed_roll"`
	// HitProbability is a whole percentage in [0, 100].
	HitProbability int `json:"hit_probability"`
	// ExpectedDamage is rounded half-up to one decimal place.
	ExpectedDamage float64 `json:"expected_damage"`
}

// String returns a one-line summary such as "4 attacks at +2, 45% to hit, 9.0 expected damage".
func (r AttackResult) String() string {
	noun := "attacks"
	if r.TotalAttacks == 1 {
		noun = "attack"
	}
	return fmt.Sprintf("%d %s at %s, %d%% to hit, %.1f expected damage",
		r.TotalAttacks, noun, SignedBonus(r.FinalAttackBonus), r.HitProbability, r.ExpectedDamage)
}

// AttackPenalty returns the penalty imposed on every attack for spending ammo,
// after extra ammo has bought part of it back.
//
// Postcondition: Returns max(0, 2*ammoSpent - min(extraAmmo, 2*ammoSpent)), with both
// arguments clamped into [0, FieldLimit].
func AttackPenalty(ammoSpent, extraAmmo int) int {
	raw := clampField(ammoSpent, 0) * PenaltyPerAmmo
	reduction := min(clampField(extraAmmo, 0), raw)
	return max(raw-reduction, 0)
}

// Resolve computes the attack result for in under policy. A nil policy resolves with
// the simple policy. Resolve is total and safe for concurrent use.
//
// Postcondition: TotalAttacks >= 1; AttackPenalty >= 0; 0 <= HitProbability <= 100;
// ExpectedDamage >= 0.
func Resolve(in AttackInput, policy HitPolicy) AttackResult {
	if policy == nil {
		policy = SimplePolicy{}
	}
	in = in.normalized()

	penalty := AttackPenalty(in.AmmoSpent, in.ExtraAmmo)
	bonus := in.BaseAttackRoll + in.AdditionalModifier - penalty
	attacks := 1 + in.AmmoSpent
	chance := clampPercent(policy.HitChance(bonus, in.HitThreshold))

	return AttackResult{
		Input:            in,
		Policy:           policy.Name(),
		TotalAttacks:     attacks,
		AttackPenalty:    penalty,
		FinalAttackBonus: bonus,
		NeededRoll:       in.HitThreshold - bonus,
		HitProbability:   chance,
		ExpectedDamage:   expectedDamage(attacks, chance, in.Damage),
	}
}

// expectedDamage returns attacks * chance/100 * damage rounded half-up to tenths.
// The product is an exact count of hundredths, so the rounding is done on integers
// whenever it fits in an int.
func expectedDamage(attacks, chance, damage int) float64 {
	if chance == 0 || damage == 0 {
		return 0
	}
	if attacks > (math.MaxInt-5)/chance/damage {
		return math.Round(float64(attacks)*float64(chance)*float64(damage)/10) / 10
	}
	hundredths := attacks * chance * damage
	tenths := (hundredths + 5) / 10
	return float64(tenths) / 10
}

func clampPercent(p int) int {
	return min(max(p, 0), 100)
}

// SignedBonus renders a bonus with an explicit sign: "+6", "+0", "-2".
func SignedBonus(n int) string {
	return fmt.Sprintf("%+d", n)
}
