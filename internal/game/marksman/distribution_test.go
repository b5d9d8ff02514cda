package marksman_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/marksman/internal/game/marksman"
)

func TestHitDistribution_SingleAttack(t *testing.T) {
	r := marksman.Resolve(marksman.AttackInput{BaseAttackRoll: 6, HitThreshold: 14, Damage: 5}, nil)
	d := marksman.HitDistribution(r)
	require.Len(t, d.Hits, 2)
	assert.InDelta(t, 0.35, d.Hits[0], 1e-12)
	assert.InDelta(t, 0.65, d.Hits[1], 1e-12)
	assert.InDelta(t, 0.65, d.AtLeastOne, 1e-12)
}

func TestHitDistribution_ThreeAttacks(t *testing.T) {
	// bonus 10 vs threshold 21 under the simple policy: 50%.
	r := marksman.Resolve(marksman.AttackInput{BaseAttackRoll: 14, HitThreshold: 21, AmmoSpent: 2}, nil)
	require.Equal(t, 50, r.HitProbability)
	d := marksman.HitDistribution(r)
	require.Len(t, d.Hits, 3+1)
	for k, want := range []float64{0.125, 0.375, 0.375, 0.125} {
		assert.InDelta(t, want, d.Hits[k], 1e-12, "k=%d", k)
	}
	assert.InDelta(t, 0.875, d.AtLeastOne, 1e-12)
}

func TestHitDistribution_CertainAndImpossible(t *testing.T) {
	sure := marksman.HitDistribution(marksman.Resolve(marksman.AttackInput{BaseAttackRoll: 30, HitThreshold: 2, AmmoSpent: 1}, nil))
	assert.Equal(t, []float64{0, 0, 1}, sure.Hits)

	never := marksman.HitDistribution(marksman.Resolve(marksman.AttackInput{HitThreshold: 30, AmmoSpent: 1}, nil))
	assert.Equal(t, []float64{1, 0, 0}, never.Hits)
	assert.Equal(t, 0.0, never.AtLeastOne)
}

func TestHitDistribution_TooManyAttacks(t *testing.T) {
	r := marksman.Resolve(marksman.AttackInput{AmmoSpent: marksman.MaxDistributionAttacks}, nil)
	assert.Equal(t, marksman.Distribution{}, marksman.HitDistribution(r))
}

// Property: the distribution sums to one and its mean is attacks * chance.
func TestPropertyHitDistributionSumsToOne(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := marksman.Resolve(drawInput(t), drawPolicy(t))
		d := marksman.HitDistribution(r)
		require.Len(t, d.Hits, r.TotalAttacks+1)

		var sum, mean float64
		for k, p := range d.Hits {
			assert.GreaterOrEqual(t, p, 0.0)
			sum += p
			mean += float64(k) * p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
		assert.InDelta(t, float64(r.TotalAttacks)*float64(r.HitProbability)/100, mean, 1e-9)
	})
}
