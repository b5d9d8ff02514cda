package marksman_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/marksman/internal/game/marksman"
)

type constPolicy struct {
	name   string
	chance int
}

func (c constPolicy) Name() string           { return c.name }
func (c constPolicy) DefaultThreshold() int  { return 10 }
func (c constPolicy) HitChance(_, _ int) int { return c.chance }

func TestSimplePolicy_Table(t *testing.T) {
	p := marksman.SimplePolicy{}
	cases := []struct {
		bonus, threshold, want int
	}{
		{6, 14, 65},
		{0, 1, 100},
		{0, 2, 95},
		{0, 20, 5},
		{0, 21, 0},
		{-5, 30, 0},
		{30, 10, 100},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, p.HitChance(c.bonus, c.threshold), "bonus %d threshold %d", c.bonus, c.threshold)
	}
	assert.Equal(t, 0, p.DefaultThreshold())
}

func TestNaturalPolicy_Table(t *testing.T) {
	p := marksman.NaturalPolicy{}
	cases := []struct {
		bonus, threshold, want int
	}{
		{6, 14, 65},
		{0, 21, 5},
		{0, 20, 5},
		{0, 30, 5},
		{0, 1, 95},
		{0, 2, 95},
		{0, 3, 90},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, p.HitChance(c.bonus, c.threshold), "bonus %d threshold %d", c.bonus, c.threshold)
	}
	assert.Equal(t, 12, p.DefaultThreshold())
}

func TestResolve_ClampsOutOfRangePolicy(t *testing.T) {
	high := marksman.Resolve(marksman.AttackInput{}, constPolicy{name: "high", chance: 140})
	low := marksman.Resolve(marksman.AttackInput{}, constPolicy{name: "low", chance: -3})
	assert.Equal(t, 100, high.HitProbability)
	assert.Equal(t, 0, low.HitProbability)
	assert.Equal(t, "high", high.Policy)
}

func TestPolicyRegistry_Builtins(t *testing.T) {
	reg := marksman.DefaultPolicyRegistry()
	assert.Equal(t, []string{marksman.PolicyNatural, marksman.PolicySimple}, reg.Names())
	assert.Equal(t, marksman.PolicySimple, reg.Default().Name())

	p, err := reg.Lookup("")
	require.NoError(t, err)
	assert.Equal(t, marksman.PolicySimple, p.Name())

	p, err = reg.Lookup(marksman.PolicyNatural)
	require.NoError(t, err)
	assert.Equal(t, marksman.PolicyNatural, p.Name())

	_, err = reg.Lookup("nope")
	assert.True(t, errors.Is(err, marksman.ErrUnknownPolicy))
}

func TestPolicyRegistry_ExtraAndDefault(t *testing.T) {
	reg, err := marksman.NewPolicyRegistry("flat", constPolicy{name: "flat", chance: 50})
	require.NoError(t, err)
	assert.Equal(t, "flat", reg.Default().Name())

	assert.Error(t, reg.Register(constPolicy{name: "flat"}))
	assert.Error(t, reg.Register(constPolicy{name: marksman.PolicySimple}))

	_, err = marksman.NewPolicyRegistry("missing")
	assert.True(t, errors.Is(err, marksman.ErrUnknownPolicy))
}

// Property: each policy's judge agrees with its probability: the number of d20 faces
// that hit is HitChance/5.
func TestPropertyJudgeMatchesHitChance(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bonus := rapid.IntRange(-30, 40).Draw(t, "bonus")
		threshold := rapid.IntRange(-10, 50).Draw(t, "threshold")
		for _, p := range []marksman.HitPolicy{marksman.SimplePolicy{}, marksman.NaturalPolicy{}} {
			judge := p.(marksman.RollJudge)
			faces := 0
			for roll := 1; roll <= 20; roll++ {
				if judge.Hits(roll, bonus, threshold) {
					faces++
				}
			}
			assert.Equal(t, p.HitChance(bonus, threshold), faces*5, "policy %s", p.Name())
		}
	})
}

// Property: the natural policy never leaves [5, 95].
func TestPropertyNaturalBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bonus := rapid.IntRange(-100, 100).Draw(t, "bonus")
		threshold := rapid.IntRange(-100, 100).Draw(t, "threshold")
		c := marksman.NaturalPolicy{}.HitChance(bonus, threshold)
		assert.GreaterOrEqual(t, c, 5)
		assert.LessOrEqual(t, c, 95)
	})
}
