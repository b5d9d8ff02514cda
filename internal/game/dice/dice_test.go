package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/marksman/internal/game/dice"
)

// fixedSource returns the queued values in order, then repeats the last one.
type fixedSource struct {
	vals []int
	i    int
}

func (f *fixedSource) Intn(n int) int {
	v := f.vals[min(f.i, len(f.vals)-1)]
	f.i++
	return v % n
}

func TestRollResult_TotalAndString(t *testing.T) {
	r := dice.RollResult{Expression: "2d6+3", Dice: []int{4, 5}, Modifier: 3}
	assert.Equal(t, 12, r.Total())
	assert.Equal(t, "2d6+3: 4 5 +3 = 12", r.String())
}

func TestParse_Valid(t *testing.T) {
	cases := map[string]dice.Expression{
		"d20":    {Raw: "d20", Count: 1, Sides: 20},
		"1d20":   {Raw: "1d20", Count: 1, Sides: 20},
		"2d6+3":  {Raw: "2d6+3", Count: 2, Sides: 6, Modifier: 3},
		"4D8-2":  {Raw: "4D8-2", Count: 4, Sides: 8, Modifier: -2},
		" d12 ": {Raw: "d12", Count: 1, Sides: 12},
	}
	for in, want := range cases {
		got, err := dice.Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "20", "0d6", "xd6", "d1", "d", "2d6+x"} {
		_, err := dice.Parse(in)
		assert.Error(t, err, "expression %q should be rejected", in)
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { dice.MustParse("nope") })
}

func TestRoll_UsesSource(t *testing.T) {
	src := &fixedSource{vals: []int{3, 5}}
	r := dice.Roll(dice.MustParse("2d6+1"), src)
	assert.Equal(t, []int{4, 6}, r.Dice)
	assert.Equal(t, 11, r.Total())
}

func TestRoller_D20_LogsAtDebug(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	roller := dice.NewLoggedRoller(&fixedSource{vals: []int{19}}, zap.New(core))

	assert.Equal(t, 20, roller.D20())
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "dice roll", entry.Message)
	assert.Equal(t, int64(20), entry.ContextMap()["total"])
}

func TestRoller_RollExpr_ParseError(t *testing.T) {
	roller := dice.NewLoggedRoller(dice.NewCryptoSource(), nil)
	_, err := roller.RollExpr("bad")
	assert.Error(t, err)
}

func TestCryptoSource_PanicsOnZero(t *testing.T) {
	assert.Panics(t, func() { dice.NewCryptoSource().Intn(0) })
	assert.Panics(t, func() { dice.NewSeededSource(1).Intn(0) })
}

func TestSeededSource_Reproducible(t *testing.T) {
	a := dice.NewSeededSource(42)
	b := dice.NewSeededSource(42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Intn(20), b.Intn(20))
	}
}

// Property: every rolled die lies in [1, sides] for both sources.
func TestPropertyRollWithinFaces(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(1, 10).Draw(t, "count")
		sides := rapid.IntRange(2, 100).Draw(t, "sides")
		seed := rapid.Uint64().Draw(t, "seed")
		expr := dice.Expression{Raw: "x", Count: count, Sides: sides}
		for _, src := range []dice.Source{dice.NewCryptoSource(), dice.NewSeededSource(seed)} {
			r := dice.Roll(expr, src)
			require.Len(t, r.Dice, count)
			for _, d := range r.Dice {
				assert.GreaterOrEqual(t, d, 1)
				assert.LessOrEqual(t, d, sides)
			}
		}
	})
}

// Property: Total() == sum(Dice) + Modifier.
func TestPropertyTotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		faces := rapid.SliceOf(rapid.IntRange(1, 20)).Draw(t, "dice")
		mod := rapid.IntRange(-100, 100).Draw(t, "modifier")
		want := mod
		for _, d := range faces {
			want += d
		}
		assert.Equal(t, want, dice.RollResult{Expression: "x", Dice: faces, Modifier: mod}.Total())
	})
}
