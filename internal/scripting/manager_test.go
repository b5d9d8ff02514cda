package scripting_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/marksman/internal/game/dice"
	"github.com/cory-johannsen/marksman/internal/game/marksman"
	"github.com/cory-johannsen/marksman/internal/scripting"
)

const flatScript = `
	function hit_probability(needed_roll, bonus, threshold)
		if needed_roll > 20 then return 0 end
		return 50
	end
`

const d20Script = `
	function default_threshold() return 15 end

	function hit_probability(needed_roll, bonus, threshold)
		local faces = 21 - math.max(needed_roll, 1)
		return math.min(math.max(faces, 0), 20) * 5
	end

	function hits(roll, bonus, threshold)
		return roll + bonus >= threshold
	end
`

func newTestManager(t testing.TB) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	roller := dice.NewLoggedRoller(dice.NewSeededSource(1), logger)
	mgr := scripting.NewManager(roller, logger, 0)
	t.Cleanup(mgr.Close)
	return mgr, logs
}

func writeScripts(t testing.TB, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0644))
	}
	return dir
}

func loadOne(t testing.TB, mgr *scripting.Manager, name, src string) marksman.HitPolicy {
	t.Helper()
	policies, err := mgr.LoadDir(writeScripts(t, map[string]string{name + ".lua": src}))
	require.NoError(t, err)
	require.Len(t, policies, 1)
	return policies[0]
}

func warnCount(logs *observer.ObservedLogs) int {
	return logs.FilterLevelExact(zap.WarnLevel).Len()
}

func TestManager_LoadDir_NamesPoliciesByStem(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeScripts(t, map[string]string{
		"flat.lua":   flatScript,
		"d20.lua":    d20Script,
		"notes.txt":  "ignored",
		"README.lua": flatScript,
	})
	policies, err := mgr.LoadDir(dir)
	require.NoError(t, err)

	names := make([]string, len(policies))
	for i, p := range policies {
		names[i] = p.Name()
	}
	assert.Equal(t, []string{"README", "d20", "flat"}, names)
	assert.Len(t, mgr.Policies(), 3)
}

func TestPolicy_HitChanceAndDefaults(t *testing.T) {
	mgr, _ := newTestManager(t)
	p := loadOne(t, mgr, "flat", flatScript)
	assert.Equal(t, 50, p.HitChance(6, 14))
	assert.Equal(t, 0, p.HitChance(0, 25))
	assert.Equal(t, 0, p.DefaultThreshold(), "no default_threshold defined")

	_, judges := p.(marksman.RollJudge)
	assert.False(t, judges, "a script without hits cannot roll turns")
}

func TestPolicy_JudgingScript(t *testing.T) {
	mgr, _ := newTestManager(t)
	p := loadOne(t, mgr, "d20", d20Script)
	assert.Equal(t, 15, p.DefaultThreshold())

	judge, ok := p.(marksman.RollJudge)
	require.True(t, ok)
	assert.True(t, judge.Hits(8, 6, 14))
	assert.False(t, judge.Hits(7, 6, 14))

	r := marksman.Resolve(marksman.AttackInput{BaseAttackRoll: 6, HitThreshold: 14, Damage: 5}, p)
	assert.Equal(t, 65, r.HitProbability)
	assert.Equal(t, 3.3, r.ExpectedDamage)
	assert.Equal(t, "d20", r.Policy)

	turn, err := marksman.RollTurn(r.Input, p, dice.NewLoggedRoller(dice.NewSeededSource(3), nil))
	require.NoError(t, err)
	assert.Len(t, turn.Rolls, 1)
}

func TestPolicy_ThresholdDefaultFlowsIntoParseInput(t *testing.T) {
	mgr, _ := newTestManager(t)
	p := loadOne(t, mgr, "d20", d20Script)
	in := marksman.ParseInput(marksman.Fields{marksman.FieldHitThreshold: ""}, p)
	assert.Equal(t, 15, in.HitThreshold)
}

func TestPolicy_RuntimeErrorYieldsZeroAndWarns(t *testing.T) {
	mgr, logs := newTestManager(t)
	p := loadOne(t, mgr, "broken", `
		function hit_probability(needed_roll, bonus, threshold)
			error("intentional error")
		end
	`)
	assert.Equal(t, 0, p.HitChance(6, 14))
	assert.Equal(t, 1, warnCount(logs))
}

func TestPolicy_NonNumberYieldsZero(t *testing.T) {
	mgr, logs := newTestManager(t)
	p := loadOne(t, mgr, "stringy", `
		function hit_probability() return "lots" end
	`)
	assert.Equal(t, 0, p.HitChance(6, 14))
	assert.Equal(t, 1, warnCount(logs))
}

func TestPolicy_RunawayScriptIsStopped(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	mgr := scripting.NewManager(dice.NewLoggedRoller(dice.NewSeededSource(1), nil), zap.New(core), 500)
	t.Cleanup(mgr.Close)
	p := loadOne(t, mgr, "spin", `
		function hit_probability() while true do end end
	`)
	assert.Equal(t, 0, p.HitChance(0, 10))
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestPolicy_FractionalResultRounds(t *testing.T) {
	mgr, _ := newTestManager(t)
	p := loadOne(t, mgr, "frac", `function hit_probability() return 42.6 end`)
	assert.Equal(t, 43, p.HitChance(0, 0))
}

func TestPolicy_EngineModules(t *testing.T) {
	mgr, logs := newTestManager(t)
	p := loadOne(t, mgr, "modules", `
		function hit_probability()
			engine.log.info("evaluating")
			local d = engine.dice.d20()
			local r = engine.dice.roll("2d6+3")
			if d >= 1 and d <= 20 and r >= 5 and r <= 15 then return 77 end
			return 0
		end
	`)
	assert.Equal(t, 77, p.HitChance(0, 0))

	infos := logs.FilterMessage("evaluating").All()
	require.Len(t, infos, 1)
	assert.Equal(t, "modules", infos[0].ContextMap()["policy"])
}

func TestPolicy_BadDiceExpressionIsRuntimeError(t *testing.T) {
	mgr, logs := newTestManager(t)
	p := loadOne(t, mgr, "baddice", `
		function hit_probability() return engine.dice.roll("banana") end
	`)
	assert.Equal(t, 0, p.HitChance(0, 0))
	assert.Equal(t, 1, warnCount(logs))
}

func TestManager_LoadDir_Errors(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.LoadDir(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	_, err = mgr.LoadDir(writeScripts(t, map[string]string{"bad.lua": `this is not valid lua @@@@`}))
	assert.Error(t, err)

	_, err = mgr.LoadDir(writeScripts(t, map[string]string{"nohook.lua": `x = 1`}))
	assert.True(t, errors.Is(err, scripting.ErrMissingHook))

	_, err = mgr.LoadDir(writeScripts(t, map[string]string{"ok.lua": flatScript, "zbad.lua": `@@`}))
	assert.Error(t, err)
	assert.Empty(t, mgr.Policies(), "a failed load registers nothing")
}

func TestManager_LoadDir_DuplicateName(t *testing.T) {
	mgr, _ := newTestManager(t)
	loadOne(t, mgr, "flat", flatScript)
	_, err := mgr.LoadDir(writeScripts(t, map[string]string{"flat.lua": flatScript}))
	assert.Error(t, err)
	assert.Len(t, mgr.Policies(), 1)
}

func TestManager_LoadDir_EmptyDir(t *testing.T) {
	mgr, _ := newTestManager(t)
	policies, err := mgr.LoadDir(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, policies)
}

func TestManager_ClosedPolicyYieldsZero(t *testing.T) {
	mgr, _ := newTestManager(t)
	p := loadOne(t, mgr, "flat", flatScript)
	mgr.Close()
	assert.Equal(t, 0, p.HitChance(6, 14))
	assert.Empty(t, mgr.Policies())
}

func TestNewManager_PanicsOnNil(t *testing.T) {
	roller := dice.NewLoggedRoller(dice.NewSeededSource(1), nil)
	assert.Panics(t, func() { scripting.NewManager(nil, zap.NewNop(), 0) })
	assert.Panics(t, func() { scripting.NewManager(roller, nil, 0) })
}

func TestPolicy_ConcurrentCalls(t *testing.T) {
	mgr, _ := newTestManager(t)
	p := loadOne(t, mgr, "d20", d20Script)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				assert.Equal(t, 65, p.HitChance(6, 14))
			}
		}()
	}
	wg.Wait()
}

// Property: a script that reimplements the simple policy agrees with it everywhere.
func TestProperty_ScriptMatchesSimplePolicy(t *testing.T) {
	mgr, _ := newTestManager(t)
	p := loadOne(t, mgr, "d20", d20Script)
	rapid.Check(t, func(rt *rapid.T) {
		bonus := rapid.IntRange(-30, 40).Draw(rt, "bonus")
		threshold := rapid.IntRange(-10, 50).Draw(rt, "threshold")
		assert.Equal(rt, marksman.SimplePolicy{}.HitChance(bonus, threshold), p.HitChance(bonus, threshold))
	})
}
