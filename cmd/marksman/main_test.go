package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/marksman/internal/config"
	"github.com/cory-johannsen/marksman/internal/game/marksman"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Telnet.Host, cfg.Telnet.Port = "127.0.0.1", 0
	cfg.HTTP.Host, cfg.HTTP.Port = "127.0.0.1", 0
	return cfg
}

func TestInitializeApp_ShippedContent(t *testing.T) {
	cfg := testConfig(t)
	cfg.Calculator.PresetsDir = filepath.Join("..", "..", "content", "presets")
	cfg.Calculator.ScriptsDir = filepath.Join("..", "..", "content", "policies")

	app, cleanup, err := initializeApp(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, []string{"telnet", "http"}, app.Lifecycle.Names())
	assert.Equal(t, []string{"advantage", "natural", "simple"}, app.Sessions.PolicyNames())
	assert.Len(t, app.Sessions.Presets(), 3)

	advantage, err := app.Sessions.Policy("advantage")
	require.NoError(t, err)
	assert.Equal(t, 12, advantage.DefaultThreshold())
	assert.Equal(t, 88, marksman.Resolve(marksman.AttackInput{BaseAttackRoll: 6, HitThreshold: 14, Damage: 5}, advantage).HitProbability)

	turn, err := app.Sessions.Roll(marksman.AttackInput{BaseAttackRoll: 6, HitThreshold: 14, Damage: 5, AmmoSpent: 2}, advantage)
	require.NoError(t, err)
	assert.Len(t, turn.Rolls, 3)
}

func TestInitializeApp_LogsContentOnce(t *testing.T) {
	cfg := testConfig(t)
	cfg.Calculator.PresetsDir = filepath.Join("..", "..", "content", "presets")
	cfg.Calculator.ScriptsDir = filepath.Join("..", "..", "content", "policies")

	core, logs := observer.New(zap.InfoLevel)
	_, cleanup, err := initializeApp(cfg, zap.New(core))
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, 1, logs.FilterMessage("scripted policies loaded").Len())
	assert.Equal(t, 1, logs.FilterMessage("presets loaded").Len())
}

func TestInitializeApp_OnlyEnabledListeners(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.Enabled = false

	app, cleanup, err := initializeApp(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, []string{"telnet"}, app.Lifecycle.Names())
	assert.Empty(t, app.Sessions.Presets())
	assert.Equal(t, marksman.PolicySimple, app.Sessions.DefaultPolicy().Name())
}

func TestInitializeApp_BadContent(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.lua"), []byte("function ("), 0o644))
	cfg.Calculator.ScriptsDir = dir

	_, _, err := initializeApp(cfg, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "loading scripted policies")

	cfg = testConfig(t)
	cfg.Calculator.Policy = "missing"
	_, _, err = initializeApp(cfg, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, marksman.ErrUnknownPolicy)
}
