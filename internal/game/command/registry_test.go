package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	require.NotNil(t, r)
	cmds := r.Commands()
	require.Len(t, cmds, len(BuiltinCommands()))
	assert.Equal(t, "show", cmds[0].Name, "registration order is kept")
}

func TestResolve_NamesAndAliases(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		input   string
		handler string
	}{
		{"show", HandlerShow},
		{"l", HandlerShow},
		{"fields", HandlerFields},
		{"set", HandlerSet},
		{"=", HandlerSet},
		{"policy", HandlerPolicy},
		{"rules", HandlerPolicy},
		{"preset", HandlerPreset},
		{"load", HandlerPreset},
		{"reset", HandlerReset},
		{"odds", HandlerOdds},
		{"roll", HandlerRoll},
		{"fire", HandlerRoll},
		{"sim", HandlerSimulate},
		{"?", HandlerHelp},
		{"exit", HandlerQuit},
	}

	for _, tt := range tests {
		cmd, ok := r.Resolve(tt.input)
		require.True(t, ok, "input %q not found", tt.input)
		assert.Equal(t, tt.handler, cmd.Handler, "input %q wrong handler", tt.input)
	}
}

func TestResolve_NotFound(t *testing.T) {
	_, ok := DefaultRegistry().Resolve("attack")
	assert.False(t, ok)
}

func TestNewRegistry_DuplicateName(t *testing.T) {
	_, err := NewRegistry([]Command{
		{Name: "test", Handler: "a"},
		{Name: "test", Handler: "b"},
	})
	assert.ErrorContains(t, err, "duplicate command name")
}

func TestNewRegistry_DuplicateAlias(t *testing.T) {
	_, err := NewRegistry([]Command{
		{Name: "test1", Aliases: []string{"t"}, Handler: "a"},
		{Name: "test2", Aliases: []string{"t"}, Handler: "b"},
	})
	assert.ErrorContains(t, err, "duplicate alias")
}

func TestNewRegistry_NameShadowsAlias(t *testing.T) {
	_, err := NewRegistry([]Command{
		{Name: "test1", Aliases: []string{"t"}, Handler: "a"},
		{Name: "t", Handler: "b"},
	})
	assert.Error(t, err)
}

func TestCommandsByCategory(t *testing.T) {
	r := DefaultRegistry()
	cats := r.CommandsByCategory()
	assert.Equal(t, []string{CategoryCalculator, CategoryDice, CategorySystem}, r.Categories())
	assert.Len(t, cats[CategoryDice], 3)
	assert.Equal(t, "help", cats[CategorySystem][0].Name)
}

func TestPropertyAllAliasesResolveToCanonical(t *testing.T) {
	r := DefaultRegistry()
	cmds := r.Commands()
	rapid.Check(t, func(t *rapid.T) {
		cmd := cmds[rapid.IntRange(0, len(cmds)-1).Draw(t, "cmd_idx")]

		resolved, ok := r.Resolve(cmd.Name)
		if !ok || resolved.Name != cmd.Name {
			t.Fatalf("canonical name %q did not resolve to itself", cmd.Name)
		}
		for _, alias := range cmd.Aliases {
			aliasResolved, ok := r.Resolve(alias)
			if !ok || aliasResolved.Name != cmd.Name {
				t.Fatalf("alias %q did not resolve to %q", alias, cmd.Name)
			}
		}
	})
}
