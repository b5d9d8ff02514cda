// Package command defines the calculator's Telnet command set: parsing a line into a
// command word and arguments, and resolving names and aliases.
package command

// Categories group commands in the help listing.
const (
	CategoryCalculator = "calculator"
	CategoryDice       = "dice"
	CategorySystem     = "system"
)

// Handler identifiers dispatched by the session handler.
const (
	HandlerShow     = "show"
	HandlerFields   = "fields"
	HandlerSet      = "set"
	HandlerPolicy   = "policy"
	HandlerPreset   = "preset"
	HandlerReset    = "reset"
	HandlerOdds     = "odds"
	HandlerRoll     = "roll"
	HandlerSimulate = "simulate"
	HandlerHelp     = "help"
	HandlerQuit     = "quit"
)

// Command defines a user-invocable command.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Usage shows the argument syntax, e.g. "set <field> <value>".
	Usage string
	// Help is the one-line description shown by the help command.
	Help string
	// Category groups the command in help output.
	Category string
	// Handler selects the session function that runs the command.
	Handler string
}

// BuiltinCommands returns every calculator command.
func BuiltinCommands() []Command {
	return []Command{
		{Name: "show", Aliases: []string{"s", "look", "l"}, Usage: "show", Help: "Show the current inputs and result", Category: CategoryCalculator, Handler: HandlerShow},
		{Name: "fields", Aliases: []string{"f"}, Usage: "fields", Help: "List the fields and the values each accepts", Category: CategoryCalculator, Handler: HandlerFields},
		{Name: "set", Aliases: []string{"="}, Usage: "set <field> <value>", Help: "Change one input and recompute", Category: CategoryCalculator, Handler: HandlerSet},
		{Name: "policy", Aliases: []string{"rules"}, Usage: "policy [name]", Help: "List hit policies, or switch to one", Category: CategoryCalculator, Handler: HandlerPolicy},
		{Name: "preset", Aliases: []string{"load"}, Usage: "preset [id]", Help: "List presets, or apply one", Category: CategoryCalculator, Handler: HandlerPreset},
		{Name: "reset", Aliases: nil, Usage: "reset", Help: "Restore the default inputs", Category: CategoryCalculator, Handler: HandlerReset},
		{Name: "odds", Aliases: []string{"dist"}, Usage: "odds", Help: "Show the chance of each number of hits", Category: CategoryDice, Handler: HandlerOdds},
		{Name: "roll", Aliases: []string{"r", "fire"}, Usage: "roll", Help: "Roll every attack of the turn", Category: CategoryDice, Handler: HandlerRoll},
		{Name: "simulate", Aliases: []string{"sim"}, Usage: "simulate [trials]", Help: "Roll many turns and report the observed averages", Category: CategoryDice, Handler: HandlerSimulate},
		{Name: "help", Aliases: []string{"?", "h"}, Usage: "help", Help: "Show this list", Category: CategorySystem, Handler: HandlerHelp},
		{Name: "quit", Aliases: []string{"exit", "q"}, Usage: "quit", Help: "Disconnect", Category: CategorySystem, Handler: HandlerQuit},
	}
}
