package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// registerModules installs the engine table into L for the script named name.
//
//	engine.log.debug(msg) / engine.log.info(msg) / engine.log.warn(msg)
//	engine.dice.roll(expr) -> total
//	engine.dice.d20()      -> 1..20
//
// Precondition: L must come from NewSandboxedState.
func (m *Manager) registerModules(L *lua.LState, name string) {
	engine := L.NewTable()
	L.SetField(engine, "log", m.logModule(L, name))
	L.SetField(engine, "dice", m.diceModule(L))
	L.SetGlobal("engine", engine)
}

func (m *Manager) logModule(L *lua.LState, name string) *lua.LTable {
	logger := m.logger.With(zap.String("policy", name))
	levels := map[string]func(string, ...zap.Field){
		"debug": logger.Debug,
		"info":  logger.Info,
		"warn":  logger.Warn,
	}
	mod := L.NewTable()
	for level, fn := range levels {
		write := fn
		L.SetField(mod, level, L.NewFunction(func(L *lua.LState) int {
			write(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	return mod
}

func (m *Manager) diceModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "roll", L.NewFunction(func(L *lua.LState) int {
		res, err := m.roller.RollExpr(L.CheckString(1))
		if err != nil {
			L.RaiseError("engine.dice.roll: %s", err.Error())
			return 0
		}
		L.Push(lua.LNumber(res.Total()))
		return 1
	}))
	L.SetField(mod, "d20", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(m.roller.D20()))
		return 1
	}))
	return mod
}
