// Package scripting runs user-supplied hit policies in sandboxed GopherLua VMs.
// Scripts never see the network or filesystem; the only host services are the
// engine.* tables installed by Manager.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the opcode budget of one script call when no limit is configured.
const DefaultInstructionLimit = 100_000

// countingContext cancels itself after Done() has been called limit times.
// GopherLua's mainLoopWithContext calls Done() once per opcode, which makes this
// an exact instruction-count limit.
type countingContext struct {
	context.Context
	cancel    context.CancelFunc
	remaining *atomic.Int64
}

func (c *countingContext) Done() <-chan struct{} {
	if c.remaining.Add(-1) <= 0 {
		c.cancel()
	}
	return c.Context.Done()
}

// newCountingContext returns a context that cancels after limit calls to Done().
// Precondition: limit > 0.
func newCountingContext(limit int) (context.Context, context.CancelFunc) {
	base, cancel := context.WithCancel(context.Background())
	rem := &atomic.Int64{}
	rem.Store(int64(limit))
	return &countingContext{Context: base, cancel: cancel, remaining: rem}, cancel
}

// NewSandboxedState creates a GopherLua LState with only the base, table, string
// and math libraries, and with dofile, loadfile, load, collectgarbage and require
// removed.
//
// Postcondition: The caller owns the LState and must Close it.
func NewSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "collectgarbage", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// runLimited runs fn with a fresh budget of instLimit opcodes installed on L.
// A limit <= 0 uses DefaultInstructionLimit.
func runLimited(L *lua.LState, instLimit int, fn func() error) error {
	if instLimit <= 0 {
		instLimit = DefaultInstructionLimit
	}
	ctx, cancel := newCountingContext(instLimit)
	defer cancel()
	L.SetContext(ctx)
	defer L.RemoveContext()
	return fn()
}

// DoStringLimited executes src in L under an instruction budget.
func DoStringLimited(L *lua.LState, instLimit int, src string) error {
	return runLimited(L, instLimit, func() error { return L.DoString(src) })
}

// DoFileLimited executes the file at path in L under an instruction budget.
func DoFileLimited(L *lua.LState, instLimit int, path string) error {
	return runLimited(L, instLimit, func() error { return L.DoFile(path) })
}

// CallLimited calls fn in protected mode under an instruction budget and returns
// its first result.
//
// Postcondition: the Lua stack of L is left as it was found.
func CallLimited(L *lua.LState, instLimit int, fn lua.LValue, args ...lua.LValue) (lua.LValue, error) {
	ret := lua.LValue(lua.LNil)
	err := runLimited(L, instLimit, func() error {
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
			return err
		}
		ret = L.Get(-1)
		L.Pop(1)
		return nil
	})
	return ret, err
}
