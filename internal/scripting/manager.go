package scripting

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/marksman/internal/game/dice"
	"github.com/cory-johannsen/marksman/internal/game/marksman"
)

// Lua globals a policy script defines.
const (
	hookHitProbability   = "hit_probability"
	hookDefaultThreshold = "default_threshold"
	hookHits             = "hits"
)

// ErrMissingHook is returned when a script does not define hit_probability.
var ErrMissingHook = errors.New("scripting: script does not define " + hookHitProbability)

// Manager owns one sandboxed LState per scripted policy.
//
// Manager is safe for concurrent use. Each LState is single-threaded, so every
// Policy serializes its own calls.
type Manager struct {
	mu        sync.RWMutex
	policies  map[string]*Policy
	roller    *dice.Roller
	logger    *zap.Logger
	instLimit int
}

// NewManager creates a Manager. instLimit bounds every script call; <= 0 uses
// DefaultInstructionLimit.
//
// Precondition: roller and logger must be non-nil.
func NewManager(roller *dice.Roller, logger *zap.Logger, instLimit int) *Manager {
	if roller == nil {
		panic("scripting.NewManager: roller must not be nil")
	}
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		policies:  make(map[string]*Policy),
		roller:    roller,
		logger:    logger,
		instLimit: instLimit,
	}
}

// LoadDir loads every *.lua file in dir, in lexicographic order, as a policy named
// after the file stem.
//
// Precondition: dir must be a readable directory.
// Postcondition: on error no policy from dir is registered.
func (m *Manager) LoadDir(dir string) ([]marksman.HitPolicy, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	loaded := make([]*Policy, 0, len(paths))
	closeAll := func() {
		for _, p := range loaded {
			p.Close()
		}
	}
	for _, path := range paths {
		p, err := m.LoadFile(path)
		if err != nil {
			closeAll()
			return nil, err
		}
		loaded = append(loaded, p)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range loaded {
		if _, dup := m.policies[p.name]; dup {
			closeAll()
			return nil, fmt.Errorf("scripting: policy %q already loaded", p.name)
		}
	}
	out := make([]marksman.HitPolicy, 0, len(loaded))
	for _, p := range loaded {
		m.policies[p.name] = p
		out = append(out, p.asHitPolicy())
	}
	m.logger.Info("scripted policies loaded", zap.String("dir", dir), zap.Int("count", len(out)))
	return out, nil
}

// LoadFile compiles one policy script without registering it with the Manager.
//
// Postcondition: the returned Policy owns a fresh LState; the caller must Close it
// unless it is handed back through LoadDir.
func (m *Manager) LoadFile(path string) (*Policy, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	L := NewSandboxedState()
	m.registerModules(L, name)

	if err := DoFileLimited(L, m.instLimit, path); err != nil {
		L.Close()
		return nil, fmt.Errorf("scripting: loading %q: %w", path, err)
	}
	if L.GetGlobal(hookHitProbability).Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("%q: %w", path, ErrMissingHook)
	}

	p := &Policy{
		name:      name,
		state:     L,
		instLimit: m.instLimit,
		logger:    m.logger.With(zap.String("policy", name)),
	}
	p.defaultThreshold = p.callInt(hookDefaultThreshold, 0)
	return p, nil
}

// Policies returns every registered scripted policy, sorted by name.
func (m *Manager) Policies() []marksman.HitPolicy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.policies))
	for name := range m.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]marksman.HitPolicy, len(names))
	for i, name := range names {
		out[i] = m.policies[name].asHitPolicy()
	}
	return out
}

// Close releases every VM. Policies must not be used afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, p := range m.policies {
		p.Close()
		delete(m.policies, name)
	}
}

// Policy is a marksman.HitPolicy backed by a Lua script.
type Policy struct {
	name             string
	defaultThreshold int
	instLimit        int
	logger           *zap.Logger

	mu    sync.Mutex
	state *lua.LState
}

// judgingPolicy is a Policy whose script also defines hits, so turns can be rolled with it.
type judgingPolicy struct {
	*Policy
}

func (p *Policy) Name() string { return p.name }

// DefaultThreshold is the value returned by default_threshold() at load time, or 0.
func (p *Policy) DefaultThreshold() int { return p.defaultThreshold }

// HitChance calls hit_probability(needed_roll, bonus, threshold). A script error or a
// non-numeric result is logged and yields 0.
func (p *Policy) HitChance(bonus, threshold int) int {
	return p.callInt(hookHitProbability, 0, threshold-bonus, bonus, threshold)
}

// Hits calls hits(roll, bonus, threshold). A script error counts as a miss.
func (j judgingPolicy) Hits(roll, bonus, threshold int) bool {
	ret, ok := j.call(hookHits, roll, bonus, threshold)
	return ok && lua.LVAsBool(ret)
}

// Close releases the VM.
func (p *Policy) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != nil {
		p.state.Close()
		p.state = nil
	}
}

func (p *Policy) asHitPolicy() marksman.HitPolicy {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != nil && p.state.GetGlobal(hookHits).Type() == lua.LTFunction {
		return judgingPolicy{p}
	}
	return p
}

// callInt calls hook and rounds a numeric result to the nearest int. def is returned
// when the hook is undefined, fails, or returns a non-number.
func (p *Policy) callInt(hook string, def int, args ...int) int {
	ret, ok := p.call(hook, args...)
	if !ok {
		return def
	}
	n, isNum := ret.(lua.LNumber)
	if !isNum {
		p.logger.Warn("scripting: hook returned a non-number",
			zap.String("hook", hook),
			zap.String("type", ret.Type().String()),
		)
		return def
	}
	return int(math.Round(float64(n)))
}

// call invokes hook with integer args. ok is false when the hook is undefined or
// raised an error; runtime errors are logged at Warn and never propagated.
func (p *Policy) call(hook string, args ...int) (lua.LValue, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == nil {
		return lua.LNil, false
	}
	fn := p.state.GetGlobal(hook)
	if fn.Type() != lua.LTFunction {
		return lua.LNil, false
	}
	largs := make([]lua.LValue, len(args))
	for i, a := range args {
		largs[i] = lua.LNumber(a)
	}
	ret, err := CallLimited(p.state, p.instLimit, fn, largs...)
	if err != nil {
		p.logger.Warn("scripting: Lua runtime error",
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, false
	}
	return ret, true
}
