// Package session tracks connected calculator sessions and gives every transport
// the same access to policies, presets and the dice.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/marksman/internal/game/dice"
	"github.com/cory-johannsen/marksman/internal/game/marksman"
	"github.com/cory-johannsen/marksman/internal/game/preset"
)

// ErrTooManyTrials is returned when a simulation asks for more than the configured maximum.
var ErrTooManyTrials = errors.New("session: too many simulation trials")

// Session is one connected calculator user. Its form is guarded by a mutex so that
// a transport may read it from more than one goroutine.
type Session struct {
	ID        string
	Transport string
	Remote    string
	Started   time.Time

	mu   sync.Mutex
	form *marksman.Form
}

// Set changes one field by name or alias.
func (s *Session) Set(name, value string) (marksman.AttackResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form.Set(name, value)
}

// SetPolicy switches the session's hit policy.
func (s *Session) SetPolicy(p marksman.HitPolicy) marksman.AttackResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form.SetPolicy(p)
}

// Apply replaces every field with in.
func (s *Session) Apply(in marksman.AttackInput) marksman.AttackResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form.Apply(in)
}

// Reset restores the default field values.
func (s *Session) Reset() marksman.AttackResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form.Reset()
}

// Result resolves the current form.
func (s *Session) Result() marksman.AttackResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form.Result()
}

// Snapshot returns the coerced input, the selected policy and the raw field text.
func (s *Session) Snapshot() (marksman.AttackInput, marksman.HitPolicy, marksman.Fields) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := make(marksman.Fields, 6)
	for _, spec := range marksman.FieldSpecs() {
		values[spec.Field] = s.form.Value(spec.Field)
	}
	return s.form.Input(), s.form.Policy(), values
}

// Info is a read-only view of a session for listings.
type Info struct {
	ID        string    `json:"id"`
	Transport string    `json:"transport"`
	Remote    string    `json:"remote"`
	Started   time.Time `json:"started"`
	Policy    string    `json:"policy"`
}

// Options configures a Manager.
type Options struct {
	Policies *marksman.PolicyRegistry
	// Presets may be nil when no presets are configured.
	Presets *preset.Registry
	Source  dice.Source
	// SimulationTrials is used when a simulation request gives no trial count.
	SimulationTrials int
	// MaxSimulationTrials caps requested trial counts.
	MaxSimulationTrials int
}

// Manager tracks all open sessions. All methods are safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	policies  *marksman.PolicyRegistry
	presets   *preset.Registry
	roller    *dice.Roller
	src       dice.Source
	trials    int
	maxTrials int
	logger    *zap.Logger
}

// NewManager creates an empty Manager.
//
// Precondition: opts.Policies, opts.Source and logger must be non-nil.
func NewManager(opts Options, logger *zap.Logger) *Manager {
	presets := opts.Presets
	if presets == nil {
		presets, _ = preset.NewRegistry(nil)
	}
	trials := opts.SimulationTrials
	if trials < 1 {
		trials = 1
	}
	maxTrials := opts.MaxSimulationTrials
	if maxTrials < trials {
		maxTrials = trials
	}
	return &Manager{
		sessions:  make(map[string]*Session),
		policies:  opts.Policies,
		presets:   presets,
		roller:    dice.NewLoggedRoller(opts.Source, logger),
		src:       opts.Source,
		trials:    trials,
		maxTrials: maxTrials,
		logger:    logger,
	}
}

// Open registers a new session using the default policy and default field values.
//
// Postcondition: the returned session has a fresh UUID and is counted by Count.
func (m *Manager) Open(transport, remote string) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		Transport: transport,
		Remote:    remote,
		Started:   time.Now(),
		form:      marksman.NewForm(m.policies.Default()),
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Close forgets the session with id. Unknown ids are ignored.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Get returns the open session with id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns every open session, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Started.Before(sessions[j].Started) })
	out := make([]Info, len(sessions))
	for i, s := range sessions {
		_, p, _ := s.Snapshot()
		out[i] = Info{ID: s.ID, Transport: s.Transport, Remote: s.Remote, Started: s.Started, Policy: p.Name()}
	}
	return out
}

// Policy looks up a hit policy; an empty name is the default.
func (m *Manager) Policy(name string) (marksman.HitPolicy, error) {
	return m.policies.Lookup(name)
}

// PolicyNames lists every available policy.
func (m *Manager) PolicyNames() []string {
	return m.policies.Names()
}

// DefaultPolicy returns the policy new sessions start with.
func (m *Manager) DefaultPolicy() marksman.HitPolicy {
	return m.policies.Default()
}

// Preset looks up a preset by id.
func (m *Manager) Preset(id string) (*preset.Preset, error) {
	return m.presets.Lookup(id)
}

// Presets lists every preset sorted by id.
func (m *Manager) Presets() []*preset.Preset {
	return m.presets.All()
}

// Roll rolls one turn for in under policy.
func (m *Manager) Roll(in marksman.AttackInput, policy marksman.HitPolicy) (marksman.TurnRoll, error) {
	return marksman.RollTurn(in, policy, m.roller)
}

// Simulate runs trials turns; trials <= 0 uses the configured default.
//
// Postcondition: returns ErrTooManyTrials when trials exceeds the configured maximum.
func (m *Manager) Simulate(ctx context.Context, in marksman.AttackInput, policy marksman.HitPolicy, trials int) (marksman.SimulationResult, error) {
	if trials <= 0 {
		trials = m.trials
	}
	if trials > m.maxTrials {
		return marksman.SimulationResult{}, fmt.Errorf("%d > %d: %w", trials, m.maxTrials, ErrTooManyTrials)
	}
	start := time.Now()
	res, err := marksman.Simulate(ctx, in, policy, m.src, trials)
	if err != nil {
		return res, err
	}
	m.logger.Debug("simulation complete",
		zap.String("policy", res.Result.Policy),
		zap.Int("trials", trials),
		zap.Float64("mean_damage", res.MeanDamage),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}
