package marksman

import (
	"context"
	"errors"
	"fmt"

	"github.com/cory-johannsen/marksman/internal/game/dice"
)

// MaxRolledAttacks bounds the number of attacks RollTurn and Simulate will roll.
const MaxRolledAttacks = 1000

var (
	// ErrPolicyCannotRoll is returned when a policy only knows probabilities and
	// cannot judge an individual roll.
	ErrPolicyCannotRoll = errors.New("marksman: hit policy cannot judge individual rolls")
	// ErrTooManyAttacks is returned when a turn would roll more than MaxRolledAttacks dice.
	ErrTooManyAttacks = errors.New("marksman: too many attacks to roll")
)

// AttackRoll is one rolled attack of a turn.
type AttackRoll struct {
	Roll  int  `json:"roll"`
	Total int  `json:"total"`
	Hit   bool `json:"hit"`
}

// TurnRoll is the outcome of rolling every attack of a turn.
type TurnRoll struct {
	Result AttackResult `json:"result"`
	Rolls  []AttackRoll `json:"rolls"`
	Hits   int          `json:"hits"`
	Damage int          `json:"damage"`
}

// RollTurn rolls one d20 per attack and applies the damage of every hit.
//
// Precondition: roller must be non-nil.
// Postcondition: len(Rolls) == Result.TotalAttacks; Damage == Hits * Input.Damage.
func RollTurn(in AttackInput, policy HitPolicy, roller *dice.Roller) (TurnRoll, error) {
	if policy == nil {
		policy = SimplePolicy{}
	}
	judge, ok := policy.(RollJudge)
	if !ok {
		return TurnRoll{}, fmt.Errorf("%q: %w", policy.Name(), ErrPolicyCannotRoll)
	}
	res := Resolve(in, policy)
	if res.TotalAttacks < 1 || res.TotalAttacks > MaxRolledAttacks {
		return TurnRoll{}, fmt.Errorf("%d attacks: %w", res.TotalAttacks, ErrTooManyAttacks)
	}

	turn := TurnRoll{Result: res, Rolls: make([]AttackRoll, res.TotalAttacks)}
	for i := range turn.Rolls {
		d20 := roller.D20()
		hit := judge.Hits(d20, res.FinalAttackBonus, res.Input.HitThreshold)
		turn.Rolls[i] = AttackRoll{Roll: d20, Total: d20 + res.FinalAttackBonus, Hit: hit}
		if hit {
			turn.Hits++
		}
	}
	turn.Damage = turn.Hits * res.Input.Damage
	return turn, nil
}

// SimulationResult summarises many rolled turns.
type SimulationResult struct {
	Result AttackResult `json:"result"`
	Trials int          `json:"trials"`
	// HitRate is the observed percentage of attacks that hit.
	HitRate float64 `json:"hit_rate"`
	// MeanDamage is the observed average damage per turn.
	MeanDamage float64 `json:"mean_damage"`
	// MeanHits is the observed average number of hits per turn.
	MeanHits float64 `json:"mean_hits"`
}

// Simulate rolls trials turns with src and reports the observed rates. It stops
// early with ctx.Err() when ctx is cancelled.
//
// Precondition: trials >= 1; src must be non-nil.
func Simulate(ctx context.Context, in AttackInput, policy HitPolicy, src dice.Source, trials int) (SimulationResult, error) {
	if trials < 1 {
		return SimulationResult{}, fmt.Errorf("marksman: trials must be >= 1, got %d", trials)
	}
	roller := dice.NewLoggedRoller(src, nil)

	var hits, attacks int
	var damage float64
	var res AttackResult
	for i := 0; i < trials; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return SimulationResult{}, err
			}
		}
		turn, err := RollTurn(in, policy, roller)
		if err != nil {
			return SimulationResult{}, err
		}
		res = turn.Result
		hits += turn.Hits
		damage += float64(turn.Damage)
		attacks += len(turn.Rolls)
	}

	return SimulationResult{
		Result:     res,
		Trials:     trials,
		HitRate:    float64(hits) * 100 / float64(attacks),
		MeanDamage: damage / float64(trials),
		MeanHits:   float64(hits) / float64(trials),
	}, nil
}
