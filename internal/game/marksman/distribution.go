package marksman

// MaxDistributionAttacks bounds the size of a computed hit distribution.
const MaxDistributionAttacks = 1000

// Distribution is the exact probability of each hit count in a turn, treating the
// attacks as independent d20 rolls with the resolved hit chance.
type Distribution struct {
	// Hits[k] is the probability of exactly k hits, for k in [0, TotalAttacks].
	Hits []float64 `json:"hits"`
	// AtLeastOne is the probability that one or more attacks hit.
	AtLeastOne float64 `json:"at_least_one"`
}

// HitDistribution computes the binomial hit-count distribution for r. It returns the
// zero Distribution when r has more than MaxDistributionAttacks attacks.
//
// Postcondition: sum(Hits) == 1 within floating-point error.
func HitDistribution(r AttackResult) Distribution {
	n := r.TotalAttacks
	if n < 1 || n > MaxDistributionAttacks {
		return Distribution{}
	}
	p := float64(r.HitProbability) / 100
	q := 1 - p

	// Row of Pascal's triangle weighted by p and q, built one attack at a time.
	hits := make([]float64, n+1)
	hits[0] = 1
	for i := 1; i <= n; i++ {
		for k := i; k >= 1; k-- {
			hits[k] = hits[k]*q + hits[k-1]*p
		}
		hits[0] *= q
	}

	return Distribution{Hits: hits, AtLeastOne: 1 - hits[0]}
}
