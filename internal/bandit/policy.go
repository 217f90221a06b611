package bandit

import (
	"fmt"
	"math"
	"math/rand"
)

// Policy names accepted by ParsePolicy.
const (
	PolicyEpsilonGreedy = "epsilon_greedy"
	PolicyUCB           = "ucb"
	PolicyThompson      = "thompson"
)

const defaultEpsilon = 0.1

// minShape floors the Beta shape parameters so the sampler never sees a
// degenerate distribution.
const minShape = 1e-3

// Policy is a closed set of selection rules. Each implementation is a pure
// function of the stats and the injected randomness source, so seeded
// determinism holds for tests.
type Policy interface {
	Name() string
	Choose(rng *rand.Rand, stats Stats) (string, error)
}

// ParsePolicy resolves a policy name and its parameters. Unknown names are
// a construction-time error, not a runtime branch.
func ParsePolicy(name string, epsilon *float64) (Policy, error) {
	switch name {
	case PolicyEpsilonGreedy:
		eps := defaultEpsilon
		if epsilon != nil {
			eps = *epsilon
		}
		return EpsilonGreedy{Epsilon: eps}, nil
	case PolicyUCB:
		return UCB{}, nil
	case PolicyThompson:
		return Thompson{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// EpsilonGreedy explores a uniformly random arm with probability Epsilon
// and otherwise exploits the highest average reward.
type EpsilonGreedy struct {
	Epsilon float64
}

func (EpsilonGreedy) Name() string { return PolicyEpsilonGreedy }

func (p EpsilonGreedy) Choose(rng *rand.Rand, stats Stats) (string, error) {
	if len(stats) == 0 {
		return "", ErrNoArmsAvailable
	}
	if rng.Float64() < p.Epsilon {
		return stats[rng.Intn(len(stats))].ArmID, nil
	}

	best := 0
	for i := 1; i < len(stats); i++ {
		if stats[i].AverageReward > stats[best].AverageReward {
			best = i
		}
	}
	return stats[best].ArmID, nil
}

// UCB implements UCB1: average reward plus a logarithmic confidence bonus
// that shrinks as an arm accumulates picks.
type UCB struct{}

func (UCB) Name() string { return PolicyUCB }

func (UCB) Choose(rng *rand.Rand, stats Stats) (string, error) {
	if len(stats) == 0 {
		return "", ErrNoArmsAvailable
	}

	totalPicks := stats.TotalPicks()
	if totalPicks == 0 {
		return stats[rng.Intn(len(stats))].ArmID, nil
	}

	best := 0
	bestScore := math.Inf(-1)
	for i, s := range stats {
		picks := s.Picks
		if picks < 1 {
			picks = 1
		}
		score := s.AverageReward + math.Sqrt(2*math.Log(float64(totalPicks)+1)/float64(picks))
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return stats[best].ArmID, nil
}

// Thompson draws one Beta sample per arm and picks the highest. The reward
// sum is treated as an approximate success count even for non-binary
// rewards; that approximation is kept from the original heuristic rather
// than replaced with a proper Bayesian update.
type Thompson struct{}

func (Thompson) Name() string { return PolicyThompson }

func (Thompson) Choose(rng *rand.Rand, stats Stats) (string, error) {
	if len(stats) == 0 {
		return "", ErrNoArmsAvailable
	}

	if statsEmpty(stats) {
		return stats[rng.Intn(len(stats))].ArmID, nil
	}

	best := 0
	bestSample := math.Inf(-1)
	for i, s := range stats {
		alpha := 1 + s.TotalReward
		beta := 1 + math.Max(0, float64(s.Picks)-s.TotalReward)
		if alpha < minShape {
			alpha = minShape
		}
		if beta < minShape {
			beta = minShape
		}
		sample := sampleBeta(rng, alpha, beta)
		if sample > bestSample {
			bestSample = sample
			best = i
		}
	}
	return stats[best].ArmID, nil
}

func statsEmpty(stats Stats) bool {
	for _, s := range stats {
		if s.Picks != 0 || s.RewardCount != 0 || s.TotalReward != 0 {
			return false
		}
	}
	return true
}

// sampleBeta draws from Beta(a, b) as Ga/(Ga+Gb) with two Gamma draws.
func sampleBeta(rng *rand.Rand, a, b float64) float64 {
	ga := sampleGamma(rng, a)
	gb := sampleGamma(rng, b)
	if ga+gb == 0 {
		return 0.5
	}
	return ga / (ga + gb)
}

// sampleGamma draws from Gamma(shape, 1) using Marsaglia-Tsang, with the
// standard boost for shape < 1.
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		return sampleGamma(rng, shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
