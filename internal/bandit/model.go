package bandit

import (
	"context"
	"errors"
	"time"
)

// Event types recorded in the ledger.
type EventType string

const (
	EventPick   EventType = "pick"
	EventReward EventType = "reward"
)

var (
	// ErrExperimentNotFound is returned for unknown experiment ids.
	ErrExperimentNotFound = errors.New("bandit experiment not found")

	// ErrInvalidExperiment is returned when an experiment is created
	// without any arms.
	ErrInvalidExperiment = errors.New("experiment needs at least one arm")

	// ErrInvalidEvent is returned for a reward event without a reward value
	// or an arm reference outside the experiment.
	ErrInvalidEvent = errors.New("invalid ledger event")

	// ErrNoArmsAvailable is returned when a policy is asked to choose from
	// an experiment with no arms.
	ErrNoArmsAvailable = errors.New("no arms available")

	// ErrUnknownPolicy is returned by ParsePolicy for unrecognized names.
	ErrUnknownPolicy = errors.New("unknown policy")

	// ErrNoExplanation is returned when an experiment has no explanation yet.
	ErrNoExplanation = errors.New("no explanation recorded")
)

// Experiment is a named bandit experiment owning a fixed set of arms.
type Experiment struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Arm is one selectable option. Arms are fixed at experiment creation;
// Position preserves creation order so tie-breaks are deterministic.
type Arm struct {
	ID           string  `json:"id"`
	ExperimentID string  `json:"experiment_id"`
	Label        string  `json:"label,omitempty"`
	Position     int     `json:"position"`
	PriorAlpha   float64 `json:"prior_alpha"`
	PriorBeta    float64 `json:"prior_beta"`
}

// Event is one immutable ledger entry. ArmID is a weak reference: it may be
// empty, and arm deletion nulls it rather than corrupting history.
type Event struct {
	ID           string    `json:"id"`
	ExperimentID string    `json:"experiment_id"`
	ArmID        string    `json:"arm_id,omitempty"`
	Type         EventType `json:"type"`
	Reward       *float64  `json:"reward,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Explanation is the generated rationale for a single pick. At most one is
// created per pick attempt; its absence is a valid degraded state.
type Explanation struct {
	ID           string         `json:"id"`
	ExperimentID string         `json:"experiment_id"`
	ArmID        string         `json:"arm_id"`
	Policy       string         `json:"policy"`
	Rationale    string         `json:"rationale"`
	Tokens       map[string]int `json:"tokens,omitempty"`
	LatencyMs    int64          `json:"latency_ms,omitempty"`
	Model        string         `json:"model,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ArmStats are the derived aggregates for one arm.
type ArmStats struct {
	ArmID         string  `json:"arm_id"`
	Label         string  `json:"label,omitempty"`
	Picks         int     `json:"picks"`
	TotalReward   float64 `json:"total_reward"`
	RewardCount   int     `json:"reward_count"`
	AverageReward float64 `json:"average_reward"`
}

// Stats holds per-arm aggregates in arm creation order, so "first
// encountered" is well defined for policy tie-breaks.
type Stats []ArmStats

// TotalPicks sums pick counts across all arms.
func (s Stats) TotalPicks() int {
	total := 0
	for _, a := range s {
		total += a.Picks
	}
	return total
}

// Store is the record store consumed by the ledger and orchestrator.
// Implementations must provide read-after-write visibility within one
// process and linearize AppendEvent per experiment.
type Store interface {
	CreateExperiment(ctx context.Context, exp *Experiment, arms []Arm) error
	GetExperiment(ctx context.Context, id string) (*Experiment, error)
	ListArms(ctx context.Context, experimentID string) ([]Arm, error)
	AppendEvent(ctx context.Context, ev *Event) error
	ListEvents(ctx context.Context, experimentID string) ([]Event, error)
	CreateExplanation(ctx context.Context, ex *Explanation) error
	LatestExplanation(ctx context.Context, experimentID string) (*Explanation, error)
}
