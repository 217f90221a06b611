package bandit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ayuboiii/AILAB/internal/explain"
	"github.com/Ayuboiii/AILAB/internal/metrics"
	pkgotel "github.com/Ayuboiii/AILAB/pkg/otel"
)

// Explainer produces a natural-language rationale for a decision context.
// *explain.Client satisfies it.
type Explainer interface {
	Explain(ctx context.Context, contextText string) (*explain.Result, error)
}

// Orchestrator composes ledger, policy engine, and explanation client for
// each decision request.
type Orchestrator struct {
	ledger    *Ledger
	store     Store
	explainer Explainer // nil disables explanations
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewOrchestrator wires the decision path. explainer and m may be nil.
// rng must not be shared; pass a seeded source for deterministic tests.
func NewOrchestrator(store Store, explainer Explainer, m *metrics.Metrics, logger *slog.Logger, rng *rand.Rand) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Orchestrator{
		ledger:    NewLedger(store),
		store:     store,
		explainer: explainer,
		metrics:   m,
		logger:    logger,
		rng:       rng,
	}
}

// Ledger exposes the reward ledger for stats reads.
func (o *Orchestrator) Ledger() *Ledger { return o.ledger }

// CreateExperiment creates an experiment with its fixed arm set. Pass
// labels for labeled arms, or numArms > 0 for unlabeled ones.
func (o *Orchestrator) CreateExperiment(ctx context.Context, name string, labels []string, numArms int) (*Experiment, []Arm, error) {
	if len(labels) == 0 {
		if numArms < 1 {
			return nil, nil, ErrInvalidExperiment
		}
		labels = make([]string, numArms)
	}

	exp := &Experiment{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	arms := make([]Arm, len(labels))
	for i, label := range labels {
		arms[i] = Arm{
			ID:           uuid.NewString(),
			ExperimentID: exp.ID,
			Label:        label,
			Position:     i,
			PriorAlpha:   1,
			PriorBeta:    1,
		}
	}
	if err := o.store.CreateExperiment(ctx, exp, arms); err != nil {
		return nil, nil, fmt.Errorf("create experiment: %w", err)
	}
	return exp, arms, nil
}

// PickResult is the decision response.
type PickResult struct {
	ArmID  string
	Policy string
}

// Pick selects an arm for the experiment using the given policy. The pick
// event is appended before returning; the explanation is best-effort and
// never fails the pick.
func (o *Orchestrator) Pick(ctx context.Context, experimentID string, policy Policy) (*PickResult, error) {
	ctx, span := otel.Tracer("bandit").Start(ctx, "bandit.pick")
	defer span.End()
	span.SetAttributes(
		pkgotel.AttrExperimentID.String(experimentID),
		pkgotel.AttrPolicy.String(policy.Name()),
	)

	stats, err := o.ledger.StatsFor(ctx, experimentID)
	if err != nil {
		pkgotel.RecordError(span, err)
		return nil, err
	}
	if len(stats) == 0 {
		pkgotel.RecordError(span, ErrNoArmsAvailable)
		return nil, ErrNoArmsAvailable
	}

	o.mu.Lock()
	armID, err := policy.Choose(o.rng, stats)
	o.mu.Unlock()
	if err != nil {
		pkgotel.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(pkgotel.AttrArmID.String(armID))

	if _, err := o.ledger.Append(ctx, experimentID, armID, EventPick, nil); err != nil {
		pkgotel.RecordError(span, err)
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.PicksTotal.WithLabelValues(policy.Name()).Inc()
	}

	o.explainPick(ctx, experimentID, armID, policy, stats)

	return &PickResult{ArmID: armID, Policy: policy.Name()}, nil
}

// LogReward appends a reward event for the arm. Range validation beyond
// arm existence is delegated to the ledger.
func (o *Orchestrator) LogReward(ctx context.Context, experimentID, armID string, reward float64) error {
	if _, err := o.ledger.Append(ctx, experimentID, armID, EventReward, &reward); err != nil {
		return err
	}
	if o.metrics != nil {
		o.metrics.RewardsTotal.Inc()
	}
	return nil
}

// LatestExplanation returns the most recent explanation for the experiment,
// or ErrNoExplanation when none has been recorded.
func (o *Orchestrator) LatestExplanation(ctx context.Context, experimentID string) (*Explanation, error) {
	return o.store.LatestExplanation(ctx, experimentID)
}

// explainPick asks the explanation client to justify the choice and
// persists the result. Failures are logged and counted, nothing more: a
// missing explanation is a valid degraded state.
func (o *Orchestrator) explainPick(ctx context.Context, experimentID, armID string, policy Policy, stats Stats) {
	if o.explainer == nil {
		return
	}

	result, err := o.explainer.Explain(ctx, decisionContext(experimentID, armID, policy, stats))
	if err != nil {
		if o.metrics != nil {
			o.metrics.ExplanationFailures.Inc()
		}
		o.logger.Warn("pick explanation unavailable",
			"experiment_id", experimentID, "arm_id", armID, "error", err)
		return
	}
	if o.metrics != nil {
		o.metrics.ExplanationLatency.Observe(float64(result.LatencyMs) / 1000)
	}
	trace.SpanFromContext(ctx).SetAttributes(pkgotel.AttrLatencyMs.Int64(result.LatencyMs))

	ex := &Explanation{
		ID:           uuid.NewString(),
		ExperimentID: experimentID,
		ArmID:        armID,
		Policy:       policy.Name(),
		Rationale:    result.Text,
		Tokens:       result.Tokens,
		LatencyMs:    result.LatencyMs,
		Model:        result.Model,
		CreatedAt:    time.Now().UTC(),
	}
	if err := o.store.CreateExplanation(ctx, ex); err != nil {
		o.logger.Warn("failed to persist explanation",
			"experiment_id", experimentID, "error", err)
	}
}

// decisionContext renders the decision inputs for the explanation prompt.
func decisionContext(experimentID, armID string, policy Policy, stats Stats) string {
	snapshot, _ := json.Marshal(stats)
	var params string
	if eg, ok := policy.(EpsilonGreedy); ok {
		params = fmt.Sprintf(" (epsilon=%g)", eg.Epsilon)
	}
	return fmt.Sprintf(
		"Experiment %s used the %s policy%s and chose arm %s.\nPer-arm statistics: %s\nExplain why this choice is reasonable given the statistics.",
		experimentID, policy.Name(), params, armID, snapshot)
}
