package bandit

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Ayuboiii/AILAB/internal/explain"
	pkgotel "github.com/Ayuboiii/AILAB/pkg/otel"
)

type fakeExplainer struct {
	calls  int
	result *explain.Result
	err    error
}

func (f *fakeExplainer) Explain(_ context.Context, _ string) (*explain.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestOrchestrator(store Store, explainer Explainer) *Orchestrator {
	return NewOrchestrator(store, explainer, nil, nil, rand.New(rand.NewSource(7)))
}

func TestOrchestrator_CreateExperiment(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	orch := newTestOrchestrator(store, nil)

	exp, arms, err := orch.CreateExperiment(ctx, "homepage", []string{"control", "variant"}, 0)
	if err != nil {
		t.Fatalf("CreateExperiment error = %v", err)
	}
	if exp.ID == "" {
		t.Error("experiment id is empty")
	}
	if len(arms) != 2 {
		t.Fatalf("len(arms) = %d, want 2", len(arms))
	}
	for i, arm := range arms {
		if arm.ExperimentID != exp.ID {
			t.Errorf("arm %d ExperimentID = %q, want %q", i, arm.ExperimentID, exp.ID)
		}
		if arm.Position != i {
			t.Errorf("arm %d Position = %d, want %d", i, arm.Position, i)
		}
		if arm.PriorAlpha != 1 || arm.PriorBeta != 1 {
			t.Errorf("arm %d priors = (%g, %g), want (1, 1)", i, arm.PriorAlpha, arm.PriorBeta)
		}
	}
	if arms[0].Label != "control" || arms[1].Label != "variant" {
		t.Errorf("labels = %q, %q", arms[0].Label, arms[1].Label)
	}
}

func TestOrchestrator_CreateExperiment_Unlabeled(t *testing.T) {
	ctx := context.Background()
	orch := newTestOrchestrator(newFakeStore(), nil)

	_, arms, err := orch.CreateExperiment(ctx, "n-arm", nil, 3)
	if err != nil {
		t.Fatalf("CreateExperiment error = %v", err)
	}
	if len(arms) != 3 {
		t.Fatalf("len(arms) = %d, want 3", len(arms))
	}
}

func TestOrchestrator_CreateExperiment_NoArms(t *testing.T) {
	ctx := context.Background()
	orch := newTestOrchestrator(newFakeStore(), nil)

	if _, _, err := orch.CreateExperiment(ctx, "empty", nil, 0); !errors.Is(err, ErrInvalidExperiment) {
		t.Fatalf("CreateExperiment error = %v, want ErrInvalidExperiment", err)
	}
}

func TestOrchestrator_PickAppendsEvent(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	orch := newTestOrchestrator(store, nil)

	exp, arms, err := orch.CreateExperiment(ctx, "test", nil, 2)
	if err != nil {
		t.Fatalf("CreateExperiment error = %v", err)
	}

	res, err := orch.Pick(ctx, exp.ID, EpsilonGreedy{Epsilon: 0})
	if err != nil {
		t.Fatalf("Pick error = %v", err)
	}
	// With no rewards every arm ties at zero, so exploitation takes the
	// first arm in creation order.
	if res.ArmID != arms[0].ID {
		t.Errorf("Pick = %q, want first arm %q", res.ArmID, arms[0].ID)
	}
	if res.Policy != PolicyEpsilonGreedy {
		t.Errorf("Policy = %q, want %q", res.Policy, PolicyEpsilonGreedy)
	}

	events := store.events[exp.ID]
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].Type != EventPick || events[0].ArmID != res.ArmID {
		t.Errorf("event = %+v, want pick of %q", events[0], res.ArmID)
	}
}

func TestOrchestrator_RewardSteersGreedyPick(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	orch := newTestOrchestrator(store, nil)

	exp, arms, err := orch.CreateExperiment(ctx, "test", nil, 2)
	if err != nil {
		t.Fatalf("CreateExperiment error = %v", err)
	}

	if err := orch.LogReward(ctx, exp.ID, arms[1].ID, 1); err != nil {
		t.Fatalf("LogReward error = %v", err)
	}

	res, err := orch.Pick(ctx, exp.ID, EpsilonGreedy{Epsilon: 0})
	if err != nil {
		t.Fatalf("Pick error = %v", err)
	}
	if res.ArmID != arms[1].ID {
		t.Errorf("Pick = %q, want rewarded arm %q", res.ArmID, arms[1].ID)
	}
}

func TestOrchestrator_PickUnknownExperiment(t *testing.T) {
	ctx := context.Background()
	orch := newTestOrchestrator(newFakeStore(), nil)

	if _, err := orch.Pick(ctx, "missing", EpsilonGreedy{}); !errors.Is(err, ErrExperimentNotFound) {
		t.Fatalf("Pick error = %v, want ErrExperimentNotFound", err)
	}
}

func TestOrchestrator_ExplainerFailureDoesNotFailPick(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	explainer := &fakeExplainer{err: errors.New("model offline")}
	orch := newTestOrchestrator(store, explainer)

	exp, _, err := orch.CreateExperiment(ctx, "test", nil, 2)
	if err != nil {
		t.Fatalf("CreateExperiment error = %v", err)
	}

	if _, err := orch.Pick(ctx, exp.ID, EpsilonGreedy{Epsilon: 0}); err != nil {
		t.Fatalf("Pick error = %v, want nil despite explainer failure", err)
	}
	if explainer.calls != 1 {
		t.Errorf("explainer calls = %d, want 1", explainer.calls)
	}
	if _, err := orch.LatestExplanation(ctx, exp.ID); !errors.Is(err, ErrNoExplanation) {
		t.Errorf("LatestExplanation error = %v, want ErrNoExplanation", err)
	}
}

func TestOrchestrator_ExplanationPersisted(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	explainer := &fakeExplainer{result: &explain.Result{
		Text:      "arm leads on average reward",
		Tokens:    map[string]int{"total_tokens": 42},
		LatencyMs: 120,
		Model:     "llama3.1-8b",
	}}
	orch := newTestOrchestrator(store, explainer)

	exp, arms, err := orch.CreateExperiment(ctx, "test", nil, 1)
	if err != nil {
		t.Fatalf("CreateExperiment error = %v", err)
	}

	res, err := orch.Pick(ctx, exp.ID, mustPolicy(t, PolicyThompson))
	if err != nil {
		t.Fatalf("Pick error = %v", err)
	}

	ex, err := orch.LatestExplanation(ctx, exp.ID)
	if err != nil {
		t.Fatalf("LatestExplanation error = %v", err)
	}
	if ex.Rationale != "arm leads on average reward" {
		t.Errorf("Rationale = %q", ex.Rationale)
	}
	if ex.ArmID != res.ArmID || ex.ArmID != arms[0].ID {
		t.Errorf("ArmID = %q, want %q", ex.ArmID, arms[0].ID)
	}
	if ex.Policy != PolicyThompson {
		t.Errorf("Policy = %q, want %q", ex.Policy, PolicyThompson)
	}
	if ex.Model != "llama3.1-8b" || ex.LatencyMs != 120 {
		t.Errorf("explanation metadata = %+v", ex)
	}
}

// mustPolicy parses a policy name, failing the test on error.
func mustPolicy(t *testing.T, name string) Policy {
	t.Helper()
	p, err := ParsePolicy(name, nil)
	if err != nil {
		t.Fatalf("ParsePolicy(%q) error = %v", name, err)
	}
	return p
}

func withSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return sr
}

func TestOrchestrator_PickSpanAttributes(t *testing.T) {
	sr := withSpanRecorder(t)
	ctx := context.Background()
	orch := newTestOrchestrator(newFakeStore(), nil)

	exp, arms, err := orch.CreateExperiment(ctx, "test", nil, 1)
	if err != nil {
		t.Fatalf("CreateExperiment error = %v", err)
	}
	if _, err := orch.Pick(ctx, exp.ID, EpsilonGreedy{Epsilon: 0}); err != nil {
		t.Fatalf("Pick error = %v", err)
	}

	spans := sr.Ended()
	if len(spans) != 1 || spans[0].Name() != "bandit.pick" {
		t.Fatalf("spans = %d, want one bandit.pick span", len(spans))
	}
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[string(pkgotel.AttrExperimentID)] != exp.ID {
		t.Errorf("experiment attribute = %q, want %q", attrs[string(pkgotel.AttrExperimentID)], exp.ID)
	}
	if attrs[string(pkgotel.AttrPolicy)] != PolicyEpsilonGreedy {
		t.Errorf("policy attribute = %q", attrs[string(pkgotel.AttrPolicy)])
	}
	if attrs[string(pkgotel.AttrArmID)] != arms[0].ID {
		t.Errorf("arm attribute = %q, want %q", attrs[string(pkgotel.AttrArmID)], arms[0].ID)
	}
}

func TestOrchestrator_PickSpanRecordsError(t *testing.T) {
	sr := withSpanRecorder(t)
	orch := newTestOrchestrator(newFakeStore(), nil)

	if _, err := orch.Pick(context.Background(), "missing", EpsilonGreedy{}); !errors.Is(err, ErrExperimentNotFound) {
		t.Fatalf("Pick error = %v, want ErrExperimentNotFound", err)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if status := spans[0].Status(); status.Code != codes.Error {
		t.Errorf("span status = %v, want Error", status.Code)
	}
	if events := spans[0].Events(); len(events) == 0 {
		t.Error("span has no recorded error event")
	}
}

func TestDecisionContext_MentionsInputs(t *testing.T) {
	stats := Stats{{ArmID: "arm-1", Picks: 2, AverageReward: 0.5}}
	text := decisionContext("exp-1", "arm-1", EpsilonGreedy{Epsilon: 0.2}, stats)
	for _, want := range []string{"exp-1", "arm-1", PolicyEpsilonGreedy, "epsilon=0.2"} {
		if !strings.Contains(text, want) {
			t.Errorf("decision context missing %q:\n%s", want, text)
		}
	}
}
