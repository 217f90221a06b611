package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Ayuboiii/AILAB/internal/bandit"
	"github.com/Ayuboiii/AILAB/internal/experiment"
)

func TestMemory_WorkItemLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	item := &experiment.WorkItem{
		ID:        "w-1",
		Kind:      experiment.KindChat,
		Status:    experiment.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.CreateWorkItem(ctx, item); err != nil {
		t.Fatalf("CreateWorkItem error = %v", err)
	}

	got, err := m.GetWorkItem(ctx, "w-1")
	if err != nil {
		t.Fatalf("GetWorkItem error = %v", err)
	}
	if got.Status != experiment.StatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}

	item.Status = experiment.StatusCompleted
	item.Result = "done"
	if err := m.UpdateWorkItem(ctx, item); err != nil {
		t.Fatalf("UpdateWorkItem error = %v", err)
	}
	got, err = m.GetWorkItem(ctx, "w-1")
	if err != nil {
		t.Fatalf("GetWorkItem error = %v", err)
	}
	if got.Status != experiment.StatusCompleted || got.Result != "done" {
		t.Errorf("after update = %+v", got)
	}
}

func TestMemory_WorkItemNotFound(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.GetWorkItem(ctx, "missing"); !errors.Is(err, experiment.ErrNotFound) {
		t.Errorf("GetWorkItem error = %v, want ErrNotFound", err)
	}
	err := m.UpdateWorkItem(ctx, &experiment.WorkItem{ID: "missing"})
	if !errors.Is(err, experiment.ErrNotFound) {
		t.Errorf("UpdateWorkItem error = %v, want ErrNotFound", err)
	}
}

func TestMemory_ListWorkItemsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		item := &experiment.WorkItem{
			ID:        fmt.Sprintf("w-%d", i),
			Kind:      experiment.KindChat,
			Status:    experiment.StatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := m.CreateWorkItem(ctx, item); err != nil {
			t.Fatalf("CreateWorkItem error = %v", err)
		}
	}

	items, err := m.ListWorkItems(ctx)
	if err != nil {
		t.Fatalf("ListWorkItems error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
	for i, wantID := range []string{"w-2", "w-1", "w-0"} {
		if items[i].ID != wantID {
			t.Errorf("items[%d].ID = %q, want %q", i, items[i].ID, wantID)
		}
	}
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	item := &experiment.WorkItem{ID: "w-1", Status: experiment.StatusPending, CreatedAt: time.Now().UTC()}
	if err := m.CreateWorkItem(ctx, item); err != nil {
		t.Fatalf("CreateWorkItem error = %v", err)
	}

	got, err := m.GetWorkItem(ctx, "w-1")
	if err != nil {
		t.Fatalf("GetWorkItem error = %v", err)
	}
	got.Status = experiment.StatusFailed

	again, err := m.GetWorkItem(ctx, "w-1")
	if err != nil {
		t.Fatalf("GetWorkItem error = %v", err)
	}
	if again.Status != experiment.StatusPending {
		t.Error("mutating a returned item leaked into the store")
	}
}

func seedBandit(t *testing.T, m *Memory) (string, []bandit.Arm) {
	t.Helper()
	exp := &bandit.Experiment{ID: "exp-1", Name: "test", CreatedAt: time.Now().UTC()}
	arms := []bandit.Arm{
		{ID: "arm-1", ExperimentID: exp.ID, Position: 0, PriorAlpha: 1, PriorBeta: 1},
		{ID: "arm-2", ExperimentID: exp.ID, Position: 1, PriorAlpha: 1, PriorBeta: 1},
	}
	if err := m.CreateExperiment(context.Background(), exp, arms); err != nil {
		t.Fatalf("CreateExperiment error = %v", err)
	}
	return exp.ID, arms
}

func TestMemory_ExperimentAndArms(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	expID, arms := seedBandit(t, m)

	exp, err := m.GetExperiment(ctx, expID)
	if err != nil {
		t.Fatalf("GetExperiment error = %v", err)
	}
	if exp.Name != "test" {
		t.Errorf("Name = %q", exp.Name)
	}

	got, err := m.ListArms(ctx, expID)
	if err != nil {
		t.Fatalf("ListArms error = %v", err)
	}
	if len(got) != len(arms) {
		t.Fatalf("len(arms) = %d, want %d", len(got), len(arms))
	}
	for i := range got {
		if got[i].ID != arms[i].ID || got[i].Position != i {
			t.Errorf("arms[%d] = %+v", i, got[i])
		}
	}

	if _, err := m.GetExperiment(ctx, "missing"); !errors.Is(err, bandit.ErrExperimentNotFound) {
		t.Errorf("GetExperiment error = %v, want ErrExperimentNotFound", err)
	}
	if _, err := m.ListArms(ctx, "missing"); !errors.Is(err, bandit.ErrExperimentNotFound) {
		t.Errorf("ListArms error = %v, want ErrExperimentNotFound", err)
	}
}

func TestMemory_EventsKeepAppendOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	expID, _ := seedBandit(t, m)

	for i := 0; i < 5; i++ {
		ev := &bandit.Event{
			ID:           fmt.Sprintf("ev-%d", i),
			ExperimentID: expID,
			ArmID:        "arm-1",
			Type:         bandit.EventPick,
			CreatedAt:    time.Now().UTC(),
		}
		if err := m.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent error = %v", err)
		}
	}

	events, err := m.ListEvents(ctx, expID)
	if err != nil {
		t.Fatalf("ListEvents error = %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("len(events) = %d, want 5", len(events))
	}
	for i, ev := range events {
		if ev.ID != fmt.Sprintf("ev-%d", i) {
			t.Errorf("events[%d].ID = %q, want ev-%d", i, ev.ID, i)
		}
	}
}

func TestMemory_AppendEventUnknownExperiment(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.AppendEvent(ctx, &bandit.Event{ID: "ev-1", ExperimentID: "missing", Type: bandit.EventPick})
	if !errors.Is(err, bandit.ErrExperimentNotFound) {
		t.Errorf("AppendEvent error = %v, want ErrExperimentNotFound", err)
	}
}

func TestMemory_LatestExplanation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	expID, _ := seedBandit(t, m)

	if _, err := m.LatestExplanation(ctx, expID); !errors.Is(err, bandit.ErrNoExplanation) {
		t.Fatalf("LatestExplanation error = %v, want ErrNoExplanation", err)
	}

	for i := 0; i < 2; i++ {
		ex := &bandit.Explanation{
			ID:           fmt.Sprintf("ex-%d", i),
			ExperimentID: expID,
			ArmID:        "arm-1",
			Policy:       bandit.PolicyUCB,
			Rationale:    fmt.Sprintf("rationale %d", i),
			CreatedAt:    time.Now().UTC(),
		}
		if err := m.CreateExplanation(ctx, ex); err != nil {
			t.Fatalf("CreateExplanation error = %v", err)
		}
	}

	latest, err := m.LatestExplanation(ctx, expID)
	if err != nil {
		t.Fatalf("LatestExplanation error = %v", err)
	}
	if latest.ID != "ex-1" {
		t.Errorf("latest.ID = %q, want ex-1", latest.ID)
	}
}
