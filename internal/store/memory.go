// Package store provides the record store implementations behind the
// experiment.Store and bandit.Store contracts: an in-process memory store
// and a Postgres store.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Ayuboiii/AILAB/internal/bandit"
	"github.com/Ayuboiii/AILAB/internal/experiment"
)

// Memory is a mutex-guarded in-process store. Events are held in insertion
// order per experiment, which linearizes appends and makes derived stats a
// pure function of the sequence.
type Memory struct {
	mu           sync.RWMutex
	workItems    map[string]experiment.WorkItem
	workOrder    []string // insertion order of work item ids
	experiments  map[string]bandit.Experiment
	arms         map[string][]bandit.Arm // experiment id -> arms by position
	events       map[string][]bandit.Event
	explanations map[string][]bandit.Explanation
}

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{
		workItems:    make(map[string]experiment.WorkItem),
		experiments:  make(map[string]bandit.Experiment),
		arms:         make(map[string][]bandit.Arm),
		events:       make(map[string][]bandit.Event),
		explanations: make(map[string][]bandit.Explanation),
	}
}

func (m *Memory) Close() error { return nil }

// --- experiment.Store ---

func (m *Memory) CreateWorkItem(ctx context.Context, item *experiment.WorkItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workItems[item.ID] = *item
	m.workOrder = append(m.workOrder, item.ID)
	return nil
}

func (m *Memory) GetWorkItem(ctx context.Context, id string) (*experiment.WorkItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.workItems[id]
	if !ok {
		return nil, experiment.ErrNotFound
	}
	return &item, nil
}

func (m *Memory) ListWorkItems(ctx context.Context) ([]experiment.WorkItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]experiment.WorkItem, 0, len(m.workOrder))
	for _, id := range m.workOrder {
		items = append(items, m.workItems[id])
	}
	// Newest first; insertion order breaks creation-time ties.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (m *Memory) UpdateWorkItem(ctx context.Context, item *experiment.WorkItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workItems[item.ID]; !ok {
		return experiment.ErrNotFound
	}
	m.workItems[item.ID] = *item
	return nil
}

// --- bandit.Store ---

func (m *Memory) CreateExperiment(ctx context.Context, exp *bandit.Experiment, arms []bandit.Arm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.experiments[exp.ID] = *exp
	m.arms[exp.ID] = append([]bandit.Arm(nil), arms...)
	return nil
}

func (m *Memory) GetExperiment(ctx context.Context, id string) (*bandit.Experiment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	exp, ok := m.experiments[id]
	if !ok {
		return nil, bandit.ErrExperimentNotFound
	}
	return &exp, nil
}

func (m *Memory) ListArms(ctx context.Context, experimentID string) ([]bandit.Arm, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.experiments[experimentID]; !ok {
		return nil, bandit.ErrExperimentNotFound
	}
	return append([]bandit.Arm(nil), m.arms[experimentID]...), nil
}

func (m *Memory) AppendEvent(ctx context.Context, ev *bandit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.experiments[ev.ExperimentID]; !ok {
		return bandit.ErrExperimentNotFound
	}
	m.events[ev.ExperimentID] = append(m.events[ev.ExperimentID], *ev)
	return nil
}

func (m *Memory) ListEvents(ctx context.Context, experimentID string) ([]bandit.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.experiments[experimentID]; !ok {
		return nil, bandit.ErrExperimentNotFound
	}
	return append([]bandit.Event(nil), m.events[experimentID]...), nil
}

func (m *Memory) CreateExplanation(ctx context.Context, ex *bandit.Explanation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.experiments[ex.ExperimentID]; !ok {
		return bandit.ErrExperimentNotFound
	}
	m.explanations[ex.ExperimentID] = append(m.explanations[ex.ExperimentID], *ex)
	return nil
}

func (m *Memory) LatestExplanation(ctx context.Context, experimentID string) (*bandit.Explanation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.explanations[experimentID]
	if len(list) == 0 {
		return nil, bandit.ErrNoExplanation
	}
	latest := list[len(list)-1]
	return &latest, nil
}
