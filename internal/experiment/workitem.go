// Package experiment owns the lifecycle of dispatched work: a pending →
// running → {completed|failed} state machine executed on a bounded worker
// pool, with observer notification on every transition.
package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Status is the lifecycle state of a work item. Transitions are monotonic
// along pending → running → {completed|failed}; terminal states are final.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Kind is the task type of a work item.
type Kind string

const (
	KindCodeAnalysis Kind = "code_analysis"
	KindChat         Kind = "chat"
)

var (
	// ErrNotFound is returned for unknown work item ids.
	ErrNotFound = errors.New("work item not found")

	// ErrBusy is returned when the worker queue is saturated; no record is
	// created for the rejected submission.
	ErrBusy = errors.New("worker queue is full")

	// ErrUnknownKind is returned at submission for unsupported task kinds.
	ErrUnknownKind = errors.New("unknown work item kind")
)

// WorkItem is one unit of dispatched work.
type WorkItem struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Input     json.RawMessage `json:"input"`
	Status    Status          `json:"status"`
	Result    string          `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Snapshot renders the item as the flat field map sent to observers.
func (w *WorkItem) Snapshot() map[string]any {
	var input any
	if len(w.Input) > 0 {
		_ = json.Unmarshal(w.Input, &input)
	}
	return map[string]any{
		"id":         w.ID,
		"kind":       string(w.Kind),
		"status":     string(w.Status),
		"input":      input,
		"result":     w.Result,
		"error":      w.Error,
		"created_at": w.CreatedAt.Format(time.RFC3339Nano),
	}
}

// Store persists work items. Implementations must provide read-after-write
// visibility within one process; updates are last-write-wins.
type Store interface {
	CreateWorkItem(ctx context.Context, item *WorkItem) error
	GetWorkItem(ctx context.Context, id string) (*WorkItem, error)
	// ListWorkItems returns items ordered by creation time descending.
	ListWorkItems(ctx context.Context) ([]WorkItem, error)
	UpdateWorkItem(ctx context.Context, item *WorkItem) error
}
