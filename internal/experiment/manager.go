package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/Ayuboiii/AILAB/internal/inference"
	"github.com/Ayuboiii/AILAB/internal/metrics"
	"github.com/Ayuboiii/AILAB/internal/notify"
	pkgotel "github.com/Ayuboiii/AILAB/pkg/otel"
)

const codeFence = "```"

const codeAnalysisPrompt = `Thoroughly explain the following code and add detailed comments:

` + codeFence + `
%s
` + codeFence + `

Please provide:
1. A comprehensive explanation of what the code does
2. Line-by-line comments explaining key parts
3. Any potential improvements or issues you notice
4. The code with detailed inline comments added`

// ErrInvalidInput is returned at submission for payloads missing the
// fields their kind requires.
var ErrInvalidInput = errors.New("invalid work item input")

// Config tunes the manager.
type Config struct {
	Workers          int           // default 4
	QueueSize        int           // default 64
	ExecutionTimeout time.Duration // default 2 minutes
	DefaultModel     string        // model used when a kind does not pin one
}

// Manager owns the work item state machine. Submission creates the record
// and schedules background execution; exactly one execution attempt runs
// per item, and every transition notifies the observer.
type Manager struct {
	store    Store
	notifier notify.Notifier
	caller   inference.Caller // nil when no credential is configured
	pool     *Pool
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cfg      Config
}

// NewManager wires the lifecycle path. caller may be nil: submissions are
// still accepted and fail during execution, matching the contract that
// execution errors surface only through the terminal state.
func NewManager(store Store, notifier notify.Notifier, caller inference.Caller, m *metrics.Metrics, logger *slog.Logger, cfg Config) *Manager {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = &notify.LogNotifier{Logger: logger}
	}
	return &Manager{
		store:    store,
		notifier: notifier,
		caller:   caller,
		pool:     NewPool(cfg.Workers, cfg.QueueSize),
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
	}
}

// Close stops the worker pool, waiting for in-flight executions.
func (m *Manager) Close() { m.pool.Stop() }

// Submit validates the payload, creates the record as pending, and
// schedules execution. It returns without waiting for the running or
// terminal state. A saturated queue fails with ErrBusy before any record
// is created.
func (m *Manager) Submit(ctx context.Context, kind Kind, input json.RawMessage) (*WorkItem, error) {
	req, err := buildRequest(kind, input, m.cfg.DefaultModel)
	if err != nil {
		return nil, err
	}

	if !m.pool.TryAcquire() {
		if m.metrics != nil {
			m.metrics.SubmissionsBusy.Inc()
		}
		return nil, ErrBusy
	}

	item := &WorkItem{
		ID:        uuid.NewString(),
		Kind:      kind,
		Input:     input,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.CreateWorkItem(ctx, item); err != nil {
		m.pool.Release()
		return nil, fmt.Errorf("create work item: %w", err)
	}
	if m.metrics != nil {
		m.metrics.SubmissionsTotal.WithLabelValues(string(kind)).Inc()
	}

	snapshot := *item
	m.pool.Submit(func(taskCtx context.Context) {
		m.execute(taskCtx, &snapshot, req)
	})
	return item, nil
}

// Get returns one work item by id.
func (m *Manager) Get(ctx context.Context, id string) (*WorkItem, error) {
	return m.store.GetWorkItem(ctx, id)
}

// List returns all work items, newest first.
func (m *Manager) List(ctx context.Context) ([]WorkItem, error) {
	return m.store.ListWorkItems(ctx)
}

// execute runs the single execution attempt: running, then the external
// call, then the terminal transition. Errors are captured verbatim into
// the record; nothing propagates back to the submitter.
func (m *Manager) execute(ctx context.Context, item *WorkItem, req inference.Request) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ExecutionTimeout)
	defer cancel()

	ctx, span := otel.Tracer("experiment").Start(ctx, "experiment.execute")
	defer span.End()
	span.SetAttributes(
		pkgotel.AttrWorkItemID.String(item.ID),
		pkgotel.AttrWorkItemKind.String(string(item.Kind)),
	)

	m.transition(ctx, item, StatusRunning)

	start := time.Now()
	var completion *inference.Completion
	var err error
	if m.caller == nil {
		err = errors.New("inference API key not configured")
	} else {
		completion, err = m.caller.Complete(ctx, req)
	}
	if m.metrics != nil {
		m.metrics.ExecutionSeconds.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		pkgotel.RecordError(span, err)
		item.Error = err.Error()
		m.transition(ctx, item, StatusFailed)
		return
	}
	item.Result = completion.Text
	m.transition(ctx, item, StatusCompleted)
}

// transitionTimeout bounds the store write and notification for one
// transition, independent of the execution deadline.
const transitionTimeout = 10 * time.Second

// transition persists the new status and notifies the observer. Store and
// notification failures are logged; they never roll the transition back.
// The context is detached from the caller's cancellation: an expired
// execution deadline is itself a failure to record, so it must not stop
// the terminal state from being persisted or announced.
func (m *Manager) transition(ctx context.Context, item *WorkItem, status Status) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), transitionTimeout)
	defer cancel()

	item.Status = status
	if err := m.store.UpdateWorkItem(ctx, item); err != nil {
		m.logger.Error("failed to persist transition",
			"work_item_id", item.ID, "status", status, "error", err)
	}
	if m.metrics != nil {
		m.metrics.TransitionsTotal.WithLabelValues(string(status)).Inc()
	}
	if err := m.notifier.Notify(ctx, notify.EventExperimentUpdated, item.Snapshot()); err != nil {
		if m.metrics != nil {
			m.metrics.NotifyErrors.Inc()
		}
		m.logger.Warn("observer notification failed",
			"work_item_id", item.ID, "status", status, "error", err)
	}
}

// buildRequest maps a kind and its payload onto a completion request.
func buildRequest(kind Kind, input json.RawMessage, model string) (inference.Request, error) {
	switch kind {
	case KindCodeAnalysis:
		var payload struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal(input, &payload); err != nil || payload.Code == "" {
			return inference.Request{}, fmt.Errorf("%w: %s requires a non-empty \"code\" field", ErrInvalidInput, kind)
		}
		return inference.Request{
			Messages: []inference.Message{
				{Role: inference.RoleUser, Content: fmt.Sprintf(codeAnalysisPrompt, payload.Code)},
			},
			Model:       model,
			MaxTokens:   2000,
			Temperature: 0.1,
		}, nil
	case KindChat:
		var payload struct {
			Prompt string `json:"prompt"`
		}
		if err := json.Unmarshal(input, &payload); err != nil || payload.Prompt == "" {
			return inference.Request{}, fmt.Errorf("%w: %s requires a non-empty \"prompt\" field", ErrInvalidInput, kind)
		}
		return inference.Request{
			Messages: []inference.Message{
				{Role: inference.RoleUser, Content: payload.Prompt},
			},
			Model:       model,
			MaxTokens:   1000,
			Temperature: 0.7,
		}, nil
	default:
		return inference.Request{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
