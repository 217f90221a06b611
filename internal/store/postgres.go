package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ayuboiii/AILAB/internal/bandit"
	"github.com/Ayuboiii/AILAB/internal/experiment"
)

// Postgres is a pgx-backed store. The bandit_events serial column
// linearizes appends per experiment; reads order by it so statistics
// always reflect insertion order.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a pool and verifies the connection.
func NewPostgres(connStr string) (*Postgres, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// ApplySchema creates all tables and indexes.
func (p *Postgres) ApplySchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, Schema)
	return err
}

// TableCount pairs a table name with its current row count.
type TableCount struct {
	Table string
	Rows  int64
}

// TableCounts reports row counts for every table in the schema.
func (p *Postgres) TableCounts(ctx context.Context) ([]TableCount, error) {
	tables := []string{
		"work_items",
		"bandit_experiments",
		"bandit_arms",
		"bandit_events",
		"bandit_explanations",
	}
	counts := make([]TableCount, 0, len(tables))
	for _, table := range tables {
		var rows int64
		if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&rows); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts = append(counts, TableCount{Table: table, Rows: rows})
	}
	return counts, nil
}

// --- experiment.Store ---

func (p *Postgres) CreateWorkItem(ctx context.Context, item *experiment.WorkItem) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO work_items (id, kind, input, status, result, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID, string(item.Kind), []byte(item.Input), string(item.Status),
		nullable(item.Result), nullable(item.Error), item.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert work item: %w", err)
	}
	return nil
}

func (p *Postgres) GetWorkItem(ctx context.Context, id string) (*experiment.WorkItem, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, kind, input, status, result, error, created_at
		FROM work_items WHERE id = $1`, id)
	item, err := scanWorkItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, experiment.ErrNotFound
		}
		return nil, fmt.Errorf("query work item: %w", err)
	}
	return item, nil
}

func (p *Postgres) ListWorkItems(ctx context.Context) ([]experiment.WorkItem, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, kind, input, status, result, error, created_at
		FROM work_items ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query work items: %w", err)
	}
	defer rows.Close()

	var items []experiment.WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (p *Postgres) UpdateWorkItem(ctx context.Context, item *experiment.WorkItem) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE work_items SET status = $2, result = $3, error = $4
		WHERE id = $1`,
		item.ID, string(item.Status), nullable(item.Result), nullable(item.Error))
	if err != nil {
		return fmt.Errorf("update work item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return experiment.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkItem(row rowScanner) (*experiment.WorkItem, error) {
	var (
		item            experiment.WorkItem
		kind, status    string
		input           []byte
		result, errText *string
	)
	if err := row.Scan(&item.ID, &kind, &input, &status, &result, &errText, &item.CreatedAt); err != nil {
		return nil, err
	}
	item.Kind = experiment.Kind(kind)
	item.Status = experiment.Status(status)
	item.Input = json.RawMessage(input)
	if result != nil {
		item.Result = *result
	}
	if errText != nil {
		item.Error = *errText
	}
	return &item, nil
}

// --- bandit.Store ---

func (p *Postgres) CreateExperiment(ctx context.Context, exp *bandit.Experiment, arms []bandit.Arm) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO bandit_experiments (id, name, created_at) VALUES ($1, $2, $3)`,
		exp.ID, nullable(exp.Name), exp.CreatedAt); err != nil {
		return fmt.Errorf("insert experiment: %w", err)
	}
	for _, arm := range arms {
		if _, err := tx.Exec(ctx, `
			INSERT INTO bandit_arms (id, experiment_id, label, position, prior_alpha, prior_beta)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			arm.ID, arm.ExperimentID, nullable(arm.Label), arm.Position, arm.PriorAlpha, arm.PriorBeta); err != nil {
			return fmt.Errorf("insert arm: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (p *Postgres) GetExperiment(ctx context.Context, id string) (*bandit.Experiment, error) {
	var (
		exp  bandit.Experiment
		name *string
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, created_at FROM bandit_experiments WHERE id = $1`, id).
		Scan(&exp.ID, &name, &exp.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bandit.ErrExperimentNotFound
		}
		return nil, fmt.Errorf("query experiment: %w", err)
	}
	if name != nil {
		exp.Name = *name
	}
	return &exp, nil
}

func (p *Postgres) ListArms(ctx context.Context, experimentID string) ([]bandit.Arm, error) {
	if _, err := p.GetExperiment(ctx, experimentID); err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, experiment_id, label, position, prior_alpha, prior_beta
		FROM bandit_arms WHERE experiment_id = $1 ORDER BY position`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("query arms: %w", err)
	}
	defer rows.Close()

	var arms []bandit.Arm
	for rows.Next() {
		var (
			arm   bandit.Arm
			label *string
		)
		if err := rows.Scan(&arm.ID, &arm.ExperimentID, &label, &arm.Position, &arm.PriorAlpha, &arm.PriorBeta); err != nil {
			return nil, fmt.Errorf("scan arm: %w", err)
		}
		if label != nil {
			arm.Label = *label
		}
		arms = append(arms, arm)
	}
	return arms, rows.Err()
}

func (p *Postgres) AppendEvent(ctx context.Context, ev *bandit.Event) error {
	tag, err := p.pool.Exec(ctx, `
		INSERT INTO bandit_events (id, experiment_id, arm_id, type, reward, created_at)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE EXISTS (SELECT 1 FROM bandit_experiments WHERE id = $2)`,
		ev.ID, ev.ExperimentID, nullable(ev.ArmID), string(ev.Type), ev.Reward, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return bandit.ErrExperimentNotFound
	}
	return nil
}

func (p *Postgres) ListEvents(ctx context.Context, experimentID string) ([]bandit.Event, error) {
	if _, err := p.GetExperiment(ctx, experimentID); err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, experiment_id, arm_id, type, reward, created_at
		FROM bandit_events WHERE experiment_id = $1 ORDER BY seq`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []bandit.Event
	for rows.Next() {
		var (
			ev    bandit.Event
			armID *string
			typ   string
		)
		if err := rows.Scan(&ev.ID, &ev.ExperimentID, &armID, &typ, &ev.Reward, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if armID != nil {
			ev.ArmID = *armID
		}
		ev.Type = bandit.EventType(typ)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (p *Postgres) CreateExplanation(ctx context.Context, ex *bandit.Explanation) error {
	var tokens []byte
	if ex.Tokens != nil {
		var err error
		tokens, err = json.Marshal(ex.Tokens)
		if err != nil {
			return fmt.Errorf("marshal tokens: %w", err)
		}
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO bandit_explanations (id, experiment_id, arm_id, policy, rationale, tokens, latency_ms, model, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ex.ID, ex.ExperimentID, nullable(ex.ArmID), ex.Policy, ex.Rationale,
		tokens, ex.LatencyMs, nullable(ex.Model), ex.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert explanation: %w", err)
	}
	return nil
}

func (p *Postgres) LatestExplanation(ctx context.Context, experimentID string) (*bandit.Explanation, error) {
	var (
		ex        bandit.Explanation
		armID     *string
		tokens    []byte
		latencyMs *int64
		model     *string
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, experiment_id, arm_id, policy, rationale, tokens, latency_ms, model, created_at
		FROM bandit_explanations WHERE experiment_id = $1
		ORDER BY created_at DESC LIMIT 1`, experimentID).
		Scan(&ex.ID, &ex.ExperimentID, &armID, &ex.Policy, &ex.Rationale, &tokens, &latencyMs, &model, &ex.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bandit.ErrNoExplanation
		}
		return nil, fmt.Errorf("query explanation: %w", err)
	}
	if armID != nil {
		ex.ArmID = *armID
	}
	if latencyMs != nil {
		ex.LatencyMs = *latencyMs
	}
	if model != nil {
		ex.Model = *model
	}
	if len(tokens) > 0 {
		if err := json.Unmarshal(tokens, &ex.Tokens); err != nil {
			return nil, fmt.Errorf("unmarshal tokens: %w", err)
		}
	}
	return &ex, nil
}

// nullable maps empty strings to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
