package store

// Schema is the Postgres DDL applied by the schema-migrate tool. Deletion
// policies are encoded here: experiments cascade to their arms, events,
// and explanations, while arm deletion nulls the weak references so ledger
// history survives.
const Schema = `
CREATE TABLE IF NOT EXISTS work_items (
	id         UUID PRIMARY KEY,
	kind       TEXT NOT NULL,
	input      JSONB NOT NULL,
	status     TEXT NOT NULL,
	result     TEXT,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_work_items_created ON work_items(created_at DESC);

CREATE TABLE IF NOT EXISTS bandit_experiments (
	id         UUID PRIMARY KEY,
	name       TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS bandit_arms (
	id            UUID PRIMARY KEY,
	experiment_id UUID NOT NULL REFERENCES bandit_experiments(id) ON DELETE CASCADE,
	label         TEXT,
	position      INT NOT NULL,
	prior_alpha   DOUBLE PRECISION NOT NULL DEFAULT 1,
	prior_beta    DOUBLE PRECISION NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_bandit_arms_experiment ON bandit_arms(experiment_id, position);

CREATE TABLE IF NOT EXISTS bandit_events (
	seq           BIGSERIAL PRIMARY KEY,
	id            UUID NOT NULL UNIQUE,
	experiment_id UUID NOT NULL REFERENCES bandit_experiments(id) ON DELETE CASCADE,
	arm_id        UUID REFERENCES bandit_arms(id) ON DELETE SET NULL,
	type          TEXT NOT NULL,
	reward        DOUBLE PRECISION,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_bandit_events_experiment ON bandit_events(experiment_id, seq);

CREATE TABLE IF NOT EXISTS bandit_explanations (
	id            UUID PRIMARY KEY,
	experiment_id UUID NOT NULL REFERENCES bandit_experiments(id) ON DELETE CASCADE,
	arm_id        UUID REFERENCES bandit_arms(id) ON DELETE SET NULL,
	policy        TEXT NOT NULL,
	rationale     TEXT NOT NULL,
	tokens        JSONB,
	latency_ms    BIGINT,
	model         TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_bandit_explanations_experiment ON bandit_explanations(experiment_id, created_at DESC);
`
