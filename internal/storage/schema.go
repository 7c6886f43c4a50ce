package storage

import (
	"context"
	"fmt"
)

// schema creates the tables the PostgresStore reads and writes. The stored
// procedures check_schedule_conflict and calculate_worked_hours are owned by
// the database team and are not created here.
const schema = `
CREATE TABLE IF NOT EXISTS agents (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	freshchat_id  TEXT UNIQUE,
	role          TEXT NOT NULL DEFAULT 'agent',
	shift_type    TEXT,
	team          TEXT,
	is_active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS schedules (
	id            TEXT PRIMARY KEY,
	agent_id      TEXT NOT NULL REFERENCES agents(id),
	start_time    TIMESTAMPTZ NOT NULL,
	end_time      TIMESTAMPTZ NOT NULL,
	shift_type    TEXT NOT NULL,
	day_of_week   SMALLINT NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
	notes         TEXT NOT NULL DEFAULT '',
	is_active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS schedules_agent_start_idx ON schedules (agent_id, start_time);

CREATE TABLE IF NOT EXISTS shift_swaps (
	id                    TEXT PRIMARY KEY,
	requester_id          TEXT NOT NULL REFERENCES agents(id),
	target_agent_id       TEXT NOT NULL REFERENCES agents(id),
	original_schedule_id  TEXT NOT NULL REFERENCES schedules(id),
	target_schedule_id    TEXT NOT NULL REFERENCES schedules(id),
	reason                TEXT NOT NULL DEFAULT '',
	status                TEXT NOT NULL DEFAULT 'pending',
	reviewed_by           TEXT,
	reviewed_at           TIMESTAMPTZ,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS status_logs (
	id                 TEXT PRIMARY KEY,
	agent_id           TEXT NOT NULL REFERENCES agents(id),
	external_agent_id  TEXT NOT NULL,
	status             TEXT NOT NULL,
	previous_status    TEXT NOT NULL,
	details            TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS status_logs_agent_idx ON status_logs (agent_id, created_at DESC);

CREATE TABLE IF NOT EXISTS points_ledger (
	id          TEXT PRIMARY KEY,
	agent_id    TEXT NOT NULL REFERENCES agents(id),
	amount      INTEGER NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	points       INTEGER NOT NULL,
	due_date     TIMESTAMPTZ,
	is_active    BOOLEAN NOT NULL DEFAULT TRUE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS task_completions (
	task_id       TEXT NOT NULL REFERENCES tasks(id),
	agent_id      TEXT NOT NULL REFERENCES agents(id),
	points        INTEGER NOT NULL,
	completed_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (task_id, agent_id)
);

CREATE TABLE IF NOT EXISTS marketplace_items (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	cost         INTEGER NOT NULL CHECK (cost >= 0),
	stock        INTEGER NOT NULL CHECK (stock >= 0),
	is_active    BOOLEAN NOT NULL DEFAULT TRUE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS redemptions (
	id           TEXT PRIMARY KEY,
	item_id      TEXT NOT NULL REFERENCES marketplace_items(id),
	agent_id     TEXT NOT NULL REFERENCES agents(id),
	cost         INTEGER NOT NULL,
	redeemed_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates missing tables and indexes
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
