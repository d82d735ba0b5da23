package postgres

import (
	"context"
	"fmt"
)

// Schema is the full relational schema. Statements are idempotent so
// EnsureSchema can run on every startup.
const Schema = `
CREATE TABLE IF NOT EXISTS sources (
	id      uuid PRIMARY KEY,
	name    text NOT NULL,
	parser  text NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS queries (
	id            uuid PRIMARY KEY,
	keywords      text NOT NULL,
	location_name text NOT NULL DEFAULT '',
	geo_id        bigint NOT NULL,
	easy_apply    boolean NOT NULL DEFAULT false,
	onsite        boolean NOT NULL DEFAULT false,
	remote        boolean NOT NULL DEFAULT false,
	hybrid        boolean NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS targets (
	id               uuid PRIMARY KEY,
	query_id         uuid NOT NULL REFERENCES queries (id),
	source_id        uuid NOT NULL REFERENCES sources (id),
	status           text NOT NULL DEFAULT 'idle',
	last_executed_at timestamptz,
	active           boolean NOT NULL DEFAULT true,
	UNIQUE (query_id, source_id)
);

CREATE TABLE IF NOT EXISTS companies (
	id   uuid PRIMARY KEY,
	name text NOT NULL,
	url  text NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS locations (
	id     uuid PRIMARY KEY,
	name   text NOT NULL UNIQUE,
	geo_id bigint
);

CREATE TABLE IF NOT EXISTS jobs (
	id           uuid PRIMARY KEY,
	company_id   uuid NOT NULL REFERENCES companies (id),
	title        text NOT NULL,
	url          text NOT NULL UNIQUE,
	location_id  uuid REFERENCES locations (id),
	posted_at    timestamptz,
	target_id    uuid REFERENCES targets (id),
	found_at     timestamptz,
	populated    boolean NOT NULL DEFAULT false,
	easy_apply   boolean NOT NULL DEFAULT false,
	description  text NOT NULL DEFAULT '',
	raw_html     text NOT NULL DEFAULT '',
	snapshot_uri text NOT NULL DEFAULT '',
	status       text NOT NULL DEFAULT 'new',
	applied_at   timestamptz
);

CREATE INDEX IF NOT EXISTS jobs_status_idx ON jobs (status);
CREATE INDEX IF NOT EXISTS jobs_unpopulated_idx ON jobs (populated) WHERE NOT populated;

CREATE TABLE IF NOT EXISTS events (
	id         uuid PRIMARY KEY,
	job_id     uuid NOT NULL REFERENCES jobs (id),
	kind       text NOT NULL,
	old_status text NOT NULL DEFAULT '',
	new_status text NOT NULL DEFAULT '',
	note       text NOT NULL DEFAULT '',
	created_at timestamptz NOT NULL
);

CREATE INDEX IF NOT EXISTS events_job_idx ON events (job_id, created_at);
`

// EnsureSchema applies the schema.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
