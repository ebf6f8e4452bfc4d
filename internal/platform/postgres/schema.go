package postgres

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id             UUID PRIMARY KEY,
		email          TEXT NOT NULL UNIQUE,
		display_name   TEXT NOT NULL,
		password_hash  TEXT NOT NULL,
		email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id         UUID PRIMARY KEY,
		author_id  UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title      TEXT NOT NULL,
		body       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_author ON posts (author_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id            UUID PRIMARY KEY,
		category      TEXT NOT NULL,
		user_id       TEXT,
		action        TEXT NOT NULL,
		resource      TEXT,
		resource_id   TEXT,
		ip_address    TEXT NOT NULL,
		user_agent    TEXT NOT NULL,
		success       BOOLEAN NOT NULL,
		error_message TEXT,
		metadata      JSONB NOT NULL DEFAULT '{}'::jsonb,
		request_id    TEXT,
		timestamp     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_user_time ON audit_log (user_id, timestamp DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_action_time ON audit_log (action, timestamp DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_resource_time ON audit_log (resource, resource_id, timestamp DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_time ON audit_log (timestamp)`,
}
