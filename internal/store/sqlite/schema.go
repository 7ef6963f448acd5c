package sqlite

// schema is applied on Open. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS interaction_sessions (
		id                     TEXT PRIMARY KEY,
		name                   TEXT NOT NULL,
		type                   TEXT NOT NULL,
		status                 TEXT NOT NULL,
		required_fields        TEXT NOT NULL DEFAULT '[]',
		current_question_index INTEGER,
		started_at             DATETIME,
		completed_at           DATETIME,
		created_at             DATETIME NOT NULL,
		updated_at             DATETIME NOT NULL
	)`,
	// At most one active session, enforced by the engine itself.
	`CREATE UNIQUE INDEX IF NOT EXISTS interaction_sessions_one_active
		ON interaction_sessions(status) WHERE status = 'active'`,
	`CREATE TABLE IF NOT EXISTS interaction_questions (
		id                TEXT PRIMARY KEY,
		session_id        TEXT NOT NULL REFERENCES interaction_sessions(id) ON DELETE CASCADE,
		text              TEXT NOT NULL,
		type              TEXT NOT NULL,
		options           TEXT NOT NULL DEFAULT '[]',
		correct_option_id TEXT NOT NULL DEFAULT '',
		duration_seconds  INTEGER,
		order_num         INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS interaction_questions_session
		ON interaction_questions(session_id, order_num)`,
	`CREATE TABLE IF NOT EXISTS participants (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES interaction_sessions(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		fields     TEXT NOT NULL DEFAULT '{}',
		joined_at  DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS participants_session ON participants(session_id)`,
	`CREATE TABLE IF NOT EXISTS interaction_responses (
		id             TEXT PRIMARY KEY,
		session_id     TEXT NOT NULL,
		question_id    TEXT NOT NULL,
		participant_id TEXT NOT NULL,
		answer         TEXT NOT NULL,
		timed_out      INTEGER NOT NULL DEFAULT 0,
		submitted_at   DATETIME NOT NULL,
		UNIQUE (participant_id, question_id)
	)`,
	`CREATE INDEX IF NOT EXISTS interaction_responses_session
		ON interaction_responses(session_id, question_id)`,
}
