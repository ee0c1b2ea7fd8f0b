package store

// schemaStatements creates every table and index the store needs.
// CREATE TABLE/INDEX IF NOT EXISTS makes initialization idempotent, per
// spec.md §4.B: a first-run initialization seeds the schema without
// disturbing an existing database.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS script_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		script_key TEXT NOT NULL,
		requester_id TEXT NOT NULL,
		requester_tag TEXT NOT NULL,
		public_request INTEGER NOT NULL,
		command_json TEXT NOT NULL,
		status TEXT NOT NULL,
		return_code INTEGER,
		note TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		ended_at TEXT,
		duration_seconds REAL,
		log_path TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_script_runs_script_key ON script_runs(script_key)`,
	`CREATE INDEX IF NOT EXISTS idx_script_runs_started_at ON script_runs(started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_script_runs_status ON script_runs(status)`,
	`CREATE TABLE IF NOT EXISTS op_audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		target TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS server_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts TEXT NOT NULL,
		level TEXT NOT NULL,
		event TEXT NOT NULL,
		actor_id TEXT,
		guild_id TEXT,
		channel_id TEXT,
		details TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_server_logs_ts ON server_logs(ts)`,
}
