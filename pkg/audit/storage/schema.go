package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the decisions table and its indexes.
const Schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	verdict TEXT NOT NULL,
	confidence REAL NOT NULL,
	category TEXT NOT NULL,
	safety_assessment TEXT NOT NULL,
	extracted_text TEXT NOT NULL,
	factors TEXT NOT NULL,
	manifest TEXT NOT NULL,
	policy_version INTEGER NOT NULL,
	processing_time_ms INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_request_id ON decisions(request_id);
CREATE INDEX IF NOT EXISTS idx_decisions_created_at ON decisions(created_at);
CREATE INDEX IF NOT EXISTS idx_decisions_verdict ON decisions(verdict);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);
`

// InsertSchemaVersion records the schema version, ignoring duplicates.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`

// GetSchemaVersion reads the recorded schema version.
const GetSchemaVersion = `SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`
