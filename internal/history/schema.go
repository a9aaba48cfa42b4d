package history

// schemaVersion tracks the run_events layout. Bump it when the table shape
// changes; the database is an audit log, so on mismatch the store recreates
// the schema rather than migrating in place.
const schemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_info (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_events (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id        TEXT NOT NULL,
    item_id       TEXT NOT NULL,
    item_name     TEXT NOT NULL,
    section       TEXT NOT NULL DEFAULT '',
    provider      TEXT NOT NULL,
    status        TEXT NOT NULL,
    provider_ref  TEXT NOT NULL DEFAULT '',
    artifact_path TEXT NOT NULL DEFAULT '',
    error         TEXT NOT NULL DEFAULT '',
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_run_events_run ON run_events(run_id);
CREATE INDEX IF NOT EXISTS idx_run_events_item ON run_events(item_id);
`
