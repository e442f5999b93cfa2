package journal

// SchemaDDL defines the journal tables. It is idempotent.
const SchemaDDL = `
-- Completed sends, learned codes and learn failures
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY,
    type TEXT NOT NULL,
    source TEXT NOT NULL,
    requester TEXT,
    correlation_id INTEGER NOT NULL DEFAULT 0,
    success INTEGER NOT NULL DEFAULT 0,
    code TEXT,
    detail TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_events_type ON events(type, id);
`

// Event types.
const (
	TypeSend        = "ir_send"
	TypeLearned     = "ir_receive"
	TypeLearnFailed = "ir_learn_failed"
)
