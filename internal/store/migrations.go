package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS emails (
	message_id          TEXT PRIMARY KEY,
	thread_id           TEXT NOT NULL DEFAULT '',
	from_addr           TEXT NOT NULL DEFAULT '',
	to_addr             TEXT NOT NULL DEFAULT '',
	subject             TEXT NOT NULL DEFAULT '',
	snippet             TEXT NOT NULL DEFAULT '',
	body                TEXT NOT NULL DEFAULT '',
	received_at         TEXT NOT NULL DEFAULT '',
	labels              TEXT NOT NULL DEFAULT '[]',
	category            TEXT,
	category_confidence REAL,
	scheduled_at        DATETIME,
	last_updated_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_emails_category ON emails(category);
CREATE INDEX IF NOT EXISTS idx_emails_last_updated ON emails(last_updated_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
