package store

// schemaVersion is bumped whenever schema changes shape.
const schemaVersion = 1

// Lists and vectors are stored as CBOR blobs; times as RFC 3339 text with
// the empty string for "never".
var schema = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS tickets (
	id                  TEXT PRIMARY KEY,
	source              TEXT NOT NULL DEFAULT '',
	title               TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	acceptance_criteria TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL DEFAULT '',
	issue_type          TEXT NOT NULL DEFAULT '',
	url                 TEXT NOT NULL DEFAULT '',
	fields              BLOB,
	fingerprint         TEXT NOT NULL,
	updated_at          TEXT NOT NULL DEFAULT '',
	fetched_at          TEXT NOT NULL DEFAULT '',
	synced_at           TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS artifacts (
	ticket_id         TEXT NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
	kind              TEXT NOT NULL,
	id                TEXT NOT NULL,
	content           TEXT NOT NULL,
	items             BLOB,
	model             TEXT NOT NULL DEFAULT '',
	fingerprint       TEXT NOT NULL,
	generated_at      TEXT NOT NULL,
	publish_status    TEXT NOT NULL,
	published_at      TEXT NOT NULL DEFAULT '',
	remote_comment_id TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (ticket_id, kind)
);

CREATE TABLE IF NOT EXISTS embeddings (
	ticket_id   TEXT PRIMARY KEY REFERENCES tickets(id) ON DELETE CASCADE,
	vector      BLOB NOT NULL,
	model       TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	computed_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS quality_scores (
	ticket_id   TEXT PRIMARY KEY REFERENCES tickets(id) ON DELETE CASCADE,
	score       INTEGER NOT NULL CHECK (score BETWEEN 1 AND 10),
	category    TEXT NOT NULL,
	rationale   TEXT NOT NULL DEFAULT '',
	issues      BLOB,
	suggestions BLOB,
	model       TEXT NOT NULL DEFAULT '',
	fingerprint TEXT NOT NULL,
	scored_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS related_links (
	from_id     TEXT NOT NULL,
	to_id       TEXT NOT NULL,
	similarity  REAL NOT NULL,
	model       TEXT NOT NULL,
	computed_at TEXT NOT NULL,
	PRIMARY KEY (from_id, to_id)
);
`
