package memory

const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	ref             TEXT PRIMARY KEY,
	domain          TEXT NOT NULL,
	category        TEXT NOT NULL DEFAULT '',

	loop_id         TEXT NOT NULL,
	component       TEXT NOT NULL,
	output_type     TEXT NOT NULL,
	result          TEXT NOT NULL,
	confidence      REAL NOT NULL,
	quality_score   REAL,
	citations       TEXT NOT NULL DEFAULT '[]',
	policy_tags     TEXT NOT NULL DEFAULT '[]',
	constitutional_compliance INTEGER NOT NULL,
	requires_approval         INTEGER NOT NULL,
	diagnostics     TEXT NOT NULL DEFAULT '[]',
	warnings        TEXT NOT NULL DEFAULT '[]',
	errors          TEXT NOT NULL DEFAULT '[]',
	importance      REAL NOT NULL DEFAULT 0,
	expires_at      TEXT,
	created_at      TEXT NOT NULL,

	trust_score     REAL NOT NULL,
	decay_curve     TEXT NOT NULL,
	half_life_hours REAL NOT NULL,
	usage_score     REAL NOT NULL DEFAULT 0,

	access_count    INTEGER NOT NULL DEFAULT 0,
	success_count   INTEGER NOT NULL DEFAULT 0,
	failure_count   INTEGER NOT NULL DEFAULT 0,

	is_archived     INTEGER NOT NULL DEFAULT 0,
	is_deleted      INTEGER NOT NULL DEFAULT 0,

	stored_at        TEXT NOT NULL,
	last_accessed_at TEXT
);

CREATE TABLE IF NOT EXISTS trust_events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	ref          TEXT NOT NULL,
	trust_before REAL NOT NULL,
	trust_after  REAL NOT NULL,
	reason       TEXT NOT NULL,
	outcome      TEXT NOT NULL DEFAULT '',
	actor        TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL,
	FOREIGN KEY (ref) REFERENCES artifacts(ref)
);

CREATE TABLE IF NOT EXISTS artifact_index (
	ref        TEXT NOT NULL,
	idx_key    TEXT NOT NULL,
	idx_value  TEXT NOT NULL,
	weight     REAL NOT NULL,
	FOREIGN KEY (ref) REFERENCES artifacts(ref)
);

CREATE INDEX IF NOT EXISTS idx_artifacts_component ON artifacts(component);
CREATE INDEX IF NOT EXISTS idx_artifacts_loop ON artifacts(loop_id);
CREATE INDEX IF NOT EXISTS idx_artifacts_domain ON artifacts(domain);
CREATE INDEX IF NOT EXISTS idx_trust_events_ref ON trust_events(ref);
CREATE INDEX IF NOT EXISTS idx_artifact_index_key ON artifact_index(idx_key, idx_value);
`

// Secondary index weights: identity fields outrank grouping fields.
const (
	indexWeightComponent  = 1.0
	indexWeightOutputType = 1.0
	indexWeightLoop       = 0.8
	indexWeightPolicyTag  = 0.6
)
