// Package migrations holds the durable backend's numbered schema
// migrations, one file per version, scoped to the entities this
// engine's core needs: episodes, steps, relationships, patterns, and
// the effectiveness ledger.
package migrations

// Migration is one forward-only schema step.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// All returns every registered migration, in the order they were
// added (ascending version).
func All() []Migration {
	return append([]Migration(nil), all...)
}

var all = []Migration{
	{
		Version: 1,
		Name:    "init",
		Up: `
CREATE TABLE episodes (
	id                TEXT PRIMARY KEY,
	task_type         TEXT NOT NULL,
	task_description  TEXT NOT NULL,
	domain            TEXT NOT NULL,
	language          TEXT,
	framework         TEXT,
	complexity        TEXT NOT NULL,
	context_tags      TEXT,
	start_time        INTEGER NOT NULL,
	end_time          INTEGER,
	steps_blob        BLOB,
	outcome_kind      TEXT,
	outcome_verdict   TEXT,
	outcome_artifacts TEXT,
	outcome_reason    TEXT,
	reward            REAL,
	reflection        TEXT,
	pattern_ids       TEXT,
	heuristic_ids     TEXT,
	applied_patterns  TEXT,
	salient_features  BLOB,
	metadata          TEXT,
	created_at        INTEGER NOT NULL,
	updated_at        INTEGER NOT NULL
);

CREATE INDEX idx_episodes_start_time ON episodes(start_time);
CREATE INDEX idx_episodes_domain ON episodes(domain);

CREATE TABLE episode_tags (
	episode_id TEXT NOT NULL REFERENCES episodes(id) ON DELETE CASCADE,
	tag        TEXT NOT NULL,
	PRIMARY KEY (episode_id, tag)
);

CREATE TABLE tag_metadata (
	tag         TEXT PRIMARY KEY,
	usage_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE patterns (
	id                        TEXT PRIMARY KEY,
	kind                      TEXT NOT NULL,
	domain                    TEXT NOT NULL,
	description               TEXT,
	source_episode_id         TEXT,
	occurrence_count          INTEGER NOT NULL DEFAULT 0,
	avg_latency_ms            INTEGER NOT NULL DEFAULT 0,
	created_at                INTEGER NOT NULL,
	updated_at                INTEGER NOT NULL,
	eff_retrieval_count       INTEGER NOT NULL DEFAULT 0,
	eff_application_count     INTEGER NOT NULL DEFAULT 0,
	eff_success_count         INTEGER NOT NULL DEFAULT 0,
	eff_failure_count         INTEGER NOT NULL DEFAULT 0,
	eff_last_applied_at       INTEGER,
	eff_last_retrieved_at     INTEGER,
	eff_score                 REAL NOT NULL DEFAULT 0,
	payload_blob              BLOB NOT NULL
);

CREATE INDEX idx_patterns_domain ON patterns(domain);
CREATE INDEX idx_patterns_eff_score ON patterns(eff_score);

CREATE TABLE heuristics (
	id                 TEXT PRIMARY KEY,
	domain             TEXT NOT NULL,
	statement          TEXT NOT NULL,
	source_pattern_ids TEXT,
	application_count  INTEGER NOT NULL DEFAULT 0,
	created_at         INTEGER NOT NULL
);

CREATE TABLE embeddings (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	vector     BLOB NOT NULL,
	dim        INTEGER NOT NULL,
	model      TEXT,
	created_at INTEGER NOT NULL
);

CREATE INDEX idx_embeddings_owner ON embeddings(owner_id);

CREATE TABLE relationships (
	id         TEXT PRIMARY KEY,
	from_id    TEXT NOT NULL REFERENCES episodes(id),
	to_id      TEXT NOT NULL REFERENCES episodes(id),
	type       TEXT NOT NULL,
	reason     TEXT,
	priority   INTEGER,
	creator    TEXT,
	created_at INTEGER NOT NULL,
	UNIQUE (from_id, to_id, type)
);

CREATE INDEX idx_relationships_from ON relationships(from_id);
CREATE INDEX idx_relationships_to ON relationships(to_id);
`,
	},
}
