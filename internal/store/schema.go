package store

// Schema is applied with CREATE TABLE IF NOT EXISTS, in the teacher's
// veille/internal/store/schema.go style: one literal SQL string executed
// once at Open time, safe to re-run against an existing database.
//
// Evidence ids and proposition ids reference each other as sorted,
// comma-joined TEXT columns rather than through a join table — the sets
// involved are small (tens of items per proposition at most) and this keeps
// Jaccard/overlap computation a pure Go operation over decoded sets instead
// of a SQL aggregation.
const Schema = `
CREATE TABLE IF NOT EXISTS project (
	id                      TEXT PRIMARY KEY,
	research_question       TEXT NOT NULL,
	created_at              TIMESTAMP NOT NULL,
	agent_id                TEXT NOT NULL,
	current_script_version  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS evidence (
	id              TEXT PRIMARY KEY,
	interview_id    TEXT NOT NULL,
	quote           TEXT NOT NULL,
	interpretation  TEXT NOT NULL,
	factor          TEXT NOT NULL,
	mechanism       TEXT NOT NULL,
	outcome         TEXT NOT NULL,
	tags            TEXT NOT NULL DEFAULT '',
	language        TEXT NOT NULL,
	timestamp       TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS propositions (
	id                                TEXT PRIMARY KEY,
	factor                            TEXT NOT NULL,
	mechanism                         TEXT NOT NULL,
	outcome                           TEXT NOT NULL,
	confidence                        REAL NOT NULL DEFAULT 0,
	status                            TEXT NOT NULL,
	supporting_evidence               TEXT NOT NULL DEFAULT '',
	contradicting_evidence            TEXT NOT NULL DEFAULT '',
	first_seen_interview              TEXT NOT NULL,
	last_updated_interview            TEXT NOT NULL,
	interviews_without_new_evidence   INTEGER NOT NULL DEFAULT 0,
	merged_into                       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS interviews (
	id                    TEXT PRIMARY KEY,
	conversation_id       TEXT NOT NULL UNIQUE,
	transcript            TEXT NOT NULL,
	received_at           TIMESTAMP NOT NULL,
	script_version_used   INTEGER,
	language              TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS scripts (
	version                     INTEGER PRIMARY KEY,
	generated_after_interview   TEXT NOT NULL DEFAULT '',
	research_question           TEXT NOT NULL,
	opening_question             TEXT NOT NULL,
	sections_json               TEXT NOT NULL,
	closing_question             TEXT NOT NULL,
	wildcard                    TEXT NOT NULL,
	mode                        TEXT NOT NULL,
	convergence_score           REAL NOT NULL,
	novelty_rate                REAL NOT NULL,
	changes_summary             TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS id_counters (
	kind        TEXT PRIMARY KEY,
	next_value  INTEGER NOT NULL DEFAULT 1
);

-- events_log is a durable event table, written by Store.AppendEvent and read
-- by Store.RecentEvents. The Event Bus itself never replays backlog to
-- subscribers (spec §4.7). The Reconciler and Pipeline do not write their
-- events here, and the MCP tools do not read it.
CREATE TABLE IF NOT EXISTS events_log (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	payload_json TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL
);
`
