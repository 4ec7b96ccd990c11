package sqlite

// RegistryVersion is recorded in the releases table when the registry
// is created and checked on every EnsureRegistry.
const RegistryVersion = "1.1"

// SchemaSQL is the complete registry schema for a fresh registry
// database. This is the single source of truth: tests create their
// registries through EnsureRegistry, never from hardcoded DDL, so any
// drift between queries and schema fails immediately with
// "no such column".
const SchemaSQL = `
-- Registry releases (schema versioning)
CREATE TABLE releases (
	version         TEXT        PRIMARY KEY,
	installed_at    DATETIME    NOT NULL DEFAULT CURRENT_TIMESTAMP,
	installer_name  TEXT        NOT NULL,
	installer_email TEXT        NOT NULL
);

-- Projects deployed to this registry
CREATE TABLE projects (
	project         TEXT        PRIMARY KEY,
	uri             TEXT            NULL UNIQUE,
	created_at      DATETIME    NOT NULL DEFAULT CURRENT_TIMESTAMP,
	creator_name    TEXT        NOT NULL,
	creator_email   TEXT        NOT NULL
);

-- Currently deployed changes
CREATE TABLE changes (
	change_id       TEXT        PRIMARY KEY,
	script_hash     TEXT            NULL,
	change          TEXT        NOT NULL,
	project         TEXT        NOT NULL REFERENCES projects(project) ON UPDATE CASCADE,
	note            TEXT        NOT NULL DEFAULT '',
	committed_at    DATETIME    NOT NULL,
	committer_name  TEXT        NOT NULL,
	committer_email TEXT        NOT NULL,
	planned_at      DATETIME    NOT NULL,
	planner_name    TEXT        NOT NULL,
	planner_email   TEXT        NOT NULL
);

-- Currently deployed tags
CREATE TABLE tags (
	tag_id          TEXT        PRIMARY KEY,
	tag             TEXT        NOT NULL,
	project         TEXT        NOT NULL REFERENCES projects(project) ON UPDATE CASCADE,
	change_id       TEXT        NOT NULL REFERENCES changes(change_id) ON UPDATE CASCADE ON DELETE CASCADE,
	note            TEXT        NOT NULL DEFAULT '',
	committed_at    DATETIME    NOT NULL,
	committer_name  TEXT        NOT NULL,
	committer_email TEXT        NOT NULL,
	planned_at      DATETIME    NOT NULL,
	planner_name    TEXT        NOT NULL,
	planner_email   TEXT        NOT NULL,
	UNIQUE(project, tag)
);

-- Dependencies of currently deployed changes. dependency_id stays NULL
-- for cross-project references that were never resolved locally.
CREATE TABLE dependencies (
	change_id       TEXT        NOT NULL REFERENCES changes(change_id) ON UPDATE CASCADE ON DELETE CASCADE,
	type            TEXT        NOT NULL CHECK(type IN ('require', 'conflict')),
	dependency      TEXT        NOT NULL,
	dependency_id   TEXT            NULL,
	PRIMARY KEY (change_id, dependency)
);

-- Full deployment history, append-only
CREATE TABLE events (
	event           TEXT        NOT NULL CHECK(event IN ('deploy', 'revert', 'fail')),
	change_id       TEXT        NOT NULL,
	change          TEXT        NOT NULL,
	project         TEXT        NOT NULL REFERENCES projects(project) ON UPDATE CASCADE,
	note            TEXT        NOT NULL DEFAULT '',
	requires        TEXT        NOT NULL DEFAULT '',
	conflicts       TEXT        NOT NULL DEFAULT '',
	tags            TEXT        NOT NULL DEFAULT '',
	committed_at    DATETIME    NOT NULL,
	committer_name  TEXT        NOT NULL,
	committer_email TEXT        NOT NULL,
	planned_at      DATETIME    NOT NULL,
	planner_name    TEXT        NOT NULL,
	planner_email   TEXT        NOT NULL
);

CREATE INDEX idx_changes_project ON changes(project, committed_at);
CREATE INDEX idx_events_project ON events(project, committed_at);
`
