package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create agents and workspaces",
		SQL: `
			CREATE TABLE agents (
				id          TEXT PRIMARY KEY,
				name        TEXT NOT NULL,
				token_hash  TEXT NOT NULL,
				created_at  TEXT NOT NULL
			);

			CREATE UNIQUE INDEX idx_agents_name ON agents (name);
			CREATE UNIQUE INDEX idx_agents_token ON agents (token_hash);

			CREATE TABLE workspaces (
				id                            INTEGER PRIMARY KEY AUTOINCREMENT,
				agent_id                      TEXT NOT NULL REFERENCES agents(id),
				name                          TEXT NOT NULL CHECK (name <> ''),
				namespace                     TEXT NOT NULL DEFAULT '',
				owner                         TEXT NOT NULL DEFAULT '',
				desired_state                 TEXT NOT NULL CHECK (desired_state IN
					('RUNNING', 'STOPPED', 'RESTART_REQUESTED', 'TERMINATED', 'FAILED')),
				desired_state_updated_at      TEXT NOT NULL,
				actual_state                  TEXT NOT NULL,
				deployment_resource_version   TEXT,
				max_hours_before_termination  INTEGER NOT NULL CHECK (max_hours_before_termination > 0),
				responded_to_agent_at         TEXT,
				created_at                    TEXT NOT NULL,
				updated_at                    TEXT NOT NULL
			);

			CREATE UNIQUE INDEX idx_workspaces_agent_name ON workspaces (agent_id, name);
		`,
	},
	{
		Version: 2,
		Name:    "index pending desired state changes",
		SQL: `
			CREATE INDEX idx_workspaces_agent_desired ON workspaces (agent_id, desired_state_updated_at);
		`,
	},
}
