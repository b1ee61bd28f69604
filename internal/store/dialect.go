package store

// dialect holds the statements that differ between SQLite and MySQL.
// Timestamps are RFC 3339 strings in both.
type dialect struct {
	name   string
	schema []string
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id               TEXT PRIMARY KEY,
			idea_text        TEXT NOT NULL,
			validation_level TEXT NOT NULL,
			personas         TEXT NOT NULL,
			compact_summary  TEXT NOT NULL DEFAULT '',
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS turns (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			turn       INTEGER NOT NULL,
			turn_id    TEXT NOT NULL,
			scorecard  TEXT NOT NULL,
			result     TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (session_id, turn)
		)`,
		`CREATE TABLE IF NOT EXISTS reflections (
			seq          INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id   TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			turn         INTEGER NOT NULL,
			persona      TEXT NOT NULL,
			text         TEXT NOT NULL,
			categories   TEXT NOT NULL,
			impact_score INTEGER NOT NULL,
			created_at   TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS evolution (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			turn       INTEGER NOT NULL,
			category   TEXT NOT NULL,
			from_score INTEGER NOT NULL,
			to_score   INTEGER NOT NULL,
			delta      INTEGER NOT NULL,
			reason     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reflections_session ON reflections(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_evolution_session ON evolution(session_id, turn)`,
	},
}

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id               VARCHAR(64)  NOT NULL PRIMARY KEY,
			idea_text        TEXT         NOT NULL,
			validation_level VARCHAR(32)  NOT NULL,
			personas         TEXT         NOT NULL,
			compact_summary  TEXT         NOT NULL,
			created_at       VARCHAR(40)  NOT NULL,
			updated_at       VARCHAR(40)  NOT NULL,
			INDEX idx_sessions_updated (updated_at)
		)`,
		`CREATE TABLE IF NOT EXISTS turns (
			session_id VARCHAR(64) NOT NULL,
			turn       INT         NOT NULL,
			turn_id    VARCHAR(64) NOT NULL,
			scorecard  TEXT        NOT NULL,
			result     MEDIUMTEXT  NOT NULL,
			created_at VARCHAR(40) NOT NULL,
			PRIMARY KEY (session_id, turn),
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS reflections (
			seq          BIGINT      NOT NULL AUTO_INCREMENT PRIMARY KEY,
			session_id   VARCHAR(64) NOT NULL,
			turn         INT         NOT NULL,
			persona      VARCHAR(32) NOT NULL,
			text         TEXT        NOT NULL,
			categories   TEXT        NOT NULL,
			impact_score INT         NOT NULL,
			created_at   VARCHAR(40) NOT NULL,
			INDEX idx_reflections_session (session_id),
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS evolution (
			id         BIGINT      NOT NULL AUTO_INCREMENT PRIMARY KEY,
			session_id VARCHAR(64) NOT NULL,
			turn       INT         NOT NULL,
			category   VARCHAR(32) NOT NULL,
			from_score INT         NOT NULL,
			to_score   INT         NOT NULL,
			delta      INT         NOT NULL,
			reason     TEXT        NOT NULL,
			INDEX idx_evolution_session (session_id, turn),
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,
	},
}
