package storage

const schemaSettings = `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

const schemaCounters = `
CREATE TABLE IF NOT EXISTS counters (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	skipped_total INTEGER NOT NULL DEFAULT 0,
	skipped_today INTEGER NOT NULL DEFAULT 0,
	time_saved_seconds INTEGER NOT NULL DEFAULT 0,
	last_reset_date TEXT NOT NULL
);`

const schemaCategoryStats = `
CREATE TABLE IF NOT EXISTS category_stats (
	category TEXT PRIMARY KEY,
	skips INTEGER NOT NULL DEFAULT 0
);`

// EnsureSchema creates all tables if they do not exist yet.
func (s *Store) EnsureSchema() error {
	for _, stmt := range []string{schemaSettings, schemaCounters, schemaCategoryStats} {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
