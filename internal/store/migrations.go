package store

// runMigrations creates the schema if it does not exist.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sample bank: preloaded drum sounds addressed by id. A sample may
		// be bound to one screen quadrant.
		`CREATE TABLE IF NOT EXISTS samples (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			note INTEGER NOT NULL CHECK(note BETWEEN 0 AND 127),
			quadrant INTEGER UNIQUE CHECK(quadrant BETWEEN 1 AND 4),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}
