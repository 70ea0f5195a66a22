package store

import "context"

// SendSignal appends a command to the CLI→engine signal queue.
func (s *Store) SendSignal(ctx context.Context, signal string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO signals (signal, created_at) VALUES (?, ?)", signal, now())
	if err != nil {
		return dbErr(err)
	}
	return nil
}

// DrainSignals reads all queued signals in insertion order and deletes
// them in the same transaction, so each signal is observed exactly once.
func (s *Store) DrainSignals(ctx context.Context) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dbErr(err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT signal FROM signals ORDER BY id ASC")
	if err != nil {
		return nil, dbErr(err)
	}

	var signals []string
	for rows.Next() {
		var sig string
		if err := rows.Scan(&sig); err != nil {
			rows.Close()
			return nil, dbErr(err)
		}
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, dbErr(err)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, "DELETE FROM signals"); err != nil {
		return nil, dbErr(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, dbErr(err)
	}
	return signals, nil
}

// SetFlag makes the named flag exist.
func (s *Store) SetFlag(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flags (name, created_at) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET created_at = excluded.created_at`,
		name, now())
	if err != nil {
		return dbErr(err)
	}
	return nil
}

// ClearFlag makes the named flag not exist.
func (s *Store) ClearFlag(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM flags WHERE name = ?", name)
	if err != nil {
		return dbErr(err)
	}
	return nil
}

// HasFlag reports whether the named flag exists.
func (s *Store) HasFlag(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM flags WHERE name = ?", name).Scan(&count)
	if err != nil {
		return false, dbErr(err)
	}
	return count > 0, nil
}
