package store

import (
	"context"
	"fmt"
)

// rebuildLegacyNameColumn implements §4.C migration 1: if the tasks table
// already exists (from a schema that predates this rewrite) and carries a
// "name" column, rebuild the table without it, copying every other
// column that still exists in the current schema. A fresh database (no
// tasks table yet) is left untouched for runSchemaMigrations to create.
func (s *Store) rebuildLegacyNameColumn(ctx context.Context) error {
	var tableExists int
	err := s.db.GetContext(ctx, &tableExists, `SELECT count(*) FROM sqlite_master WHERE type='table' AND name='tasks'`)
	if err != nil {
		return fmt.Errorf("check tasks table: %w", err)
	}
	if tableExists == 0 {
		return nil
	}

	cols, err := s.tableColumns(ctx, "tasks")
	if err != nil {
		return fmt.Errorf("inspect tasks columns: %w", err)
	}
	if !cols["name"] {
		return nil
	}

	const currentColumns = `id, trigger_type, trigger_config, mcp_server, mcp_tool, mcp_arguments, agent_prompt, enabled, status, created_at, updated_at, last_run, last_status, last_message, next_run`
	shared := intersectColumns(currentColumns, cols)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `ALTER TABLE tasks RENAME TO tasks_legacy`); err != nil {
		return fmt.Errorf("rename legacy tasks table: %w", err)
	}

	// Recreated inline (rather than replayed from the embedded migration
	// file) because the sqlite driver executes one statement per call and
	// the migration file holds several.
	if _, err := tx.ExecContext(ctx, `CREATE TABLE tasks (
		id TEXT PRIMARY KEY,
		trigger_type TEXT NOT NULL,
		trigger_config TEXT NOT NULL,
		mcp_server TEXT,
		mcp_tool TEXT,
		mcp_arguments TEXT,
		agent_prompt TEXT,
		enabled INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		last_run TEXT,
		last_status TEXT,
		last_message TEXT,
		next_run TEXT
	)`); err != nil {
		return fmt.Errorf("recreate tasks table: %w", err)
	}

	insertSQL := fmt.Sprintf(`INSERT INTO tasks (%s) SELECT %s FROM tasks_legacy`, shared, shared)
	if _, err := tx.ExecContext(ctx, insertSQL); err != nil {
		return fmt.Errorf("copy legacy rows: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DROP TABLE tasks_legacy`); err != nil {
		return fmt.Errorf("drop legacy table: %w", err)
	}

	return tx.Commit()
}

func (s *Store) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryxContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		m, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		// PRAGMA table_info columns: cid, name, type, notnull, dflt_value, pk
		name, ok := m[1].(string)
		if !ok {
			continue
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

func intersectColumns(wanted string, have map[string]bool) string {
	var out string
	for _, col := range splitColumns(wanted) {
		if have[col] {
			if out != "" {
				out += ", "
			}
			out += col
		}
	}
	return out
}

func splitColumns(csv string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			field := csv[start:i]
			for len(field) > 0 && field[0] == ' ' {
				field = field[1:]
			}
			if field != "" {
				out = append(out, field)
			}
			start = i + 1
		}
	}
	return out
}
