package sqldb

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"studentetl/internal/storage"
)

func execAll(ctx context.Context, db *sqlx.DB, stmts []string) error {
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(s), err)
		}
	}
	return nil
}

func dropAll(ctx context.Context, db *sqlx.DB, quote func(string) string, tables []string) error {
	for _, t := range tables {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(t)); err != nil {
			return fmt.Errorf("drop %s: %w", t, err)
		}
	}
	return nil
}

// deleteAll empties tables in order and returns the rows removed from each
// table processed so far, also on error.
func deleteAll(ctx context.Context, db *sqlx.DB, quote func(string) string, tables []string) ([]storage.TableCount, error) {
	out := make([]storage.TableCount, 0, len(tables))
	for _, t := range tables {
		res, err := db.ExecContext(ctx, "DELETE FROM "+quote(t))
		if err != nil {
			return out, fmt.Errorf("delete from %s: %w", t, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return out, fmt.Errorf("delete from %s: rows affected: %w", t, err)
		}
		out = append(out, storage.TableCount{Table: t, Rows: n})
	}
	return out, nil
}

func countAll(ctx context.Context, db *sqlx.DB, quote func(string) string, tables []string) ([]storage.TableCount, error) {
	out := make([]storage.TableCount, 0, len(tables))
	for _, t := range tables {
		var n int64
		if err := db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+quote(t)); err != nil {
			return out, fmt.Errorf("count %s: %w", t, err)
		}
		out = append(out, storage.TableCount{Table: t, Rows: n})
	}
	return out, nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
