package sqlite

import (
	"context"

	"studentetl/internal/storage"
	"studentetl/internal/storage/sqldb"
)

// newDB is a test hook that points to NewDB by default.
var newDB = NewDB

// OpenSchool opens the normalized store on SQLite.
func OpenSchool(ctx context.Context, cfg Config) (*sqldb.School, error) {
	db, err := newDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	repo, err := sqldb.NewSchool(db, Dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenAcademics opens the academics store on SQLite.
func OpenAcademics(ctx context.Context, cfg Config) (*sqldb.Academics, error) {
	db, err := newDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	repo, err := sqldb.NewAcademics(db, Dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func init() {
	storage.Register("sqlite", storage.Factory{
		School: func(ctx context.Context, cfg storage.Config) (storage.SchoolRepository, error) {
			r, err := OpenSchool(ctx, Config{DSN: cfg.DSN})
			if err != nil {
				return nil, err
			}
			return r, nil
		},
		Academics: func(ctx context.Context, cfg storage.Config) (storage.AcademicsRepository, error) {
			r, err := OpenAcademics(ctx, Config{DSN: cfg.DSN})
			if err != nil {
				return nil, err
			}
			return r, nil
		},
	})
}
