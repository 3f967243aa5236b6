package postgres

import (
	"context"

	"studentetl/internal/storage"
)

// newConn is a test hook that points to connect by default.
var newConn = connect

// OpenSchool opens the normalized store on Postgres.
func OpenSchool(ctx context.Context, cfg Config) (*School, error) {
	db, closeFn, err := newConn(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &School{db: db, closeFn: closeFn}, nil
}

// OpenAcademics opens the academics store on Postgres.
func OpenAcademics(ctx context.Context, cfg Config) (*Academics, error) {
	db, closeFn, err := newConn(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Academics{db: db, closeFn: closeFn}, nil
}

func init() {
	storage.Register("postgres", storage.Factory{
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
