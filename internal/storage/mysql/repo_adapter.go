package mysql

import (
	"context"

	"studentetl/internal/storage"
	"studentetl/internal/storage/sqldb"
)

// newDB is a test hook that points to NewDB by default.
var newDB = NewDB

func openSchool(ctx context.Context, cfg storage.Config) (storage.SchoolRepository, error) {
	db, err := newDB(ctx, Config{DSN: cfg.DSN})
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

func openAcademics(ctx context.Context, cfg storage.Config) (storage.AcademicsRepository, error) {
	db, err := newDB(ctx, Config{DSN: cfg.DSN})
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
	storage.Register("mysql", storage.Factory{School: openSchool, Academics: openAcademics})
}
