package sqldb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// PingTimeout bounds the connectivity check in Open.
var PingTimeout = 5 * time.Second

// Open opens driverName with dsn and pings it so that a bad DSN or an
// unreachable server fails here rather than on the first write.
func Open(ctx context.Context, driverName, dsn string) (*sqlx.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%s: DSN must not be empty", driverName)
	}
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driverName, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", driverName, err)
	}
	return db, nil
}
