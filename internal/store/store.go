// Package store holds the storage collaborators that remember which job
// records were already seen.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/amishk599/jobradar/internal/model"
)

// Store is a JobStore that can prune old records and be closed.
type Store interface {
	model.JobStore
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
	Close() error
}

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Open returns the store for driver. dsn is a file path for sqlite and a
// connection URL for postgres; it is ignored for none.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		return NewSQLiteStore(dsn)
	case DriverPostgres:
		return NewPostgresStore(ctx, dsn)
	case DriverNone:
		return NewNopStore(), nil
	}
	return nil, fmt.Errorf("%w: unknown storage driver %q", model.ErrConfigInvalid, driver)
}
