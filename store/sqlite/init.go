package sqlite

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
)

func createTable(ctx context.Context, db bun.IDB, model any) error {
	_, err := db.NewCreateTable().
		Model(model).
		IfNotExists().
		Exec(ctx)
	return err
}

func createIndex(ctx context.Context, db bun.IDB, model any, name string, cols ...string) error {
	_, err := db.NewCreateIndex().
		Model(model).
		Index(name).
		Column(cols...).
		IfNotExists().
		Exec(ctx)
	return err
}

func initDB(ctx context.Context, db *bun.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	steps := []func() error{
		func() error { return createTable(ctx, tx, (*jobModel)(nil)) },
		func() error { return createTable(ctx, tx, (*workerModel)(nil)) },
		func() error { return createTable(ctx, tx, (*cacheModel)(nil)) },
		func() error { return createTable(ctx, tx, (*eventModel)(nil)) },
		// The claim query filters on (job_type, status) and orders by
		// (priority, created_at); this index covers both.
		func() error {
			return createIndex(ctx, tx, (*jobModel)(nil), "idx_jobs_claim",
				"job_type", "status", "priority", "created_at")
		},
		func() error {
			return createIndex(ctx, tx, (*workerModel)(nil), "idx_workers_type_status",
				"worker_type", "status")
		},
		func() error {
			return createIndex(ctx, tx, (*workerModel)(nil), "idx_workers_heartbeat",
				"last_heartbeat")
		},
		func() error {
			return createIndex(ctx, tx, (*eventModel)(nil), "idx_events_created",
				"created_at")
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return errors.Join(err, tx.Rollback())
		}
	}
	return tx.Commit()
}

// InitDB initializes the schema required by the sqlite backend: the
// jobs, workers, results_cache, and events tables plus their indexes,
// all inside a single transaction. If any step fails, the transaction
// is rolled back.
//
// InitDB is idempotent and may be called multiple times.
func InitDB(ctx context.Context, db *bun.DB) error {
	return initDB(ctx, db)
}

// MustInitDB behaves like InitDB but panics on failure. It is intended
// for process bootstrap code where failure to initialize schema is
// unrecoverable.
func MustInitDB(ctx context.Context, db *bun.DB) {
	if err := initDB(ctx, db); err != nil {
		panic(err)
	}
}
