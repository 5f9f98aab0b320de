package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS annotations (
    id TEXT PRIMARY KEY,
    payload JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresStore persists annotations into Postgres as JSONB documents.
type PostgresStore struct {
	*sqlStore
}

var _ Backend = (*PostgresStore)(nil)

// OpenPostgres connects with dsn, verifies the connection and ensures the table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresStore{sqlStore: newSQLStore("postgres", db, sq.Dollar)}
	if err := store.migrate(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
