package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"FinanceFlow/internal/domain"
)

const annotationsTable = "annotations"

// sqlStore keeps one JSON document per item id in a relational table.
type sqlStore struct {
	name    string
	db      *sql.DB
	builder sq.StatementBuilderType
}

func newSQLStore(name string, db *sql.DB, placeholders sq.PlaceholderFormat) *sqlStore {
	return &sqlStore{
		name:    name,
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholders),
	}
}

func (s *sqlStore) Name() string {
	return s.name
}

func (s *sqlStore) migrate(ctx context.Context, ddl string) error {
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s table: %w", annotationsTable, err)
	}
	return nil
}

func (s *sqlStore) selectQuery(id string) (string, []any, error) {
	return s.builder.
		Select("payload").
		From(annotationsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
}

func (s *sqlStore) upsertQuery(id string, payload []byte, at time.Time) (string, []any, error) {
	return s.builder.
		Insert(annotationsTable).
		Columns("id", "payload", "updated_at").
		Values(id, string(payload), at).
		Suffix("ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at").
		ToSql()
}

func (s *sqlStore) Get(ctx context.Context, id string) (domain.Annotation, bool, error) {
	query, args, err := s.selectQuery(id)
	if err != nil {
		return domain.Annotation{}, false, fmt.Errorf("build select: %w", err)
	}

	var payload []byte
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Annotation{}, false, nil
	}
	if err != nil {
		return domain.Annotation{}, false, fmt.Errorf("query annotation: %w", err)
	}

	var annotation domain.Annotation
	if err := json.Unmarshal(payload, &annotation); err != nil {
		return domain.Annotation{}, false, fmt.Errorf("decode annotation %s: %w", id, err)
	}
	return annotation, true, nil
}

func (s *sqlStore) Put(ctx context.Context, id string, annotation domain.Annotation) error {
	payload, err := json.Marshal(annotation)
	if err != nil {
		return fmt.Errorf("encode annotation: %w", err)
	}

	query, args, err := s.upsertQuery(id, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert annotation: %w", err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
