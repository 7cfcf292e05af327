package hub

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"

	"github.com/openbracket/tourneysync/internal/domain/collection"
	qb "github.com/openbracket/tourneysync/internal/platform/querybuilder"
)

// PostgresStore persists records in a single jsonb table, keyed by
// (collection, record id).
type PostgresStore struct {
	db *sqlx.DB
}

func OpenPostgres(dbURL string) (*PostgresStore, error) {
	db, err := otelsqlx.Open("postgres", dbURL,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		return nil, fmt.Errorf("open records db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping records db: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type recordRow struct {
	Collection string    `db:"collection"`
	RecordID   string    `db:"record_id"`
	Payload    []byte    `db:"payload"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (s *PostgresStore) List(ctx context.Context, c collection.Name) ([]json.RawMessage, error) {
	query, args, err := qb.Select("payload").From("records").
		Where(qb.Eq("collection", string(c))).
		OrderBy("record_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list records query: %w", err)
	}

	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}

	out := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		out = append(out, json.RawMessage(row.Payload))
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, c collection.Name, id string) (json.RawMessage, bool, error) {
	query, args, err := qb.Select("payload").From("records").
		Where(
			qb.Eq("collection", string(c)),
			qb.Eq("record_id", id),
		).
		ToSQL()
	if err != nil {
		return nil, false, fmt.Errorf("build get record query: %w", err)
	}

	var row recordRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get record: %w", err)
	}
	return json.RawMessage(row.Payload), true, nil
}

func (s *PostgresStore) Put(ctx context.Context, c collection.Name, id string, payload []byte) error {
	query, args, err := qb.InsertModel("records", recordRow{
		Collection: string(c),
		RecordID:   id,
		Payload:    payload,
		UpdatedAt:  time.Now().UTC(),
	}, "ON CONFLICT (collection, record_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at")
	if err != nil {
		return fmt.Errorf("build upsert record query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, c collection.Name, id string) (bool, error) {
	query, args, err := qb.DeleteFrom("records").
		Where(
			qb.Eq("collection", string(c)),
			qb.Eq("record_id", id),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build delete record query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete record rows affected: %w", err)
	}
	return affected > 0, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
