package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

const (
	uniqueViolation      = "23505"
	checkViolation       = "23514"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// maxAttempts bounds how often Atomic reruns a unit that lost a
// serialization conflict.
const maxAttempts = 5

var serializable = &sql.TxOptions{Isolation: sql.LevelSerializable}

// Store implements ports.Repository backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
	q  sqlx.ExtContext
	tx *sqlx.Tx
}

var _ ports.Repository = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, q: db}
}

// Open connects with lib/pq and verifies the connection.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// Atomic runs fn inside one serializable transaction. A unit that loses a
// serialization conflict or a deadlock is rolled back and run again, so fn
// must only touch state it rebuilds on every call. A Store already bound to a
// transaction runs fn directly so nested units join the outer one.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx ports.Repository) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.attempt(ctx, fn)
		if !retryable(err) {
			return err
		}
	}
	return fmt.Errorf("concurrent update after %d attempts (%v): %w", maxAttempts, err, domain.ErrConflict)
}

func (s *Store) attempt(ctx context.Context, fn func(ctx context.Context, tx ports.Repository) error) error {
	tx, err := s.db.BeginTxx(ctx, serializable)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	scoped := &Store{db: s.db, q: tx, tx: tx}

	if err := fn(ctx, scoped); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rollbackErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == serializationFailure || pqErr.Code == deadlockDetected
}

// forUpdate locks the selected row until the surrounding transaction ends.
// Outside a transaction it adds nothing.
func (s *Store) forUpdate() string {
	if s.tx == nil {
		return ""
	}
	return " FOR UPDATE"
}

func (s *Store) unit(ctx context.Context, fn func(store *Store) error) error {
	return s.Atomic(ctx, func(ctx context.Context, tx ports.Repository) error {
		return fn(tx.(*Store))
	})
}

func (s *Store) get(ctx context.Context, dest any, query string, args ...any) error {
	return translate(sqlx.GetContext(ctx, s.q, dest, query, args...))
}

func (s *Store) list(ctx context.Context, dest any, query string, args ...any) error {
	return translate(sqlx.SelectContext(ctx, s.q, dest, query, args...))
}

// exec fails with domain.ErrNotFound when no row was touched.
func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	result, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return translate(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) insert(ctx context.Context, query string, arg any) error {
	_, err := sqlx.NamedExecContext(ctx, s.q, query, arg)
	return translate(err)
}

// translate maps driver errors onto the domain sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && (pqErr.Code == uniqueViolation || pqErr.Code == checkViolation) {
		return fmt.Errorf("%s: %w", pqErr.Constraint, domain.ErrConflict)
	}
	return err
}

func newID() string {
	return uuid.NewString()
}

// now matches the microsecond precision of timestamptz so returned records
// equal what a later read yields.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// jsonb stores a nested value in a JSONB column.
type jsonb[T any] struct {
	V T
}

func (j jsonb[T]) Value() (driver.Value, error) {
	raw, err := json.Marshal(j.V)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (j *jsonb[T]) Scan(src any) error {
	switch value := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(value, &j.V)
	case string:
		return json.Unmarshal([]byte(value), &j.V)
	default:
		return fmt.Errorf("unsupported jsonb source %T", src)
	}
}

func stringArray(values []string) pq.StringArray {
	if values == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(values)
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value.UTC(), Valid: true}
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}
