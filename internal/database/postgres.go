package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const (
	uniqueViolation     = pq.ErrorCode("23505")
	foreignKeyViolation = pq.ErrorCode("23503")

	conversationPairConstraint = "conversations_participants_key"
)

type PgMessageStore struct {
	conn *sql.DB
}

func NewPgMessageStore(dsn string) (*PgMessageStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return &PgMessageStore{conn: db}, nil
}

func (db *PgMessageStore) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *PgMessageStore) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// pgErrorCode returns the SQLSTATE and constraint name of a Postgres error,
// or empty strings for anything else.
func pgErrorCode(err error) (pq.ErrorCode, string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code, pqErr.Constraint
	}
	return "", ""
}

// translateConversationInsertError maps the pair uniqueness violation to
// ErrConversationExists so callers can fall back to a lookup.
func translateConversationInsertError(err error) error {
	if code, constraint := pgErrorCode(err); code == uniqueViolation && constraint == conversationPairConstraint {
		return ErrConversationExists
	}
	return fmt.Errorf("insert conversation: %w", err)
}

func translateAppendError(conversationId string, err error) error {
	if code, _ := pgErrorCode(err); code == foreignKeyViolation {
		return fmt.Errorf("conversation %q: %w", conversationId, ErrNotFound)
	}
	return fmt.Errorf("insert conversation message: %w", err)
}
