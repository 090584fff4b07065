package database

import (
	"context"
	"database/sql"
	"time"
)

// queryTimeout bounds every store call so a dead connection surfaces as an
// error instead of a hung command.
const queryTimeout = 5 * time.Second

type PgChatRepository struct {
	conn *sql.DB
}

func NewPgChatRepository(dsn string) (*PgChatRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgChatRepository{conn: db}, nil
}

// NewPgChatRepositoryWithConn wraps an existing connection, used by tests
// that manage their own database lifecycle.
func NewPgChatRepositoryWithConn(conn *sql.DB) *PgChatRepository {
	return &PgChatRepository{conn: conn}
}

func (db *PgChatRepository) Ping() error {
	ctx, cancel := queryContext()
	defer cancel()

	return db.conn.PingContext(ctx)
}

func (db *PgChatRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func queryContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), queryTimeout)
}
