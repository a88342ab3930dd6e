// File: internal/ledger/ledger.go
// Description: Persistent record of completed panel actions, backed by
// PostgreSQL. The HTTP layer never talks to this directly; the Reporter
// feeds it off the response path.

package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Action kind codes, matching the one-letter codes used in the ledger rows.
const (
	KindRegister   = "r"
	KindChangePass = "c"
	KindDeposit    = "d"
	KindWithdraw   = "w"
	KindLock       = "k"
)

// Transaction is one completed gated action.
type Transaction struct {
	ID        string
	Target    string
	Kind      string
	Username  string
	Amount    string
	ElapsedMS int64
	Message   string
	Success   bool
	Host      string
	CreatedAt time.Time
}

// DB is the slice of pgxpool.Pool the store needs. pgxmock satisfies it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store persists transactions.
type Store struct {
	db  DB
	log *zap.Logger
}

// New creates a ledger store over an open connection pool.
func New(db DB, logger *zap.Logger) *Store {
	return &Store{db: db, log: logger.Named("ledger")}
}

// EnsureSchema creates the transactions table if it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id         UUID PRIMARY KEY,
			target     TEXT NOT NULL,
			kind       TEXT NOT NULL,
			username   TEXT NOT NULL,
			amount     TEXT NOT NULL DEFAULT '',
			elapsed_ms BIGINT NOT NULL,
			message    TEXT NOT NULL DEFAULT '',
			success    BOOLEAN NOT NULL,
			host       TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure transactions schema: %w", err)
	}
	return nil
}

// Record inserts one transaction row.
func (s *Store) Record(ctx context.Context, tx Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO transactions (id, target, kind, username, amount, elapsed_ms, message, success, host, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`, tx.ID, tx.Target, tx.Kind, tx.Username, tx.Amount, tx.ElapsedMS, tx.Message, tx.Success, tx.Host, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

// ListBetween returns the transactions recorded through the given host in the
// inclusive date range, oldest first.
func (s *Store) ListBetween(ctx context.Context, start, end time.Time, host string) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, target, kind, username, amount, elapsed_ms, message, success, host, created_at
		FROM transactions
		WHERE host = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at;
	`, host, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var tx Transaction
		if err := rows.Scan(&tx.ID, &tx.Target, &tx.Kind, &tx.Username, &tx.Amount,
			&tx.ElapsedMS, &tx.Message, &tx.Success, &tx.Host, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}
	return txs, nil
}
