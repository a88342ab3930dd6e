// File: internal/ledger/ledger_test.go
package ledger

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flexibleSQLMatcher builds a whitespace-insensitive regex for SQL expectations.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func TestEnsureSchema(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectExec(flexibleSQLMatcher("CREATE TABLE IF NOT EXISTS transactions")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	store := New(mockPool, zap.NewNop())
	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRecord(t *testing.T) {
	t.Run("should insert a row with a generated id and timestamp", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectExec(flexibleSQLMatcher("INSERT INTO transactions")).
			WithArgs(pgxmock.AnyArg(), "https://panel.example", KindDeposit, "user1", "10",
				int64(1200), "deposited successfully", true, "facade.example", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		store := New(mockPool, zap.NewNop())
		err = store.Record(context.Background(), Transaction{
			Target:    "https://panel.example",
			Kind:      KindDeposit,
			Username:  "user1",
			Amount:    "10",
			ElapsedMS: 1200,
			Message:   "deposited successfully",
			Success:   true,
			Host:      "facade.example",
		})
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should propagate insert failures", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		dbErr := errors.New("connection reset")
		mockPool.ExpectExec(flexibleSQLMatcher("INSERT INTO transactions")).
			WillReturnError(dbErr)

		store := New(mockPool, zap.NewNop())
		err = store.Record(context.Background(), Transaction{Kind: KindWithdraw})
		require.Error(t, err)
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestListBetween(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{
		"id", "target", "kind", "username", "amount", "elapsed_ms", "message", "success", "host", "created_at",
	}).AddRow(
		"11111111-1111-1111-1111-111111111111", "https://panel.example", KindDeposit,
		"user1", "10", int64(900), "deposited successfully", true, "facade.example", created,
	).AddRow(
		"22222222-2222-2222-2222-222222222222", "https://panel.example", KindWithdraw,
		"user2", "5", int64(1100), "insufficient balance", false, "facade.example", created.Add(time.Hour),
	)

	mockPool.ExpectQuery(flexibleSQLMatcher("SELECT id, target, kind, username, amount, elapsed_ms, message, success, host, created_at")).
		WithArgs("facade.example", start, end).
		WillReturnRows(rows)

	store := New(mockPool, zap.NewNop())
	txs, err := store.ListBetween(context.Background(), start, end, "facade.example")
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, KindDeposit, txs[0].Kind)
	assert.True(t, txs[0].Success)
	assert.Equal(t, "user2", txs[1].Username)
	assert.False(t, txs[1].Success)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
