// File: internal/ledger/reporter_test.go
package ledger

import (
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestReporterWritesAuditLine(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	audit := zap.New(core)

	r := NewReporter(nil, audit, zap.NewNop())
	r.Report(Transaction{
		Target:   "https://panel.example",
		Kind:     KindDeposit,
		Username: "user1",
		Amount:   "10",
		Message:  "deposited successfully",
		Success:  true,
		Host:     "facade.example",
	})
	r.Wait()

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "deposited successfully", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "https://panel.example", fields["target"])
	assert.Equal(t, KindDeposit, fields["kind"])
	assert.Equal(t, true, fields["success"])
}

func TestReporterLogsStoreFailure(t *testing.T) {
	t.Parallel()

	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectExec(flexibleSQLMatcher("INSERT INTO transactions")).
		WillReturnError(errors.New("connection refused"))

	core, logs := observer.New(zapcore.ErrorLevel)
	r := NewReporter(New(mockPool, zap.NewNop()), nil, zap.New(core))

	// The dispatch itself must never fail, whatever the store does.
	r.Report(Transaction{Kind: KindWithdraw, Target: "https://panel.example"})
	r.Wait()

	require.Len(t, logs.All(), 1, "a reporter failure must be logged, not dropped")
	assert.Contains(t, logs.All()[0].Message, "Failed to persist")
}
