// File: internal/ledger/reporter.go
package ledger

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reporter records completed actions off the response path. A report never
// blocks or fails the HTTP response; reporter failures are logged instead.
type Reporter struct {
	store   *Store // nil when no database is configured
	audit   *zap.Logger
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewReporter wires the reporter to the ledger store and the month-keyed
// audit logger. Either may be nil-equivalent: store nil skips persistence,
// audit nil skips artifact lines.
func NewReporter(store *Store, audit *zap.Logger, logger *zap.Logger) *Reporter {
	return &Reporter{
		store:   store,
		audit:   audit,
		log:     logger.Named("reporter"),
		timeout: 10 * time.Second,
	}
}

// Report dispatches the transaction asynchronously.
func (r *Reporter) Report(tx Transaction) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.report(tx)
	}()
}

func (r *Reporter) report(tx Transaction) {
	if r.audit != nil {
		r.audit.Info(tx.Message,
			zap.String("target", tx.Target),
			zap.String("kind", tx.Kind),
			zap.String("user", tx.Username),
			zap.String("amount", tx.Amount),
			zap.Int64("elapsed_ms", tx.ElapsedMS),
			zap.Bool("success", tx.Success),
			zap.String("host", tx.Host),
		)
	}

	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.store.Record(ctx, tx); err != nil {
		// The client already has its response; all we can do is not lose the
		// failure silently.
		r.log.Error("Failed to persist transaction.",
			zap.String("target", tx.Target),
			zap.String("kind", tx.Kind),
			zap.Error(err))
	}
}

// Wait blocks until every dispatched report has finished. Used by shutdown
// and tests.
func (r *Reporter) Wait() {
	r.wg.Wait()
}
