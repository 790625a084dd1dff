package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/grandlivre-erp/grandlivre/internal/jobs"
)

// IntegrityChecker scans validated and closed entries for balance drift.
// Posting rejects imbalanced entries up front, so any hit here means data
// was touched outside the application.
type IntegrityChecker struct {
	logger  *slog.Logger
	pool    *pgxpool.Pool
	metrics *jobmetrics.Metrics
}

// NewIntegrityChecker constructs the checker.
func NewIntegrityChecker(logger *slog.Logger, pool *pgxpool.Pool, metrics *jobmetrics.Metrics) *IntegrityChecker {
	return &IntegrityChecker{logger: logger, pool: pool, metrics: metrics}
}

// Handle processes TaskLedgerIntegrity tasks.
func (c *IntegrityChecker) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := c.metrics.Track("ledger_integrity")
	rows, err := c.pool.Query(ctx, `
SELECT e.id, e.number, SUM(l.debit) AS total_debit, SUM(l.credit) AS total_credit
FROM journal_entries e
JOIN journal_lines l ON l.entry_id = e.id
WHERE e.status IN ('VALIDATED', 'CLOSED')
GROUP BY e.id, e.number
HAVING SUM(l.debit) <> SUM(l.credit)`)
	if err != nil {
		return tracker.End(err)
	}
	defer rows.Close()

	var broken int
	for rows.Next() {
		var (
			id            int64
			number        string
			debit, credit string
		)
		if err := rows.Scan(&id, &number, &debit, &credit); err != nil {
			return tracker.End(err)
		}
		broken++
		c.logger.Error("imbalanced entry detected",
			slog.Int64("entry_id", id),
			slog.String("number", number),
			slog.String("debit", debit),
			slog.String("credit", credit))
	}
	if err := rows.Err(); err != nil {
		return tracker.End(err)
	}
	if broken > 0 {
		return tracker.End(fmt.Errorf("ledger integrity: %d imbalanced entries", broken))
	}
	return tracker.End(nil)
}
