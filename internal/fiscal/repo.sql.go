package fiscal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists fiscal periods.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertPeriod(ctx context.Context, in CreatePeriodInput) (Period, error)
	GetPeriod(ctx context.Context, periodID int64) (Period, error)
	GetPeriodForUpdate(ctx context.Context, periodID int64) (Period, error)
	ListPeriodsByOrganization(ctx context.Context, organizationID int64) ([]Period, error)
	CountOverlapping(ctx context.Context, organizationID int64, start, end time.Time) (int64, error)
	CountDraftEntries(ctx context.Context, periodID int64) (int64, error)
	CloseValidatedEntries(ctx context.Context, periodID int64) (int64, error)
	MarkPeriodClosed(ctx context.Context, periodID int64, closedAt time.Time, actorID int64) error
	MarkPeriodArchived(ctx context.Context, periodID int64, archivedAt time.Time) error
	FindOpenPeriodForDate(ctx context.Context, organizationID int64, date time.Time) (Period, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("fiscal repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const periodColumns = `id, organization_id, label, start_date, end_date, status, closed_at, closed_by, archived_at, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.OrganizationID, &p.Label, &p.StartDate, &p.EndDate, &p.Status,
		&p.ClosedAt, &p.ClosedBy, &p.ArchivedAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *txRepository) InsertPeriod(ctx context.Context, in CreatePeriodInput) (Period, error) {
	period, err := scanPeriod(r.tx.QueryRow(ctx, `INSERT INTO fiscal_periods
(organization_id, label, start_date, end_date, status)
VALUES ($1,$2,$3,$4,'OPEN')
RETURNING `+periodColumns,
		in.OrganizationID, in.Label, in.StartDate, in.EndDate))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Period{}, fmt.Errorf("%w: %s", ErrDuplicateLabel, pgErr.ConstraintName)
		}
		return Period{}, err
	}
	return period, nil
}

func (r *txRepository) GetPeriod(ctx context.Context, periodID int64) (Period, error) {
	period, err := scanPeriod(r.tx.QueryRow(ctx,
		`SELECT `+periodColumns+` FROM fiscal_periods WHERE id=$1`, periodID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrPeriodNotFound
		}
		return Period{}, err
	}
	return period, nil
}

func (r *txRepository) GetPeriodForUpdate(ctx context.Context, periodID int64) (Period, error) {
	period, err := scanPeriod(r.tx.QueryRow(ctx,
		`SELECT `+periodColumns+` FROM fiscal_periods WHERE id=$1 FOR UPDATE`, periodID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrPeriodNotFound
		}
		return Period{}, err
	}
	return period, nil
}

func (r *txRepository) ListPeriodsByOrganization(ctx context.Context, organizationID int64) ([]Period, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT `+periodColumns+` FROM fiscal_periods WHERE organization_id=$1 ORDER BY start_date DESC`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var periods []Period
	for rows.Next() {
		period, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, period)
	}
	return periods, rows.Err()
}

func (r *txRepository) CountOverlapping(ctx context.Context, organizationID int64, start, end time.Time) (int64, error) {
	var n int64
	err := r.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM fiscal_periods WHERE organization_id=$1 AND start_date<=$3 AND end_date>=$2`,
		organizationID, start, end).Scan(&n)
	return n, err
}

func (r *txRepository) CountDraftEntries(ctx context.Context, periodID int64) (int64, error) {
	var n int64
	err := r.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM journal_entries WHERE period_id=$1 AND status='DRAFT'`, periodID).Scan(&n)
	return n, err
}

func (r *txRepository) CloseValidatedEntries(ctx context.Context, periodID int64) (int64, error) {
	cmd, err := r.tx.Exec(ctx,
		`UPDATE journal_entries SET status='CLOSED', updated_at=NOW() WHERE period_id=$1 AND status='VALIDATED'`, periodID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *txRepository) MarkPeriodClosed(ctx context.Context, periodID int64, closedAt time.Time, actorID int64) error {
	cmd, err := r.tx.Exec(ctx,
		`UPDATE fiscal_periods SET status='CLOSED', closed_at=$2, closed_by=$3, updated_at=NOW() WHERE id=$1`,
		periodID, closedAt, actorID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPeriodNotFound
	}
	return nil
}

func (r *txRepository) MarkPeriodArchived(ctx context.Context, periodID int64, archivedAt time.Time) error {
	cmd, err := r.tx.Exec(ctx,
		`UPDATE fiscal_periods SET status='ARCHIVED', archived_at=$2, updated_at=NOW() WHERE id=$1`,
		periodID, archivedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPeriodNotFound
	}
	return nil
}

func (r *txRepository) FindOpenPeriodForDate(ctx context.Context, organizationID int64, date time.Time) (Period, error) {
	period, err := scanPeriod(r.tx.QueryRow(ctx,
		`SELECT `+periodColumns+` FROM fiscal_periods
WHERE organization_id=$1 AND status='OPEN' AND start_date<=$2 AND end_date>=$2
ORDER BY start_date DESC LIMIT 1`, organizationID, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrNoCurrentPeriod
		}
		return Period{}, err
	}
	return period, nil
}
