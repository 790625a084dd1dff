package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists ledger entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetAccount(ctx context.Context, id int64) (Account, error)
	InsertAccount(ctx context.Context, in CreateAccountInput) (Account, error)
	UpdateAccountParent(ctx context.Context, id int64, parentID *int64) error
	ListAccountsByOrganization(ctx context.Context, organizationID int64) ([]Account, error)
	GetAccountsForUpdate(ctx context.Context, ids []int64) (map[int64]Account, error)
	AddToAccountBalances(ctx context.Context, accountID int64, debit, credit decimal.Decimal) error
	GetPeriodForUpdate(ctx context.Context, periodID int64) (PeriodRef, error)
	InsertEntry(ctx context.Context, in PostingInput, status EntryStatus, validatedAt *time.Time) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []LineInput) ([]JournalLine, error)
	GetEntryForUpdate(ctx context.Context, entryID int64) (JournalEntry, error)
	GetLines(ctx context.Context, entryID int64) ([]JournalLine, error)
	DeleteLine(ctx context.Context, entryID, lineID int64) error
	UpdateEntryStatus(ctx context.Context, entryID int64, status EntryStatus, validatedAt *time.Time) error
	ListEntriesByPeriod(ctx context.Context, periodID int64) ([]JournalEntry, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
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

const accountColumns = `id, organization_id, number, label, type, class, initial_balance, debit_balance, credit_balance,
is_active, accepts_sub, lettrable, auxiliary, parent_id, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.OrganizationID, &a.Number, &a.Label, &a.Type, &a.Class,
		&a.InitialBalance, &a.DebitBalance, &a.CreditBalance,
		&a.IsActive, &a.AcceptsSub, &a.Lettrable, &a.Auxiliary, &a.ParentID, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *txRepository) GetAccount(ctx context.Context, id int64) (Account, error) {
	account, err := scanAccount(r.tx.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return account, nil
}

func (r *txRepository) InsertAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts
(organization_id, number, label, type, class, initial_balance, debit_balance, credit_balance, is_active, accepts_sub, lettrable, auxiliary, parent_id)
VALUES ($1,$2,$3,$4,$5,$6,0,0,TRUE,$7,$8,$9,$10)
RETURNING id, created_at, updated_at`,
		in.OrganizationID, in.Number, in.Label, in.Type, in.Class, in.InitialBalance,
		in.AcceptsSub, in.Lettrable, in.Auxiliary, in.ParentID)
	account := Account{
		OrganizationID: in.OrganizationID,
		Number:         in.Number,
		Label:          in.Label,
		Type:           in.Type,
		Class:          in.Class,
		InitialBalance: in.InitialBalance,
		DebitBalance:   decimal.Zero,
		CreditBalance:  decimal.Zero,
		IsActive:       true,
		AcceptsSub:     in.AcceptsSub,
		Lettrable:      in.Lettrable,
		Auxiliary:      in.Auxiliary,
		ParentID:       in.ParentID,
	}
	if err := row.Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt); err != nil {
		return Account{}, mapDuplicate(err)
	}
	return account, nil
}

func (r *txRepository) UpdateAccountParent(ctx context.Context, id int64, parentID *int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET parent_id=$2, updated_at=NOW() WHERE id=$1`, id, parentID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) ListAccountsByOrganization(ctx context.Context, organizationID int64) ([]Account, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE organization_id=$1 ORDER BY number`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (r *txRepository) GetAccountsForUpdate(ctx context.Context, ids []int64) (map[int64]Account, error) {
	// Consistent lock order avoids deadlocks between concurrent validations.
	rows, err := r.tx.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	accounts := make(map[int64]Account, len(ids))
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts[account.ID] = account
	}
	return accounts, rows.Err()
}

func (r *txRepository) AddToAccountBalances(ctx context.Context, accountID int64, debit, credit decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx,
		`UPDATE accounts SET debit_balance=debit_balance+$2, credit_balance=credit_balance+$3, updated_at=NOW() WHERE id=$1`,
		accountID, debit, credit)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) GetPeriodForUpdate(ctx context.Context, periodID int64) (PeriodRef, error) {
	var p PeriodRef
	err := r.tx.QueryRow(ctx,
		`SELECT id, start_date, end_date, status FROM fiscal_periods WHERE id=$1 FOR UPDATE`, periodID).
		Scan(&p.ID, &p.StartDate, &p.EndDate, &p.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PeriodRef{}, ErrClosedPeriod
		}
		return PeriodRef{}, err
	}
	return p, nil
}

const entryColumns = `id, organization_id, period_id, author_id, number, date, label, journal_code, reference, status, created_at, validated_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.OrganizationID, &e.PeriodID, &e.AuthorID, &e.Number, &e.Date, &e.Label,
		&e.JournalCode, &e.Reference, &e.Status, &e.CreatedAt, &e.ValidatedAt, &e.UpdatedAt)
	return e, err
}

func (r *txRepository) InsertEntry(ctx context.Context, in PostingInput, status EntryStatus, validatedAt *time.Time) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries
(organization_id, period_id, author_id, number, date, label, journal_code, reference, status, validated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING id, created_at, updated_at`,
		in.OrganizationID, in.PeriodID, in.AuthorID, in.Number, in.Date, in.Label, in.JournalCode, in.Reference, status, validatedAt)
	entry := JournalEntry{
		OrganizationID: in.OrganizationID,
		PeriodID:       in.PeriodID,
		AuthorID:       in.AuthorID,
		Number:         in.Number,
		Date:           in.Date,
		Label:          in.Label,
		JournalCode:    in.JournalCode,
		Reference:      in.Reference,
		Status:         status,
		ValidatedAt:    validatedAt,
	}
	if err := row.Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return JournalEntry{}, mapDuplicate(err)
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []LineInput) ([]JournalLine, error) {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		row := r.tx.QueryRow(ctx, `INSERT INTO journal_lines (entry_id, account_id, label, debit, credit)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at`, entryID, line.AccountID, line.Label, line.Debit, line.Credit)
		inserted := JournalLine{
			EntryID:   entryID,
			AccountID: line.AccountID,
			Label:     line.Label,
			Debit:     line.Debit,
			Credit:    line.Credit,
		}
		if err := row.Scan(&inserted.ID, &inserted.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, inserted)
	}
	return out, nil
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) GetLines(ctx context.Context, entryID int64) ([]JournalLine, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT id, entry_id, account_id, label, debit, credit, created_at FROM journal_lines WHERE entry_id=$1 ORDER BY id`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Label, &line.Debit, &line.Credit, &line.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *txRepository) DeleteLine(ctx context.Context, entryID, lineID int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE id=$1 AND entry_id=$2`, lineID, entryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *txRepository) UpdateEntryStatus(ctx context.Context, entryID int64, status EntryStatus, validatedAt *time.Time) error {
	cmd, err := r.tx.Exec(ctx,
		`UPDATE journal_entries SET status=$2, validated_at=COALESCE($3, validated_at), updated_at=NOW() WHERE id=$1`,
		entryID, status, validatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) ListEntriesByPeriod(ctx context.Context, periodID int64) ([]JournalEntry, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT `+entryColumns+` FROM journal_entries WHERE period_id=$1 ORDER BY date, number`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// mapDuplicate translates unique violations into ErrDuplicateNumber.
func mapDuplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicateNumber, pgErr.ConstraintName)
	}
	return err
}
