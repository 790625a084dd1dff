package invoicing

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

// Repository persists invoices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertInvoice(ctx context.Context, in CreateInvoiceInput) (Invoice, error)
	GetInvoiceForUpdate(ctx context.Context, invoiceID int64) (Invoice, error)
	ListByOrganization(ctx context.Context, organizationID int64, status InvoiceStatus) ([]Invoice, error)
	InsertLine(ctx context.Context, line InvoiceLine) (InvoiceLine, error)
	GetLines(ctx context.Context, invoiceID int64) ([]InvoiceLine, error)
	DeleteLine(ctx context.Context, invoiceID, lineID int64) error
	UpdateLineTotal(ctx context.Context, lineID int64, total decimal.Decimal) error
	UpdateTotals(ctx context.Context, invoiceID int64, totalHT, totalVAT, totalTTC decimal.Decimal) error
	UpdateStatus(ctx context.Context, invoiceID int64, status InvoiceStatus, sentAt, paidAt *time.Time) error
	MarkOverdueBefore(ctx context.Context, now time.Time) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("invoicing repository not initialised")
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

const invoiceColumns = `id, organization_id, number, type, status, client_id, supplier_id, issue_date, due_date,
currency, vat_rate, total_ht, total_vat, total_ttc, notes, sent_at, paid_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.Number, &inv.Type, &inv.Status,
		&inv.ClientID, &inv.SupplierID, &inv.IssueDate, &inv.DueDate,
		&inv.Currency, &inv.VATRate, &inv.TotalHT, &inv.TotalVAT, &inv.TotalTTC, &inv.Notes,
		&inv.SentAt, &inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func (r *txRepository) InsertInvoice(ctx context.Context, in CreateInvoiceInput) (Invoice, error) {
	invoice, err := scanInvoice(r.tx.QueryRow(ctx, `INSERT INTO invoices
(organization_id, number, type, status, client_id, supplier_id, issue_date, due_date, currency, vat_rate, total_ht, total_vat, total_ttc, notes)
VALUES ($1,$2,$3,'DRAFT',$4,$5,$6,$7,$8,$9,0,0,0,$10)
RETURNING `+invoiceColumns,
		in.OrganizationID, in.Number, in.Type, in.ClientID, in.SupplierID,
		in.IssueDate, in.DueDate, in.Currency, in.VATRate, in.Notes))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Invoice{}, fmt.Errorf("%w: %s", ErrDuplicateNumber, pgErr.ConstraintName)
		}
		return Invoice{}, err
	}
	return invoice, nil
}

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, invoiceID int64) (Invoice, error) {
	invoice, err := scanInvoice(r.tx.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id=$1 FOR UPDATE`, invoiceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return invoice, nil
}

func (r *txRepository) ListByOrganization(ctx context.Context, organizationID int64, status InvoiceStatus) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE organization_id=$1`
	args := []any{organizationID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, status)
	}
	query += ` ORDER BY issue_date DESC, number DESC`
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

func (r *txRepository) InsertLine(ctx context.Context, line InvoiceLine) (InvoiceLine, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO invoice_lines
(invoice_id, label, quantity, unit_price, total)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at`,
		line.InvoiceID, line.Label, line.Quantity, line.UnitPrice, line.Total)
	if err := row.Scan(&line.ID, &line.CreatedAt); err != nil {
		return InvoiceLine{}, err
	}
	return line, nil
}

func (r *txRepository) GetLines(ctx context.Context, invoiceID int64) ([]InvoiceLine, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT id, invoice_id, label, quantity, unit_price, total, created_at
FROM invoice_lines WHERE invoice_id=$1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []InvoiceLine
	for rows.Next() {
		var line InvoiceLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.Label, &line.Quantity, &line.UnitPrice,
			&line.Total, &line.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *txRepository) DeleteLine(ctx context.Context, invoiceID, lineID int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM invoice_lines WHERE id=$1 AND invoice_id=$2`, lineID, invoiceID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *txRepository) UpdateLineTotal(ctx context.Context, lineID int64, total decimal.Decimal) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE invoice_lines SET total=$2 WHERE id=$1`, lineID, total)
	return err
}

func (r *txRepository) UpdateTotals(ctx context.Context, invoiceID int64, totalHT, totalVAT, totalTTC decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx,
		`UPDATE invoices SET total_ht=$2, total_vat=$3, total_ttc=$4, updated_at=NOW() WHERE id=$1`,
		invoiceID, totalHT, totalVAT, totalTTC)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, invoiceID int64, status InvoiceStatus, sentAt, paidAt *time.Time) error {
	cmd, err := r.tx.Exec(ctx,
		`UPDATE invoices SET status=$2, sent_at=COALESCE($3, sent_at), paid_at=COALESCE($4, paid_at), updated_at=NOW() WHERE id=$1`,
		invoiceID, status, sentAt, paidAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *txRepository) MarkOverdueBefore(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := r.tx.Exec(ctx,
		`UPDATE invoices SET status='OVERDUE', updated_at=NOW() WHERE status='SENT' AND due_date IS NOT NULL AND due_date < $1`, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
