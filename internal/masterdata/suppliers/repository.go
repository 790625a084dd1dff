package suppliers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grandlivre-erp/grandlivre/internal/shared"
)

type Repository interface {
	List(ctx context.Context, organizationID int64, filters shared.ListFilters) ([]Supplier, int, error)
	Get(ctx context.Context, id int64) (Supplier, error)
	Create(ctx context.Context, supplier Supplier) (Supplier, error)
	Update(ctx context.Context, id int64, supplier Supplier) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const columns = `id, organization_id, code, name, email, phone, address, vat_number, payment_days, created_at, updated_at`

func (r *repository) List(ctx context.Context, organizationID int64, filters shared.ListFilters) ([]Supplier, int, error) {
	query := `SELECT ` + columns + ` FROM suppliers WHERE organization_id = $1`
	countQuery := `SELECT COUNT(*) FROM suppliers WHERE organization_id = $1`
	args := []any{organizationID}
	countArgs := []any{organizationID}

	if filters.Search != "" {
		query += ` AND (name ILIKE $2 OR code ILIKE $2)`
		countQuery += ` AND (name ILIKE $2 OR code ILIKE $2)`
		args = append(args, "%"+filters.Search+"%")
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		query += ` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
		args = append(args, filters.Limit, filters.Offset())
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		suppliers = append(suppliers, c)
	}
	return suppliers, total, rows.Err()
}

func scan(row pgx.Row) (Supplier, error) {
	var c Supplier
	err := row.Scan(&c.ID, &c.OrganizationID, &c.Code, &c.Name, &c.Email, &c.Phone,
		&c.Address, &c.VATNumber, &c.PaymentDays, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *repository) Get(ctx context.Context, id int64) (Supplier, error) {
	c, err := scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM suppliers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, shared.ErrNotFound
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx,
		`INSERT INTO suppliers (organization_id, code, name, email, phone, address, vat_number, payment_days, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9) RETURNING id`,
		supplier.OrganizationID, supplier.Code, supplier.Name, supplier.Email, supplier.Phone,
		supplier.Address, supplier.VATNumber, supplier.PaymentDays, now).
		Scan(&supplier.ID)
	if err != nil {
		return Supplier{}, err
	}
	supplier.CreatedAt = now
	supplier.UpdatedAt = now
	return supplier, nil
}

func (r *repository) Update(ctx context.Context, id int64, supplier Supplier) error {
	cmd, err := r.db.Exec(ctx,
		`UPDATE suppliers SET code = $1, name = $2, email = $3, phone = $4, address = $5, vat_number = $6, payment_days = $7, updated_at = $8 WHERE id = $9`,
		supplier.Code, supplier.Name, supplier.Email, supplier.Phone, supplier.Address,
		supplier.VATNumber, supplier.PaymentDays, time.Now(), id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "code":
		return "code " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
