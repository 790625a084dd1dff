package organizations

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grandlivre-erp/grandlivre/internal/shared"
)

type Repository interface {
	List(ctx context.Context) ([]Organization, error)
	Get(ctx context.Context, id int64) (Organization, error)
	Create(ctx context.Context, org Organization) (Organization, error)
	Update(ctx context.Context, id int64, org Organization) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context) ([]Organization, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, legal_name, siren, vat_number, address, country, default_currency, created_at, updated_at
FROM organizations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		var o Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.LegalName, &o.SIREN, &o.VATNumber, &o.Address,
			&o.Country, &o.DefaultCurrency, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Organization, error) {
	var o Organization
	err := r.db.QueryRow(ctx,
		`SELECT id, name, legal_name, siren, vat_number, address, country, default_currency, created_at, updated_at
FROM organizations WHERE id = $1`, id).
		Scan(&o.ID, &o.Name, &o.LegalName, &o.SIREN, &o.VATNumber, &o.Address,
			&o.Country, &o.DefaultCurrency, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Organization{}, shared.ErrNotFound
	}
	return o, err
}

func (r *repository) Create(ctx context.Context, org Organization) (Organization, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx,
		`INSERT INTO organizations (name, legal_name, siren, vat_number, address, country, default_currency, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8) RETURNING id`,
		org.Name, org.LegalName, org.SIREN, org.VATNumber, org.Address, org.Country, org.DefaultCurrency, now).
		Scan(&org.ID)
	if err != nil {
		return Organization{}, err
	}
	org.CreatedAt = now
	org.UpdatedAt = now
	return org, nil
}

func (r *repository) Update(ctx context.Context, id int64, org Organization) error {
	cmd, err := r.db.Exec(ctx,
		`UPDATE organizations SET name = $1, legal_name = $2, siren = $3, vat_number = $4, address = $5, country = $6, default_currency = $7, updated_at = $8 WHERE id = $9`,
		org.Name, org.LegalName, org.SIREN, org.VATNumber, org.Address, org.Country, org.DefaultCurrency, time.Now(), id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
