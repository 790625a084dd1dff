package suppliers

import (
	"context"
	"errors"

	"github.com/grandlivre-erp/grandlivre/internal/masterdata"
	"github.com/grandlivre-erp/grandlivre/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, organizationID int64, filters shared.ListFilters) ([]Supplier, int, error) {
	if organizationID <= 0 {
		return nil, 0, errors.New("invalid organization ID")
	}
	return s.repo.List(ctx, organizationID, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, errors.New("invalid supplier ID")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	normalize(&supplier)
	if err := s.validate(supplier); err != nil {
		return Supplier{}, err
	}
	return s.repo.Create(ctx, supplier)
}

func (s *Service) Update(ctx context.Context, id int64, supplier Supplier) error {
	if id <= 0 {
		return errors.New("invalid supplier ID")
	}
	normalize(&supplier)
	if err := s.validate(supplier); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, supplier)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("invalid supplier ID")
	}
	return s.repo.Delete(ctx, id)
}

func normalize(supplier *Supplier) {
	supplier.Code = masterdata.NormalizeCode(supplier.Code)
	supplier.Name = masterdata.NormalizeName(supplier.Name)
	supplier.VATNumber = masterdata.NormalizeCode(supplier.VATNumber)
	if supplier.PaymentDays == 0 {
		supplier.PaymentDays = 30
	}
}
