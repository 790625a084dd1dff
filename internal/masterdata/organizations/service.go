package organizations

import (
	"context"
	"errors"

	"github.com/grandlivre-erp/grandlivre/internal/masterdata"
)

type Service struct {
	repo            Repository
	defaultCountry  string
	defaultCurrency string
}

func NewService(repo Repository, defaultCountry, defaultCurrency string) *Service {
	if defaultCountry == "" {
		defaultCountry = "FR"
	}
	if defaultCurrency == "" {
		defaultCurrency = "EUR"
	}
	return &Service{repo: repo, defaultCountry: defaultCountry, defaultCurrency: defaultCurrency}
}

func (s *Service) List(ctx context.Context) ([]Organization, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Organization, error) {
	if id <= 0 {
		return Organization{}, errors.New("invalid organization ID")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, org Organization) (Organization, error) {
	s.normalize(&org)
	if err := s.validate(org); err != nil {
		return Organization{}, err
	}
	return s.repo.Create(ctx, org)
}

func (s *Service) Update(ctx context.Context, id int64, org Organization) error {
	if id <= 0 {
		return errors.New("invalid organization ID")
	}
	s.normalize(&org)
	if err := s.validate(org); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, org)
}

func (s *Service) normalize(org *Organization) {
	org.Name = masterdata.NormalizeName(org.Name)
	if org.LegalName == "" {
		org.LegalName = org.Name
	}
	org.SIREN = masterdata.NormalizeCode(org.SIREN)
	org.VATNumber = masterdata.NormalizeCode(org.VATNumber)
	if org.Country == "" {
		org.Country = s.defaultCountry
	}
	if org.DefaultCurrency == "" {
		org.DefaultCurrency = s.defaultCurrency
	}
}
