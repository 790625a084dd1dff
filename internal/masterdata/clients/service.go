package clients

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

func (s *Service) List(ctx context.Context, organizationID int64, filters shared.ListFilters) ([]Client, int, error) {
	if organizationID <= 0 {
		return nil, 0, errors.New("invalid organization ID")
	}
	return s.repo.List(ctx, organizationID, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Client, error) {
	if id <= 0 {
		return Client{}, errors.New("invalid client ID")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, client Client) (Client, error) {
	normalize(&client)
	if err := s.validate(client); err != nil {
		return Client{}, err
	}
	return s.repo.Create(ctx, client)
}

func (s *Service) Update(ctx context.Context, id int64, client Client) error {
	if id <= 0 {
		return errors.New("invalid client ID")
	}
	normalize(&client)
	if err := s.validate(client); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, client)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("invalid client ID")
	}
	return s.repo.Delete(ctx, id)
}

func normalize(client *Client) {
	client.Code = masterdata.NormalizeCode(client.Code)
	client.Name = masterdata.NormalizeName(client.Name)
	client.VATNumber = masterdata.NormalizeCode(client.VATNumber)
	if client.PaymentDays == 0 {
		client.PaymentDays = 30
	}
}
