package clients

import (
	"errors"
	"strings"
)

func (s *Service) validate(client Client) error {
	if client.OrganizationID <= 0 {
		return errors.New("client organization is required")
	}
	if strings.TrimSpace(client.Code) == "" {
		return errors.New("client code is required")
	}
	if strings.TrimSpace(client.Name) == "" {
		return errors.New("client name is required")
	}
	if client.PaymentDays < 0 {
		return errors.New("payment days must not be negative")
	}
	return nil
}
