package suppliers

import (
	"errors"
	"strings"
)

func (s *Service) validate(supplier Supplier) error {
	if supplier.OrganizationID <= 0 {
		return errors.New("supplier organization is required")
	}
	if strings.TrimSpace(supplier.Code) == "" {
		return errors.New("supplier code is required")
	}
	if strings.TrimSpace(supplier.Name) == "" {
		return errors.New("supplier name is required")
	}
	if supplier.PaymentDays < 0 {
		return errors.New("payment days must not be negative")
	}
	return nil
}
