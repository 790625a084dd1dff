package organizations

import (
	"errors"
	"strings"
)

func (s *Service) validate(org Organization) error {
	if strings.TrimSpace(org.Name) == "" {
		return errors.New("organization name is required")
	}
	if org.SIREN != "" && len(org.SIREN) != 9 {
		return errors.New("SIREN must be 9 digits")
	}
	if len(org.DefaultCurrency) != 3 {
		return errors.New("default currency must be an ISO 4217 code")
	}
	return nil
}
