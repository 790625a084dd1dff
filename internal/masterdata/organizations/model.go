package organizations

import (
	"time"
)

// Organization is the tenant owning a chart of accounts, periods, and
// invoices.
type Organization struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	LegalName       string    `json:"legalName"`
	SIREN           string    `json:"siren,omitempty"`
	VATNumber       string    `json:"vatNumber,omitempty"`
	Address         string    `json:"address,omitempty"`
	Country         string    `json:"country"`
	DefaultCurrency string    `json:"defaultCurrency"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
