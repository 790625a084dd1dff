package clients

import (
	"time"
)

// Client is a customer billed through sale invoices.
type Client struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organizationId"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Address        string    `json:"address,omitempty"`
	VATNumber      string    `json:"vatNumber,omitempty"`
	PaymentDays    int       `json:"paymentDays"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
