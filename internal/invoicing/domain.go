package invoicing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvoiceNotFound    = errors.New("invoicing: invoice not found")
	ErrLineNotFound       = errors.New("invoicing: line not found")
	ErrDuplicateNumber    = errors.New("invoicing: invoice number already used")
	ErrImmutableInvoice   = errors.New("invoicing: invoice no longer editable")
	ErrInvalidStatus      = errors.New("invoicing: status transition not allowed")
	ErrInvalidCounterpart = errors.New("invoicing: exactly one of client or supplier required")
	ErrInvalidLine        = errors.New("invoicing: line quantity must be positive and unit price non-negative")
	ErrInvalidVATRate     = errors.New("invoicing: vat rate out of range")
	ErrInvalidDueDate     = errors.New("invoicing: due date before issue date")
)

// InvoiceType distinguishes sales from purchases and their credit notes.
type InvoiceType string

const (
	TypeSale               InvoiceType = "SALE"
	TypePurchase           InvoiceType = "PURCHASE"
	TypeSaleCreditNote     InvoiceType = "SALE_CREDIT_NOTE"
	TypePurchaseCreditNote InvoiceType = "PURCHASE_CREDIT_NOTE"
)

// Valid reports whether the type is known.
func (t InvoiceType) Valid() bool {
	switch t {
	case TypeSale, TypePurchase, TypeSaleCreditNote, TypePurchaseCreditNote:
		return true
	}
	return false
}

// Outbound reports whether the document addresses a client.
func (t InvoiceType) Outbound() bool {
	return t == TypeSale || t == TypeSaleCreditNote
}

// InvoiceStatus tracks the document lifecycle.
type InvoiceStatus string

const (
	StatusDraft     InvoiceStatus = "DRAFT"
	StatusSent      InvoiceStatus = "SENT"
	StatusPaid      InvoiceStatus = "PAID"
	StatusOverdue   InvoiceStatus = "OVERDUE"
	StatusCancelled InvoiceStatus = "CANCELLED"
)

// InvoiceLine is one billed item. Its total derives from quantity and unit
// price; VAT is computed at the invoice level, not per line.
type InvoiceLine struct {
	ID        int64           `json:"id"`
	InvoiceID int64           `json:"invoiceId"`
	Label     string          `json:"label"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Compute derives the line total, rounded half up at two decimals.
func (l *InvoiceLine) Compute() {
	l.Total = l.Quantity.Mul(l.UnitPrice).Round(2)
}

// Invoice is a sale or purchase document with derived totals. One VAT rate
// applies to the whole document.
type Invoice struct {
	ID             int64           `json:"id"`
	OrganizationID int64           `json:"organizationId"`
	Number         string          `json:"number"`
	Type           InvoiceType     `json:"type"`
	Status         InvoiceStatus   `json:"status"`
	ClientID       *int64          `json:"clientId,omitempty"`
	SupplierID     *int64          `json:"supplierId,omitempty"`
	IssueDate      time.Time       `json:"issueDate"`
	DueDate        *time.Time      `json:"dueDate,omitempty"`
	Currency       string          `json:"currency"`
	VATRate        decimal.Decimal `json:"vatRate"`
	TotalHT        decimal.Decimal `json:"totalHt"`
	TotalVAT       decimal.Decimal `json:"totalVat"`
	TotalTTC       decimal.Decimal `json:"totalTtc"`
	Notes          string          `json:"notes,omitempty"`
	Lines          []InvoiceLine   `json:"lines,omitempty"`
	SentAt         *time.Time      `json:"sentAt,omitempty"`
	PaidAt         *time.Time      `json:"paidAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Mutable reports whether lines may still change.
func (inv Invoice) Mutable() bool {
	return inv.Status == StatusDraft
}

// Recompute rebuilds every line total and the invoice totals from the line
// inputs: HT sums the line totals, VAT applies the invoice rate to HT rounded
// half up at two decimals, TTC adds the two. Running it twice yields
// identical results.
func (inv *Invoice) Recompute() {
	ht := decimal.Zero
	for i := range inv.Lines {
		inv.Lines[i].Compute()
		ht = ht.Add(inv.Lines[i].Total)
	}
	inv.TotalHT = ht
	inv.TotalVAT = ht.Mul(inv.VATRate).Div(decimal.NewFromInt(100)).Round(2)
	inv.TotalTTC = ht.Add(inv.TotalVAT)
}

// DueBy reports whether the invoice awaits payment past its due date.
// Invoices without a due date never come due.
func (inv Invoice) DueBy(now time.Time) bool {
	if inv.DueDate == nil {
		return false
	}
	switch inv.Status {
	case StatusSent, StatusOverdue:
		return inv.DueDate.Before(now)
	}
	return false
}

// LineInput carries fields for one invoice line.
type LineInput struct {
	Label     string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// Validate checks a line before persistence. A zero unit price is allowed
// for free items; negative prices are not.
func (in LineInput) Validate() error {
	if in.Label == "" {
		return errors.New("invoicing: line label required")
	}
	if !in.Quantity.IsPositive() || in.UnitPrice.IsNegative() {
		return ErrInvalidLine
	}
	return nil
}

// CreateInvoiceInput carries fields to create a draft invoice. A nil VATRate
// falls back to the configured default; a nil DueDate leaves the invoice
// without one.
type CreateInvoiceInput struct {
	OrganizationID int64
	Number         string
	Type           InvoiceType
	ClientID       *int64
	SupplierID     *int64
	IssueDate      time.Time
	DueDate        *time.Time
	Currency       string
	VATRate        *decimal.Decimal
	Notes          string
	Lines          []LineInput
}

// Validate checks structural constraints: a valid type, exactly one
// counterpart matching the document direction, and coherent dates.
func (in CreateInvoiceInput) Validate() error {
	if in.OrganizationID == 0 {
		return errors.New("invoicing: organization required")
	}
	if in.Number == "" {
		return errors.New("invoicing: number required")
	}
	if !in.Type.Valid() {
		return fmt.Errorf("invoicing: unknown type %q", in.Type)
	}
	if in.Type.Outbound() {
		if in.ClientID == nil || in.SupplierID != nil {
			return ErrInvalidCounterpart
		}
	} else {
		if in.SupplierID == nil || in.ClientID != nil {
			return ErrInvalidCounterpart
		}
	}
	if in.IssueDate.IsZero() {
		return errors.New("invoicing: issue date required")
	}
	if in.DueDate != nil && in.DueDate.Before(in.IssueDate) {
		return ErrInvalidDueDate
	}
	if in.VATRate != nil && (in.VATRate.IsNegative() || in.VATRate.GreaterThan(decimal.NewFromInt(100))) {
		return ErrInvalidVATRate
	}
	for i, line := range in.Lines {
		if err := line.Validate(); err != nil {
			return fmt.Errorf("line %d: %w", i, err)
		}
	}
	return nil
}
