package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Service owns the invoice lifecycle and totals derivation.
type Service struct {
	repo           RepositoryPort
	defaultVATRate decimal.Decimal
	now            func() time.Time
}

// NewService constructs the invoicing service. defaultVATRate applies to
// invoices created without an explicit rate.
func NewService(repo RepositoryPort, defaultVATRate decimal.Decimal) *Service {
	return &Service{repo: repo, defaultVATRate: defaultVATRate, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateInvoice persists a draft with its initial lines and derives totals.
func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (Invoice, error) {
	if err := in.Validate(); err != nil {
		return Invoice{}, err
	}
	if in.VATRate == nil {
		rate := s.defaultVATRate
		in.VATRate = &rate
	}
	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.InsertInvoice(ctx, in)
		if err != nil {
			return err
		}
		lines := make([]InvoiceLine, 0, len(in.Lines))
		for _, li := range in.Lines {
			line := InvoiceLine{InvoiceID: created.ID, Label: li.Label, Quantity: li.Quantity, UnitPrice: li.UnitPrice}
			line.Compute()
			inserted, err := tx.InsertLine(ctx, line)
			if err != nil {
				return err
			}
			lines = append(lines, inserted)
		}
		created.Lines = lines
		created.Recompute()
		if err := tx.UpdateTotals(ctx, created.ID, created.TotalHT, created.TotalVAT, created.TotalTTC); err != nil {
			return err
		}
		invoice = created
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	return invoice, nil
}

// AddLine appends a line to a draft invoice and recomputes totals.
func (s *Service) AddLine(ctx context.Context, invoiceID int64, in LineInput) (Invoice, error) {
	if err := in.Validate(); err != nil {
		return Invoice{}, err
	}
	return s.mutateLines(ctx, invoiceID, func(ctx context.Context, tx TxRepository, invoice Invoice) error {
		line := InvoiceLine{InvoiceID: invoiceID, Label: in.Label, Quantity: in.Quantity, UnitPrice: in.UnitPrice}
		line.Compute()
		_, err := tx.InsertLine(ctx, line)
		return err
	})
}

// RemoveLine detaches a line from a draft invoice and recomputes totals.
func (s *Service) RemoveLine(ctx context.Context, invoiceID, lineID int64) (Invoice, error) {
	return s.mutateLines(ctx, invoiceID, func(ctx context.Context, tx TxRepository, invoice Invoice) error {
		return tx.DeleteLine(ctx, invoiceID, lineID)
	})
}

func (s *Service) mutateLines(ctx context.Context, invoiceID int64, mutate func(context.Context, TxRepository, Invoice) error) (Invoice, error) {
	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !current.Mutable() {
			return ErrImmutableInvoice
		}
		if err := mutate(ctx, tx, current); err != nil {
			return err
		}
		refreshed, err := s.recompute(ctx, tx, current)
		if err != nil {
			return err
		}
		invoice = refreshed
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	return invoice, nil
}

// RecomputeTotals rebuilds the totals of one invoice from its lines. The
// operation is idempotent and works on any status; it repairs drift after
// manual data fixes.
func (s *Service) RecomputeTotals(ctx context.Context, invoiceID int64) (Invoice, error) {
	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		refreshed, err := s.recompute(ctx, tx, current)
		if err != nil {
			return err
		}
		invoice = refreshed
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	return invoice, nil
}

func (s *Service) recompute(ctx context.Context, tx TxRepository, invoice Invoice) (Invoice, error) {
	lines, err := tx.GetLines(ctx, invoice.ID)
	if err != nil {
		return Invoice{}, err
	}
	invoice.Lines = lines
	invoice.Recompute()
	for _, line := range invoice.Lines {
		if err := tx.UpdateLineTotal(ctx, line.ID, line.Total); err != nil {
			return Invoice{}, err
		}
	}
	if err := tx.UpdateTotals(ctx, invoice.ID, invoice.TotalHT, invoice.TotalVAT, invoice.TotalTTC); err != nil {
		return Invoice{}, err
	}
	return invoice, nil
}

// Send marks a draft invoice as issued to its counterpart.
func (s *Service) Send(ctx context.Context, invoiceID int64) (Invoice, error) {
	return s.transition(ctx, invoiceID, StatusSent, func(invoice *Invoice, at time.Time) error {
		if invoice.Status != StatusDraft {
			return fmt.Errorf("%w: %s to %s", ErrInvalidStatus, invoice.Status, StatusSent)
		}
		invoice.SentAt = &at
		return nil
	})
}

// MarkPaid settles a sent or overdue invoice.
func (s *Service) MarkPaid(ctx context.Context, invoiceID int64) (Invoice, error) {
	return s.transition(ctx, invoiceID, StatusPaid, func(invoice *Invoice, at time.Time) error {
		if invoice.Status != StatusSent && invoice.Status != StatusOverdue {
			return fmt.Errorf("%w: %s to %s", ErrInvalidStatus, invoice.Status, StatusPaid)
		}
		invoice.PaidAt = &at
		return nil
	})
}

// Cancel voids an unpaid invoice.
func (s *Service) Cancel(ctx context.Context, invoiceID int64) (Invoice, error) {
	return s.transition(ctx, invoiceID, StatusCancelled, func(invoice *Invoice, at time.Time) error {
		if invoice.Status == StatusPaid || invoice.Status == StatusCancelled {
			return fmt.Errorf("%w: %s to %s", ErrInvalidStatus, invoice.Status, StatusCancelled)
		}
		return nil
	})
}

func (s *Service) transition(ctx context.Context, invoiceID int64, target InvoiceStatus, apply func(*Invoice, time.Time) error) (Invoice, error) {
	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		at := s.now().UTC()
		if err := apply(&current, at); err != nil {
			return err
		}
		current.Status = target
		if err := tx.UpdateStatus(ctx, invoiceID, target, current.SentAt, current.PaidAt); err != nil {
			return err
		}
		invoice = current
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	return invoice, nil
}

// GetInvoice returns an invoice with its lines.
func (s *Service) GetInvoice(ctx context.Context, invoiceID int64) (Invoice, error) {
	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		lines, err := tx.GetLines(ctx, invoiceID)
		if err != nil {
			return err
		}
		current.Lines = lines
		invoice = current
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	return invoice, nil
}

// ListInvoices retrieves invoices of one organization, newest first.
func (s *Service) ListInvoices(ctx context.Context, organizationID int64, status InvoiceStatus) ([]Invoice, error) {
	var invoices []Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		invoices, err = tx.ListByOrganization(ctx, organizationID, status)
		return err
	})
	return invoices, err
}

// MarkOverdue flags every sent invoice whose due date passed. It returns the
// number of invoices flagged; the overdue scan job calls it periodically.
func (s *Service) MarkOverdue(ctx context.Context) (int64, error) {
	var flagged int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		flagged, err = tx.MarkOverdueBefore(ctx, s.now().UTC())
		return err
	})
	return flagged, err
}
