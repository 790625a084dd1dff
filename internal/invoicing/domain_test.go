package invoicing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(id int64) *int64 { return &id }

func datePtr(t time.Time) *time.Time { return &t }

func ratePtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestRecomputeDerivesTotals(t *testing.T) {
	invoice := Invoice{
		VATRate: dec("20"),
		Lines: []InvoiceLine{
			{Label: "widgets", Quantity: dec("2"), UnitPrice: dec("50.00")},
			{Label: "shipping", Quantity: dec("1"), UnitPrice: dec("30.00")},
		},
	}
	invoice.Recompute()

	require.True(t, invoice.TotalHT.Equal(dec("130.00")), "ht %s", invoice.TotalHT)
	require.True(t, invoice.TotalVAT.Equal(dec("26.00")), "vat %s", invoice.TotalVAT)
	require.True(t, invoice.TotalTTC.Equal(dec("156.00")), "ttc %s", invoice.TotalTTC)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	invoice := Invoice{
		VATRate: dec("20"),
		Lines: []InvoiceLine{
			{Label: "consulting", Quantity: dec("3.5"), UnitPrice: dec("120.00")},
		},
	}
	invoice.Recompute()
	first := invoice.TotalTTC
	invoice.Recompute()
	require.True(t, invoice.TotalTTC.Equal(first))
}

func TestRecomputeRoundsVATHalfUp(t *testing.T) {
	// 33.33 * 20% = 6.666 -> 6.67
	invoice := Invoice{
		VATRate: dec("20"),
		Lines: []InvoiceLine{
			{Label: "odd amount", Quantity: dec("1"), UnitPrice: dec("33.33")},
		},
	}
	invoice.Recompute()
	require.True(t, invoice.TotalVAT.Equal(dec("6.67")), "vat %s", invoice.TotalVAT)
	require.True(t, invoice.TotalTTC.Equal(dec("40.00")), "ttc %s", invoice.TotalTTC)
}

func TestRecomputeEmptyInvoiceZeroesTotals(t *testing.T) {
	invoice := Invoice{VATRate: dec("20"), TotalHT: dec("99.00"), TotalVAT: dec("9.00"), TotalTTC: dec("108.00")}
	invoice.Recompute()
	require.True(t, invoice.TotalHT.IsZero())
	require.True(t, invoice.TotalVAT.IsZero())
	require.True(t, invoice.TotalTTC.IsZero())
}

func TestRecomputeZeroPriceLine(t *testing.T) {
	invoice := Invoice{
		VATRate: dec("20"),
		Lines: []InvoiceLine{
			{Label: "widgets", Quantity: dec("2"), UnitPrice: dec("50.00")},
			{Label: "free sample", Quantity: dec("1"), UnitPrice: dec("0.00")},
		},
	}
	invoice.Recompute()
	require.True(t, invoice.Lines[1].Total.IsZero())
	require.True(t, invoice.TotalHT.Equal(dec("100.00")))
	require.True(t, invoice.TotalTTC.Equal(dec("120.00")))
}

func TestCreateInvoiceInputCounterpart(t *testing.T) {
	base := CreateInvoiceInput{
		OrganizationID: 1,
		Number:         "FAC-2026-001",
		Type:           TypeSale,
		ClientID:       ptr(10),
		IssueDate:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:        datePtr(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)),
	}
	require.NoError(t, base.Validate())

	noClient := base
	noClient.ClientID = nil
	require.ErrorIs(t, noClient.Validate(), ErrInvalidCounterpart)

	both := base
	both.SupplierID = ptr(20)
	require.ErrorIs(t, both.Validate(), ErrInvalidCounterpart)

	purchase := base
	purchase.Type = TypePurchase
	purchase.ClientID = nil
	purchase.SupplierID = ptr(20)
	require.NoError(t, purchase.Validate())

	creditNote := base
	creditNote.Type = TypeSaleCreditNote
	require.NoError(t, creditNote.Validate())
}

func TestCreateInvoiceInputDates(t *testing.T) {
	in := CreateInvoiceInput{
		OrganizationID: 1,
		Number:         "FAC-2026-002",
		Type:           TypeSale,
		ClientID:       ptr(10),
		IssueDate:      time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		DueDate:        datePtr(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
	}
	require.ErrorIs(t, in.Validate(), ErrInvalidDueDate)

	// Due date is optional.
	in.DueDate = nil
	require.NoError(t, in.Validate())
}

func TestCreateInvoiceInputVATRate(t *testing.T) {
	in := CreateInvoiceInput{
		OrganizationID: 1,
		Number:         "FAC-2026-003",
		Type:           TypeSale,
		ClientID:       ptr(10),
		IssueDate:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, in.Validate())

	in.VATRate = ratePtr("5.5")
	require.NoError(t, in.Validate())

	in.VATRate = ratePtr("120")
	require.ErrorIs(t, in.Validate(), ErrInvalidVATRate)

	in.VATRate = ratePtr("-1")
	require.ErrorIs(t, in.Validate(), ErrInvalidVATRate)
}

func TestLineInputValidate(t *testing.T) {
	good := LineInput{Label: "widgets", Quantity: dec("2"), UnitPrice: dec("50.00")}
	require.NoError(t, good.Validate())

	zeroQty := good
	zeroQty.Quantity = decimal.Zero
	require.ErrorIs(t, zeroQty.Validate(), ErrInvalidLine)

	// Zero price is a valid free item.
	freeItem := good
	freeItem.UnitPrice = decimal.Zero
	require.NoError(t, freeItem.Validate())

	negPrice := good
	negPrice.UnitPrice = dec("-1.00")
	require.ErrorIs(t, negPrice.Validate(), ErrInvalidLine)
}

func TestDueBy(t *testing.T) {
	now := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	due := datePtr(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))

	require.True(t, Invoice{Status: StatusSent, DueDate: due}.DueBy(now))
	require.False(t, Invoice{Status: StatusDraft, DueDate: due}.DueBy(now))
	require.False(t, Invoice{Status: StatusPaid, DueDate: due}.DueBy(now))
	require.False(t, Invoice{Status: StatusCancelled, DueDate: due}.DueBy(now))
	require.False(t, Invoice{Status: StatusSent, DueDate: datePtr(now.AddDate(0, 0, 1))}.DueBy(now))

	// No due date, never due.
	require.False(t, Invoice{Status: StatusSent}.DueBy(now))
}
