package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNewJournalLineRequiresExactlyOneSide(t *testing.T) {
	_, err := NewJournalLine(1, "rent", dec("100.00"), decimal.Zero)
	require.NoError(t, err)

	_, err = NewJournalLine(1, "rent", decimal.Zero, dec("100.00"))
	require.NoError(t, err)

	_, err = NewJournalLine(1, "both sides", dec("100.00"), dec("100.00"))
	require.ErrorIs(t, err, ErrInvalidLineAmount)

	_, err = NewJournalLine(1, "no side", decimal.Zero, decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidLineAmount)

	_, err = NewJournalLine(1, "negative", dec("-1.00"), decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidLineAmount)
}

func TestEntryTotalsAndBalance(t *testing.T) {
	entry := JournalEntry{Status: EntryStatusDraft}
	debit, err := NewJournalLine(601, "supplies", dec("100.00"), decimal.Zero)
	require.NoError(t, err)
	credit, err := NewJournalLine(401, "supplier", decimal.Zero, dec("100.00"))
	require.NoError(t, err)

	require.NoError(t, entry.AddLine(debit))
	require.NoError(t, entry.AddLine(credit))

	require.True(t, entry.TotalDebit().Equal(dec("100.00")))
	require.True(t, entry.TotalCredit().Equal(dec("100.00")))
	require.True(t, entry.IsBalanced())
}

func TestEntryTransientlyUnbalancedDraft(t *testing.T) {
	entry := JournalEntry{Status: EntryStatusDraft}
	debit, err := NewJournalLine(601, "supplies", dec("100.00"), decimal.Zero)
	require.NoError(t, err)
	credit, err := NewJournalLine(401, "supplier", decimal.Zero, dec("80.00"))
	require.NoError(t, err)

	require.NoError(t, entry.AddLine(debit))
	require.NoError(t, entry.AddLine(credit))
	require.False(t, entry.IsBalanced())
}

func TestValidatedEntryRejectsMutation(t *testing.T) {
	entry := JournalEntry{Status: EntryStatusValidated}
	line, err := NewJournalLine(601, "late line", dec("10.00"), decimal.Zero)
	require.NoError(t, err)

	require.ErrorIs(t, entry.AddLine(line), ErrImmutableEntry)
	require.ErrorIs(t, entry.RemoveLine(1), ErrImmutableEntry)
}

func TestRemoveLineDetaches(t *testing.T) {
	entry := JournalEntry{Status: EntryStatusDraft}
	line, err := NewJournalLine(601, "supplies", dec("10.00"), decimal.Zero)
	require.NoError(t, err)
	line.ID = 42
	require.NoError(t, entry.AddLine(line))

	require.NoError(t, entry.RemoveLine(42))
	require.Empty(t, entry.Lines)
	require.ErrorIs(t, entry.RemoveLine(42), ErrLineNotFound)
}

func TestAccountDebitCreditNet(t *testing.T) {
	account := Account{}
	require.NoError(t, account.Debit(dec("150.00")))
	require.NoError(t, account.Credit(dec("20.00")))
	require.True(t, account.Net().Equal(dec("130.00")))

	require.ErrorIs(t, account.Debit(dec("-5.00")), ErrNegativeAmount)
	require.ErrorIs(t, account.Credit(dec("-5.00")), ErrNegativeAmount)
}

func TestPostingInputValidate(t *testing.T) {
	base := PostingInput{
		OrganizationID: 1,
		PeriodID:       1,
		Number:         "GL-2026-001",
		Lines: []LineInput{
			{AccountID: 601, Debit: dec("100.00")},
			{AccountID: 401, Credit: dec("100.00")},
		},
	}
	require.NoError(t, base.Validate())

	imbalanced := base
	imbalanced.Lines = []LineInput{
		{AccountID: 601, Debit: dec("100.00")},
		{AccountID: 401, Credit: dec("80.00")},
	}
	require.ErrorIs(t, imbalanced.Validate(), ErrImbalancedEntry)

	short := base
	short.Lines = base.Lines[:1]
	require.ErrorIs(t, short.Validate(), ErrTooFewLines)
}

func TestAccountClassLabels(t *testing.T) {
	for class := ClassCapital; class <= ClassSpecial; class++ {
		require.True(t, class.Valid())
		require.NotEmpty(t, class.Label())
	}
	require.False(t, AccountClass(0).Valid())
	require.False(t, AccountClass(9).Valid())
}
