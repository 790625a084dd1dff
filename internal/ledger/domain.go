package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType enumerates chart of accounts categories.
type AccountType string

const (
	AccountTypeAsset            AccountType = "ASSET"
	AccountTypeLiability        AccountType = "LIABILITY"
	AccountTypeAssetOrLiability AccountType = "ASSET_OR_LIABILITY"
	AccountTypeExpense          AccountType = "EXPENSE"
	AccountTypeRevenue          AccountType = "REVENUE"
)

// AccountClass is one of the eight numbered chart classes.
type AccountClass int

// Class labels follow the standard chart layout.
const (
	ClassCapital     AccountClass = 1
	ClassFixedAssets AccountClass = 2
	ClassInventories AccountClass = 3
	ClassThirdParty  AccountClass = 4
	ClassFinancial   AccountClass = 5
	ClassExpenses    AccountClass = 6
	ClassRevenues    AccountClass = 7
	ClassSpecial     AccountClass = 8
)

var classLabels = map[AccountClass]string{
	ClassCapital:     "Capital accounts",
	ClassFixedAssets: "Fixed asset accounts",
	ClassInventories: "Inventory and work-in-progress accounts",
	ClassThirdParty:  "Third party accounts",
	ClassFinancial:   "Financial accounts",
	ClassExpenses:    "Expense accounts",
	ClassRevenues:    "Revenue accounts",
	ClassSpecial:     "Special accounts",
}

// Valid reports whether the class is one of the eight numbered classes.
func (c AccountClass) Valid() bool {
	_, ok := classLabels[c]
	return ok
}

// Label returns the fixed descriptive label of the class.
func (c AccountClass) Label() string {
	return classLabels[c]
}

// EntryStatus enumerates journal entry lifecycle values.
type EntryStatus string

const (
	EntryStatusDraft     EntryStatus = "DRAFT"
	EntryStatusValidated EntryStatus = "VALIDATED"
	EntryStatusClosed    EntryStatus = "CLOSED"
)

var (
	// ErrImbalancedEntry indicates total debit != total credit at validation.
	ErrImbalancedEntry = errors.New("ledger: entry debits and credits do not balance")
	// ErrInvalidLineAmount indicates a line with both or neither side positive.
	ErrInvalidLineAmount = errors.New("ledger: line must carry exactly one positive side")
	// ErrClosedPeriod indicates posting into a closed or archived period.
	ErrClosedPeriod = errors.New("ledger: period is not open for posting")
	// ErrImmutableEntry indicates mutation of a validated or closed entry.
	ErrImmutableEntry = errors.New("ledger: entry is no longer mutable")
	// ErrUnknownAccount indicates a line referencing a missing or inactive account.
	ErrUnknownAccount = errors.New("ledger: unknown or inactive account")
	// ErrDuplicateNumber indicates an account or entry number collision.
	ErrDuplicateNumber = errors.New("ledger: number already in use")
	// ErrAccountCycle indicates a parent assignment that would make an account its own ancestor.
	ErrAccountCycle = errors.New("ledger: account cannot be its own ancestor")
	// ErrTooFewLines indicates an entry with fewer than two lines.
	ErrTooFewLines = errors.New("ledger: entry requires at least two lines")
	// ErrEntryNotFound indicates a missing journal entry.
	ErrEntryNotFound = errors.New("ledger: journal entry not found")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrNegativeAmount indicates a negative posting amount.
	ErrNegativeAmount = errors.New("ledger: amount must not be negative")
	// ErrDateOutOfRange indicates an entry date outside its period bounds.
	ErrDateOutOfRange = errors.New("ledger: entry date outside period")
	// ErrLineNotFound indicates a line absent from its entry.
	ErrLineNotFound = errors.New("ledger: line not found on entry")
	// ErrParentRejectsChildren indicates the parent does not accept sub-accounts.
	ErrParentRejectsChildren = errors.New("ledger: parent account does not accept sub-accounts")
)

// Account models a chart of accounts node. Leaf accounts carry authoritative
// running balances; grouping accounts derive theirs from children at read time.
type Account struct {
	ID             int64
	OrganizationID int64
	Number         string
	Label          string
	Type           AccountType
	Class          AccountClass
	InitialBalance decimal.Decimal
	DebitBalance   decimal.Decimal
	CreditBalance  decimal.Decimal
	IsActive       bool
	AcceptsSub     bool
	Lettrable      bool
	Auxiliary      bool
	ParentID       *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Debit adds a non-negative amount to the running debit balance.
func (a *Account) Debit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	a.DebitBalance = a.DebitBalance.Add(amount)
	return nil
}

// Credit adds a non-negative amount to the running credit balance.
func (a *Account) Credit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	a.CreditBalance = a.CreditBalance.Add(amount)
	return nil
}

// Net returns the direct net balance, debit minus credit.
func (a *Account) Net() decimal.Decimal {
	return a.DebitBalance.Sub(a.CreditBalance)
}

// JournalLine is one debit-or-credit posting against one account. Exactly one
// of Debit/Credit is strictly positive; the other is exactly zero.
type JournalLine struct {
	ID        int64
	EntryID   int64
	AccountID int64
	Label     string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	CreatedAt time.Time
}

// NewJournalLine builds a line, rejecting both-positive and both-zero amounts.
func NewJournalLine(accountID int64, label string, debit, credit decimal.Decimal) (JournalLine, error) {
	if err := checkLineAmounts(debit, credit); err != nil {
		return JournalLine{}, err
	}
	return JournalLine{
		AccountID: accountID,
		Label:     label,
		Debit:     debit,
		Credit:    credit,
	}, nil
}

func checkLineAmounts(debit, credit decimal.Decimal) error {
	if debit.IsNegative() || credit.IsNegative() {
		return fmt.Errorf("%w: negative amount", ErrInvalidLineAmount)
	}
	if debit.IsPositive() == credit.IsPositive() {
		return ErrInvalidLineAmount
	}
	return nil
}

// JournalEntry is a dated, balanced set of postings belonging to one fiscal
// period. A draft may be transiently unbalanced; validation is the single gate
// that checks the invariant and posts amounts into account balances.
type JournalEntry struct {
	ID             int64
	OrganizationID int64
	PeriodID       int64
	AuthorID       int64
	Number         string
	Date           time.Time
	Label          string
	JournalCode    string
	Reference      uuid.UUID
	Status         EntryStatus
	CreatedAt      time.Time
	ValidatedAt    *time.Time
	UpdatedAt      time.Time
	Lines          []JournalLine
}

// Mutable reports whether lines may still be added or removed.
func (e *JournalEntry) Mutable() bool {
	return e.Status == EntryStatusDraft
}

// AddLine appends a line to a draft entry.
func (e *JournalEntry) AddLine(line JournalLine) error {
	if !e.Mutable() {
		return ErrImmutableEntry
	}
	if err := checkLineAmounts(line.Debit, line.Credit); err != nil {
		return err
	}
	line.EntryID = e.ID
	e.Lines = append(e.Lines, line)
	return nil
}

// RemoveLine detaches the line with the given id from a draft entry.
func (e *JournalEntry) RemoveLine(lineID int64) error {
	if !e.Mutable() {
		return ErrImmutableEntry
	}
	for i, line := range e.Lines {
		if line.ID == lineID {
			e.Lines = append(e.Lines[:i], e.Lines[i+1:]...)
			return nil
		}
	}
	return ErrLineNotFound
}

// TotalDebit sums the debit side of all lines.
func (e *JournalEntry) TotalDebit() decimal.Decimal {
	total := decimal.Zero
	for _, line := range e.Lines {
		total = total.Add(line.Debit)
	}
	return total
}

// TotalCredit sums the credit side of all lines.
func (e *JournalEntry) TotalCredit() decimal.Decimal {
	total := decimal.Zero
	for _, line := range e.Lines {
		total = total.Add(line.Credit)
	}
	return total
}

// IsBalanced reports exact equality of total debit and total credit.
func (e *JournalEntry) IsBalanced() bool {
	return e.TotalDebit().Equal(e.TotalCredit())
}

// LineInput describes a journal line for a posting request.
type LineInput struct {
	AccountID int64
	Label     string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// PostingInput groups fields required to create and validate a journal entry.
type PostingInput struct {
	OrganizationID int64
	PeriodID       int64
	AuthorID       int64
	Number         string
	Date           time.Time
	Label          string
	JournalCode    string
	Reference      uuid.UUID
	Lines          []LineInput
}

// Validate ensures the posting input can satisfy the balance invariant.
func (in PostingInput) Validate() error {
	if in.OrganizationID == 0 {
		return errors.New("ledger: organization required")
	}
	if in.PeriodID == 0 {
		return errors.New("ledger: period required")
	}
	if in.Number == "" {
		return errors.New("ledger: entry number required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	debit := decimal.Zero
	credit := decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("ledger: line %d missing account", idx)
		}
		if err := checkLineAmounts(line.Debit, line.Credit); err != nil {
			return fmt.Errorf("line %d: %w", idx, err)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return fmt.Errorf("%w: debit %s, credit %s", ErrImbalancedEntry, debit, credit)
	}
	return nil
}

// CreateAccountInput groups fields for chart of accounts creation.
type CreateAccountInput struct {
	OrganizationID int64
	Number         string
	Label          string
	Type           AccountType
	Class          AccountClass
	InitialBalance decimal.Decimal
	AcceptsSub     bool
	Lettrable      bool
	Auxiliary      bool
	ParentID       *int64
}

// Validate checks structural requirements of the account input.
func (in CreateAccountInput) Validate() error {
	if in.OrganizationID == 0 {
		return errors.New("ledger: organization required")
	}
	if in.Number == "" {
		return errors.New("ledger: account number required")
	}
	if in.Label == "" {
		return errors.New("ledger: account label required")
	}
	switch in.Type {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeAssetOrLiability, AccountTypeExpense, AccountTypeRevenue:
	default:
		return fmt.Errorf("ledger: unknown account type %q", in.Type)
	}
	if !in.Class.Valid() {
		return fmt.Errorf("ledger: unknown account class %d", in.Class)
	}
	return nil
}
