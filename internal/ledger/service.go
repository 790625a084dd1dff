package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grandlivre-erp/grandlivre/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// PeriodGuard blocks postings while a period closure is in flight.
type PeriodGuard interface {
	EnsureOpenForPosting(ctx context.Context, periodID int64) error
}

// PeriodRef is the slice of fiscal period state the ledger needs for posting
// checks; the fiscal module owns the full lifecycle.
type PeriodRef struct {
	ID        int64
	StartDate time.Time
	EndDate   time.Time
	Status    string
}

// Service coordinates chart of accounts maintenance, entry validation, and
// consolidated balance reads.
type Service struct {
	repo  RepositoryPort
	guard PeriodGuard
	now   func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, guard PeriodGuard) *Service {
	return &Service{repo: repo, guard: guard, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateAccount inserts a chart of accounts node after validating its parent.
func (s *Service) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if in.ParentID != nil {
			parent, err := tx.GetAccount(ctx, *in.ParentID)
			if err != nil {
				return err
			}
			if parent.OrganizationID != in.OrganizationID {
				return fmt.Errorf("%w: parent belongs to another organization", ErrAccountNotFound)
			}
			if !parent.AcceptsSub {
				return ErrParentRejectsChildren
			}
		}
		inserted, err := tx.InsertAccount(ctx, in)
		if err != nil {
			return err
		}
		account = inserted
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// ReparentAccount moves an account under a new parent, rejecting cycles.
func (s *Service) ReparentAccount(ctx context.Context, accountID int64, parentID *int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if parentID != nil {
			parent, err := tx.GetAccount(ctx, *parentID)
			if err != nil {
				return err
			}
			if parent.OrganizationID != account.OrganizationID {
				return fmt.Errorf("%w: parent belongs to another organization", ErrAccountNotFound)
			}
			if !parent.AcceptsSub {
				return ErrParentRejectsChildren
			}
			chart, err := tx.ListAccountsByOrganization(ctx, account.OrganizationID)
			if err != nil {
				return err
			}
			idx, err := NewChartIndex(chart)
			if err != nil {
				return err
			}
			if idx.WouldCycle(accountID, parentID) {
				return ErrAccountCycle
			}
		}
		return tx.UpdateAccountParent(ctx, accountID, parentID)
	})
}

// SaveDraft persists a draft entry with its initial lines. Drafts may be
// transiently unbalanced; each line still satisfies the one-sided invariant.
func (s *Service) SaveDraft(ctx context.Context, in PostingInput) (JournalEntry, error) {
	if in.OrganizationID == 0 || in.PeriodID == 0 || in.Number == "" {
		return JournalEntry{}, errors.New("ledger: organization, period, and number required")
	}
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return JournalEntry{}, fmt.Errorf("ledger: line %d missing account", idx)
		}
		if err := checkLineAmounts(line.Debit, line.Credit); err != nil {
			return JournalEntry{}, fmt.Errorf("line %d: %w", idx, err)
		}
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.GetPeriodForUpdate(ctx, in.PeriodID)
		if err != nil {
			return err
		}
		if period.Status != shared.PeriodStatusOpen {
			return ErrClosedPeriod
		}
		if in.Date.Before(period.StartDate) || in.Date.After(period.EndDate) {
			return ErrDateOutOfRange
		}
		if err := s.checkAccounts(ctx, tx, in.OrganizationID, in.Lines); err != nil {
			return err
		}
		inserted, err := tx.InsertEntry(ctx, in, EntryStatusDraft, nil)
		if err != nil {
			return err
		}
		lines, err := tx.InsertLines(ctx, inserted.ID, in.Lines)
		if err != nil {
			return err
		}
		inserted.Lines = lines
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// AddLine appends a line to a draft entry.
func (s *Service) AddLine(ctx context.Context, entryID int64, in LineInput) (JournalLine, error) {
	if err := checkLineAmounts(in.Debit, in.Credit); err != nil {
		return JournalLine{}, err
	}
	var line JournalLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if !entry.Mutable() {
			return ErrImmutableEntry
		}
		period, err := tx.GetPeriodForUpdate(ctx, entry.PeriodID)
		if err != nil {
			return err
		}
		if period.Status != shared.PeriodStatusOpen {
			return ErrClosedPeriod
		}
		if err := s.checkAccounts(ctx, tx, entry.OrganizationID, []LineInput{in}); err != nil {
			return err
		}
		lines, err := tx.InsertLines(ctx, entryID, []LineInput{in})
		if err != nil {
			return err
		}
		line = lines[0]
		return nil
	})
	if err != nil {
		return JournalLine{}, err
	}
	return line, nil
}

// RemoveLine detaches a line from a draft entry.
func (s *Service) RemoveLine(ctx context.Context, entryID, lineID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if !entry.Mutable() {
			return ErrImmutableEntry
		}
		period, err := tx.GetPeriodForUpdate(ctx, entry.PeriodID)
		if err != nil {
			return err
		}
		if period.Status != shared.PeriodStatusOpen {
			return ErrClosedPeriod
		}
		return tx.DeleteLine(ctx, entryID, lineID)
	})
}

// ValidateEntry checks the balance invariant on a draft entry and, on
// success, posts each line into its account balances and stamps the entry
// Validated. A failed validation leaves every balance untouched.
func (s *Service) ValidateEntry(ctx context.Context, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if current.Status != EntryStatusDraft {
			return ErrImmutableEntry
		}
		lines, err := tx.GetLines(ctx, entryID)
		if err != nil {
			return err
		}
		current.Lines = lines
		validated, err := s.post(ctx, tx, current)
		if err != nil {
			return err
		}
		entry = validated
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// PostEntry creates and validates an entry in a single transaction: the
// one-shot path used by callers that build the entry up front.
func (s *Service) PostEntry(ctx context.Context, in PostingInput) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Account references must hold before lines hit storage, otherwise a
		// bad reference surfaces as a foreign key violation instead of
		// ErrUnknownAccount.
		if err := s.checkAccounts(ctx, tx, in.OrganizationID, in.Lines); err != nil {
			return err
		}
		inserted, err := tx.InsertEntry(ctx, in, EntryStatusDraft, nil)
		if err != nil {
			return err
		}
		lines, err := tx.InsertLines(ctx, inserted.ID, in.Lines)
		if err != nil {
			return err
		}
		inserted.Lines = lines
		validated, err := s.post(ctx, tx, inserted)
		if err != nil {
			return err
		}
		entry = validated
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// post performs the shared validation gate: period checks, balance invariant,
// account lookups, balance posting, and the status transition.
func (s *Service) post(ctx context.Context, tx TxRepository, entry JournalEntry) (JournalEntry, error) {
	if s.guard != nil {
		if err := s.guard.EnsureOpenForPosting(ctx, entry.PeriodID); err != nil {
			if errors.Is(err, shared.ErrLockHeld) {
				return JournalEntry{}, fmt.Errorf("%w: closure in progress", ErrClosedPeriod)
			}
			return JournalEntry{}, err
		}
	}
	period, err := tx.GetPeriodForUpdate(ctx, entry.PeriodID)
	if err != nil {
		return JournalEntry{}, err
	}
	if period.Status != shared.PeriodStatusOpen {
		return JournalEntry{}, ErrClosedPeriod
	}
	if entry.Date.Before(period.StartDate) || entry.Date.After(period.EndDate) {
		return JournalEntry{}, ErrDateOutOfRange
	}
	if len(entry.Lines) < 2 {
		return JournalEntry{}, ErrTooFewLines
	}
	if !entry.IsBalanced() {
		return JournalEntry{}, fmt.Errorf("%w: debit %s, credit %s",
			ErrImbalancedEntry, entry.TotalDebit(), entry.TotalCredit())
	}

	ids := make([]int64, 0, len(entry.Lines))
	for _, line := range entry.Lines {
		ids = append(ids, line.AccountID)
	}
	accounts, err := tx.GetAccountsForUpdate(ctx, uniqueIDs(ids))
	if err != nil {
		return JournalEntry{}, err
	}
	for _, line := range entry.Lines {
		account, ok := accounts[line.AccountID]
		if !ok {
			return JournalEntry{}, fmt.Errorf("%w: id %d", ErrUnknownAccount, line.AccountID)
		}
		if !account.IsActive {
			return JournalEntry{}, fmt.Errorf("%w: account %s is inactive", ErrUnknownAccount, account.Number)
		}
		if account.OrganizationID != entry.OrganizationID {
			return JournalEntry{}, fmt.Errorf("%w: account %s belongs to another organization", ErrUnknownAccount, account.Number)
		}
	}
	for _, line := range entry.Lines {
		if err := tx.AddToAccountBalances(ctx, line.AccountID, line.Debit, line.Credit); err != nil {
			return JournalEntry{}, err
		}
	}

	validatedAt := s.now().UTC()
	if err := tx.UpdateEntryStatus(ctx, entry.ID, EntryStatusValidated, &validatedAt); err != nil {
		return JournalEntry{}, err
	}
	entry.Status = EntryStatusValidated
	entry.ValidatedAt = &validatedAt
	return entry, nil
}

// checkAccounts verifies each referenced account exists, is active, and
// belongs to the entry's organization.
func (s *Service) checkAccounts(ctx context.Context, tx TxRepository, orgID int64, lines []LineInput) error {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.AccountID)
	}
	accounts, err := tx.GetAccountsForUpdate(ctx, uniqueIDs(ids))
	if err != nil {
		return err
	}
	for _, line := range lines {
		account, ok := accounts[line.AccountID]
		if !ok {
			return fmt.Errorf("%w: id %d", ErrUnknownAccount, line.AccountID)
		}
		if !account.IsActive {
			return fmt.Errorf("%w: account %s is inactive", ErrUnknownAccount, account.Number)
		}
		if account.OrganizationID != orgID {
			return fmt.Errorf("%w: account %s belongs to another organization", ErrUnknownAccount, account.Number)
		}
	}
	return nil
}

// ConsolidatedBalance derives the rollup for one account from the current
// chart. The computation always happens at read time.
func (s *Service) ConsolidatedBalance(ctx context.Context, accountID int64) (ConsolidatedBalance, error) {
	var balance ConsolidatedBalance
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		chart, err := tx.ListAccountsByOrganization(ctx, account.OrganizationID)
		if err != nil {
			return err
		}
		idx, err := NewChartIndex(chart)
		if err != nil {
			return err
		}
		balance, err = idx.Consolidated(accountID)
		return err
	})
	if err != nil {
		return ConsolidatedBalance{}, err
	}
	return balance, nil
}

// GetEntry returns an entry with its lines.
func (s *Service) GetEntry(ctx context.Context, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		lines, err := tx.GetLines(ctx, entryID)
		if err != nil {
			return err
		}
		current.Lines = lines
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// ListAccounts retrieves the chart of accounts of one organization.
func (s *Service) ListAccounts(ctx context.Context, organizationID int64) ([]Account, error) {
	var accounts []Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		accounts, err = tx.ListAccountsByOrganization(ctx, organizationID)
		return err
	})
	return accounts, err
}

// ListEntriesByPeriod retrieves entries recorded against one period.
func (s *Service) ListEntriesByPeriod(ctx context.Context, periodID int64) ([]JournalEntry, error) {
	var entries []JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entries, err = tx.ListEntriesByPeriod(ctx, periodID)
		return err
	})
	return entries, err
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
