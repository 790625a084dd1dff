package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/grandlivre-erp/grandlivre/internal/shared"
)

type memoryRepo struct {
	accounts    map[int64]Account
	entries     map[int64]JournalEntry
	lines       map[int64][]JournalLine
	periods     map[int64]PeriodRef
	nextAccount int64
	nextEntry   int64
	nextLine    int64
	lineInserts int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		accounts: make(map[int64]Account),
		entries:  make(map[int64]JournalEntry),
		lines:    make(map[int64][]JournalLine),
		periods:  make(map[int64]PeriodRef),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	// Single-threaded tests: run against a snapshot so a failed fn leaves
	// the repo untouched, mirroring a rollback. Call counters survive the
	// rollback so tests can assert what the service attempted.
	snapshot := r.clone()
	if err := fn(ctx, r); err != nil {
		inserts := r.lineInserts
		*r = *snapshot
		r.lineInserts = inserts
		return err
	}
	return nil
}

func (r *memoryRepo) clone() *memoryRepo {
	out := newMemoryRepo()
	for k, v := range r.accounts {
		out.accounts[k] = v
	}
	for k, v := range r.entries {
		out.entries[k] = v
	}
	for k, v := range r.lines {
		out.lines[k] = append([]JournalLine(nil), v...)
	}
	for k, v := range r.periods {
		out.periods[k] = v
	}
	out.nextAccount, out.nextEntry, out.nextLine = r.nextAccount, r.nextEntry, r.nextLine
	return out
}

func (r *memoryRepo) GetAccount(ctx context.Context, id int64) (Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (r *memoryRepo) InsertAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	for _, a := range r.accounts {
		if a.OrganizationID == in.OrganizationID && a.Number == in.Number {
			return Account{}, ErrDuplicateNumber
		}
	}
	r.nextAccount++
	account := Account{
		ID:             r.nextAccount,
		OrganizationID: in.OrganizationID,
		Number:         in.Number,
		Label:          in.Label,
		Type:           in.Type,
		Class:          in.Class,
		InitialBalance: in.InitialBalance,
		DebitBalance:   decimal.Zero,
		CreditBalance:  decimal.Zero,
		IsActive:       true,
		AcceptsSub:     in.AcceptsSub,
		Lettrable:      in.Lettrable,
		Auxiliary:      in.Auxiliary,
		ParentID:       in.ParentID,
	}
	r.accounts[account.ID] = account
	return account, nil
}

func (r *memoryRepo) UpdateAccountParent(ctx context.Context, id int64, parentID *int64) error {
	a, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.ParentID = parentID
	r.accounts[id] = a
	return nil
}

func (r *memoryRepo) ListAccountsByOrganization(ctx context.Context, organizationID int64) ([]Account, error) {
	var out []Account
	for _, a := range r.accounts {
		if a.OrganizationID == organizationID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetAccountsForUpdate(ctx context.Context, ids []int64) (map[int64]Account, error) {
	out := make(map[int64]Account)
	for _, id := range ids {
		if a, ok := r.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (r *memoryRepo) AddToAccountBalances(ctx context.Context, accountID int64, debit, credit decimal.Decimal) error {
	a, ok := r.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	a.DebitBalance = a.DebitBalance.Add(debit)
	a.CreditBalance = a.CreditBalance.Add(credit)
	r.accounts[accountID] = a
	return nil
}

func (r *memoryRepo) GetPeriodForUpdate(ctx context.Context, periodID int64) (PeriodRef, error) {
	p, ok := r.periods[periodID]
	if !ok {
		return PeriodRef{}, ErrClosedPeriod
	}
	return p, nil
}

func (r *memoryRepo) InsertEntry(ctx context.Context, in PostingInput, status EntryStatus, validatedAt *time.Time) (JournalEntry, error) {
	for _, e := range r.entries {
		if e.OrganizationID == in.OrganizationID && e.Number == in.Number {
			return JournalEntry{}, ErrDuplicateNumber
		}
	}
	r.nextEntry++
	entry := JournalEntry{
		ID:             r.nextEntry,
		OrganizationID: in.OrganizationID,
		PeriodID:       in.PeriodID,
		AuthorID:       in.AuthorID,
		Number:         in.Number,
		Date:           in.Date,
		Label:          in.Label,
		JournalCode:    in.JournalCode,
		Reference:      in.Reference,
		Status:         status,
		CreatedAt:      time.Now(),
		ValidatedAt:    validatedAt,
	}
	r.entries[entry.ID] = entry
	return entry, nil
}

func (r *memoryRepo) InsertLines(ctx context.Context, entryID int64, lines []LineInput) ([]JournalLine, error) {
	r.lineInserts++
	out := make([]JournalLine, 0, len(lines))
	for _, in := range lines {
		r.nextLine++
		line := JournalLine{
			ID:        r.nextLine,
			EntryID:   entryID,
			AccountID: in.AccountID,
			Label:     in.Label,
			Debit:     in.Debit,
			Credit:    in.Credit,
		}
		r.lines[entryID] = append(r.lines[entryID], line)
		out = append(out, line)
	}
	return out, nil
}

func (r *memoryRepo) GetEntryForUpdate(ctx context.Context, entryID int64) (JournalEntry, error) {
	e, ok := r.entries[entryID]
	if !ok {
		return JournalEntry{}, ErrEntryNotFound
	}
	return e, nil
}

func (r *memoryRepo) GetLines(ctx context.Context, entryID int64) ([]JournalLine, error) {
	return append([]JournalLine(nil), r.lines[entryID]...), nil
}

func (r *memoryRepo) DeleteLine(ctx context.Context, entryID, lineID int64) error {
	lines := r.lines[entryID]
	for i, line := range lines {
		if line.ID == lineID {
			r.lines[entryID] = append(lines[:i], lines[i+1:]...)
			return nil
		}
	}
	return ErrLineNotFound
}

func (r *memoryRepo) UpdateEntryStatus(ctx context.Context, entryID int64, status EntryStatus, validatedAt *time.Time) error {
	e, ok := r.entries[entryID]
	if !ok {
		return ErrEntryNotFound
	}
	e.Status = status
	if validatedAt != nil {
		e.ValidatedAt = validatedAt
	}
	r.entries[entryID] = e
	return nil
}

func (r *memoryRepo) ListEntriesByPeriod(ctx context.Context, periodID int64) ([]JournalEntry, error) {
	var out []JournalEntry
	for _, e := range r.entries {
		if e.PeriodID == periodID {
			out = append(out, e)
		}
	}
	return out, nil
}

type stubGuard struct {
	err error
}

func (g stubGuard) EnsureOpenForPosting(ctx context.Context, periodID int64) error {
	return g.err
}

func fixture(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	repo.periods[1] = PeriodRef{
		ID:        1,
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		Status:    shared.PeriodStatusOpen,
	}
	service := NewService(repo, nil)
	service.WithNow(func() time.Time { return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC) })

	_, err := service.CreateAccount(context.Background(), CreateAccountInput{
		OrganizationID: 1, Number: "601", Label: "Purchases", Type: AccountTypeExpense, Class: ClassExpenses,
	})
	require.NoError(t, err)
	_, err = service.CreateAccount(context.Background(), CreateAccountInput{
		OrganizationID: 1, Number: "401", Label: "Suppliers", Type: AccountTypeLiability, Class: ClassThirdParty,
	})
	require.NoError(t, err)
	return service, repo
}

func balancedInput() PostingInput {
	return PostingInput{
		OrganizationID: 1,
		PeriodID:       1,
		AuthorID:       7,
		Number:         "GL-2026-001",
		Date:           time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC),
		Label:          "office supplies",
		JournalCode:    "ACH",
		Lines: []LineInput{
			{AccountID: 1, Label: "supplies", Debit: dec("100.00")},
			{AccountID: 2, Label: "supplier", Credit: dec("100.00")},
		},
	}
}

func TestPostEntryValidatesAndPostsBalances(t *testing.T) {
	service, repo := fixture(t)

	entry, err := service.PostEntry(context.Background(), balancedInput())
	require.NoError(t, err)
	require.Equal(t, EntryStatusValidated, entry.Status)
	require.NotNil(t, entry.ValidatedAt)
	require.Equal(t, time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC), entry.ValidatedAt.UTC())

	require.True(t, repo.accounts[1].DebitBalance.Equal(dec("100.00")))
	require.True(t, repo.accounts[2].CreditBalance.Equal(dec("100.00")))
}

func TestPostEntryImbalancedFailsFast(t *testing.T) {
	service, repo := fixture(t)

	in := balancedInput()
	in.Lines[1].Credit = dec("80.00")
	_, err := service.PostEntry(context.Background(), in)
	require.ErrorIs(t, err, ErrImbalancedEntry)

	require.True(t, repo.accounts[1].DebitBalance.IsZero())
	require.True(t, repo.accounts[2].CreditBalance.IsZero())
	require.Empty(t, repo.entries)
}

func TestValidateDraftImbalancedLeavesDraftUntouched(t *testing.T) {
	service, repo := fixture(t)

	in := balancedInput()
	in.Lines[1].Credit = dec("80.00")
	draft, err := service.SaveDraft(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, EntryStatusDraft, draft.Status)

	_, err = service.ValidateEntry(context.Background(), draft.ID)
	require.ErrorIs(t, err, ErrImbalancedEntry)

	require.Equal(t, EntryStatusDraft, repo.entries[draft.ID].Status)
	require.True(t, repo.accounts[1].DebitBalance.IsZero())
	require.True(t, repo.accounts[2].CreditBalance.IsZero())
}

func TestValidateDraftBalancedSucceeds(t *testing.T) {
	service, repo := fixture(t)

	draft, err := service.SaveDraft(context.Background(), balancedInput())
	require.NoError(t, err)

	validated, err := service.ValidateEntry(context.Background(), draft.ID)
	require.NoError(t, err)
	require.Equal(t, EntryStatusValidated, validated.Status)
	require.NotNil(t, validated.ValidatedAt)
	require.True(t, repo.accounts[1].DebitBalance.Equal(dec("100.00")))
	require.True(t, repo.accounts[2].CreditBalance.Equal(dec("100.00")))
}

func TestValidateEntryTwiceRejected(t *testing.T) {
	service, _ := fixture(t)

	draft, err := service.SaveDraft(context.Background(), balancedInput())
	require.NoError(t, err)
	_, err = service.ValidateEntry(context.Background(), draft.ID)
	require.NoError(t, err)

	_, err = service.ValidateEntry(context.Background(), draft.ID)
	require.ErrorIs(t, err, ErrImmutableEntry)
}

func TestPostEntryClosedPeriod(t *testing.T) {
	service, repo := fixture(t)
	p := repo.periods[1]
	p.Status = shared.PeriodStatusClosed
	repo.periods[1] = p

	_, err := service.PostEntry(context.Background(), balancedInput())
	require.ErrorIs(t, err, ErrClosedPeriod)
}

func TestPostEntryDateOutsidePeriod(t *testing.T) {
	service, _ := fixture(t)

	in := balancedInput()
	in.Date = time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC)
	_, err := service.PostEntry(context.Background(), in)
	require.ErrorIs(t, err, ErrDateOutOfRange)
}

func TestPostEntryUnknownAccount(t *testing.T) {
	service, repo := fixture(t)

	in := balancedInput()
	in.Lines[0].AccountID = 99
	_, err := service.PostEntry(context.Background(), in)
	require.ErrorIs(t, err, ErrUnknownAccount)

	// The reference is rejected before any line reaches storage; on a real
	// database a premature insert would fail on the account foreign key
	// instead of producing the typed error.
	require.Zero(t, repo.lineInserts)
	require.Empty(t, repo.entries)
}

func TestPostEntryInactiveAccount(t *testing.T) {
	service, repo := fixture(t)
	a := repo.accounts[1]
	a.IsActive = false
	repo.accounts[1] = a

	_, err := service.PostEntry(context.Background(), balancedInput())
	require.ErrorIs(t, err, ErrUnknownAccount)
}

func TestPostEntryGuardedDuringClosure(t *testing.T) {
	service, repo := fixture(t)
	service = NewService(repo, stubGuard{err: shared.ErrLockHeld})
	service.WithNow(func() time.Time { return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC) })

	_, err := service.PostEntry(context.Background(), balancedInput())
	require.ErrorIs(t, err, ErrClosedPeriod)
}

func TestCreateAccountDuplicateNumber(t *testing.T) {
	service, _ := fixture(t)

	_, err := service.CreateAccount(context.Background(), CreateAccountInput{
		OrganizationID: 1, Number: "601", Label: "dup", Type: AccountTypeExpense, Class: ClassExpenses,
	})
	require.ErrorIs(t, err, ErrDuplicateNumber)
}

func TestCreateAccountParentChecks(t *testing.T) {
	service, _ := fixture(t)

	parent, err := service.CreateAccount(context.Background(), CreateAccountInput{
		OrganizationID: 1, Number: "40", Label: "Suppliers group", Type: AccountTypeLiability,
		Class: ClassThirdParty, AcceptsSub: true,
	})
	require.NoError(t, err)

	_, err = service.CreateAccount(context.Background(), CreateAccountInput{
		OrganizationID: 1, Number: "4011", Label: "Supplier X", Type: AccountTypeLiability,
		Class: ClassThirdParty, ParentID: &parent.ID,
	})
	require.NoError(t, err)

	// Account 1 was created without AcceptsSub.
	leaf := int64(1)
	_, err = service.CreateAccount(context.Background(), CreateAccountInput{
		OrganizationID: 1, Number: "6011", Label: "child of leaf", Type: AccountTypeExpense,
		Class: ClassExpenses, ParentID: &leaf,
	})
	require.ErrorIs(t, err, ErrParentRejectsChildren)
}

func TestReparentAccountRejectsCycle(t *testing.T) {
	service, repo := fixture(t)

	parent, err := service.CreateAccount(context.Background(), CreateAccountInput{
		OrganizationID: 1, Number: "40", Label: "group", Type: AccountTypeLiability,
		Class: ClassThirdParty, AcceptsSub: true,
	})
	require.NoError(t, err)
	child, err := service.CreateAccount(context.Background(), CreateAccountInput{
		OrganizationID: 1, Number: "4011", Label: "child", Type: AccountTypeLiability,
		Class: ClassThirdParty, AcceptsSub: true, ParentID: &parent.ID,
	})
	require.NoError(t, err)

	err = service.ReparentAccount(context.Background(), parent.ID, &child.ID)
	require.ErrorIs(t, err, ErrAccountCycle)
	require.Nil(t, repo.accounts[parent.ID].ParentID)
}

func TestConsolidatedBalanceFromService(t *testing.T) {
	service, repo := fixture(t)

	parent, err := service.CreateAccount(context.Background(), CreateAccountInput{
		OrganizationID: 1, Number: "40", Label: "group", Type: AccountTypeLiability,
		Class: ClassThirdParty, AcceptsSub: true,
	})
	require.NoError(t, err)
	for i, id := range []int64{1, 2} {
		a := repo.accounts[id]
		a.ParentID = &parent.ID
		if i == 0 {
			a.DebitBalance = dec("150.00")
			a.CreditBalance = dec("20.00")
		} else {
			a.DebitBalance = dec("30.00")
			a.CreditBalance = dec("10.00")
		}
		repo.accounts[id] = a
	}
	// Poison the grouping account's direct balance; it must be ignored.
	g := repo.accounts[parent.ID]
	g.DebitBalance = dec("999.00")
	repo.accounts[parent.ID] = g

	balance, err := service.ConsolidatedBalance(context.Background(), parent.ID)
	require.NoError(t, err)
	require.True(t, balance.Debit.Equal(dec("180.00")))
	require.True(t, balance.Credit.Equal(dec("30.00")))
	require.True(t, balance.Net.Equal(dec("150.00")))
}

func TestAddAndRemoveLineOnDraft(t *testing.T) {
	service, repo := fixture(t)

	in := balancedInput()
	in.Lines = in.Lines[:1]
	draft, err := service.SaveDraft(context.Background(), in)
	require.NoError(t, err)

	line, err := service.AddLine(context.Background(), draft.ID, LineInput{
		AccountID: 2, Label: "supplier", Credit: dec("100.00"),
	})
	require.NoError(t, err)
	require.Len(t, repo.lines[draft.ID], 2)

	require.NoError(t, service.RemoveLine(context.Background(), draft.ID, line.ID))
	require.Len(t, repo.lines[draft.ID], 1)

	_, err = service.ValidateEntry(context.Background(), draft.ID)
	require.ErrorIs(t, err, ErrTooFewLines)
}
