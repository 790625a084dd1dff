package fiscal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/grandlivre-erp/grandlivre/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Locker serialises period closure and lets posting probes see an in-flight
// closure. *shared.PeriodLocker satisfies it.
type Locker interface {
	Acquire(ctx context.Context, periodID int64, owner string) error
	Release(ctx context.Context, periodID int64, owner string) error
	Locked(ctx context.Context, periodID int64) (bool, error)
}

// Service owns the fiscal period lifecycle.
type Service struct {
	repo   RepositoryPort
	locker Locker
	now    func() time.Time
}

// NewService constructs the fiscal service.
func NewService(repo RepositoryPort, locker Locker) *Service {
	return &Service{repo: repo, locker: locker, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreatePeriod opens a new period after checking it does not overlap an
// existing one for the same organization.
func (s *Service) CreatePeriod(ctx context.Context, in CreatePeriodInput) (Period, error) {
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		n, err := tx.CountOverlapping(ctx, in.OrganizationID, in.StartDate, in.EndDate)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrPeriodOverlap
		}
		created, err := tx.InsertPeriod(ctx, in)
		if err != nil {
			return err
		}
		period = created
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	return period, nil
}

// ClosePeriod freezes a period. The closure lock blocks concurrent entry
// validation for its duration; draft entries left in the period abort the
// closure. Validated entries are stamped closed, the period itself is
// stamped with the closure time and actor.
func (s *Service) ClosePeriod(ctx context.Context, periodID, actorID int64) (CloseResult, error) {
	owner := uuid.NewString()
	if s.locker != nil {
		if err := s.locker.Acquire(ctx, periodID, owner); err != nil {
			if errors.Is(err, shared.ErrLockHeld) {
				return CloseResult{}, ErrCloseInProgress
			}
			return CloseResult{}, err
		}
		defer func() { _ = s.locker.Release(context.WithoutCancel(ctx), periodID, owner) }()
	}

	var result CloseResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.GetPeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if err := shared.ValidatePeriodTransition(period.Status, shared.PeriodStatusClosed); err != nil {
			return fmt.Errorf("%w: %s to %s", err, period.Status, shared.PeriodStatusClosed)
		}
		if period.Status == shared.PeriodStatusClosed {
			return fmt.Errorf("%w: already closed", ErrInvalidTransition)
		}
		drafts, err := tx.CountDraftEntries(ctx, periodID)
		if err != nil {
			return err
		}
		if drafts > 0 {
			return fmt.Errorf("%w: %d draft(s)", ErrDraftEntriesLeft, drafts)
		}
		closed, err := tx.CloseValidatedEntries(ctx, periodID)
		if err != nil {
			return err
		}
		closedAt := s.now().UTC()
		if err := tx.MarkPeriodClosed(ctx, periodID, closedAt, actorID); err != nil {
			return err
		}
		period.Status = shared.PeriodStatusClosed
		period.ClosedAt = &closedAt
		period.ClosedBy = &actorID
		result = CloseResult{Period: period, EntriesClosed: closed}
		return nil
	})
	if err != nil {
		return CloseResult{}, err
	}
	return result, nil
}

// ArchivePeriod moves a closed period to its terminal archived state.
func (s *Service) ArchivePeriod(ctx context.Context, periodID int64) (Period, error) {
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if current.Status == shared.PeriodStatusArchived {
			return fmt.Errorf("%w: already archived", ErrInvalidTransition)
		}
		if err := shared.ValidatePeriodTransition(current.Status, shared.PeriodStatusArchived); err != nil {
			return fmt.Errorf("%w: %s to %s", err, current.Status, shared.PeriodStatusArchived)
		}
		archivedAt := s.now().UTC()
		if err := tx.MarkPeriodArchived(ctx, periodID, archivedAt); err != nil {
			return err
		}
		current.Status = shared.PeriodStatusArchived
		current.ArchivedAt = &archivedAt
		period = current
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	return period, nil
}

// GetPeriod returns one period.
func (s *Service) GetPeriod(ctx context.Context, periodID int64) (Period, error) {
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		period, err = tx.GetPeriod(ctx, periodID)
		return err
	})
	return period, err
}

// ListPeriods returns every period of one organization, newest first.
func (s *Service) ListPeriods(ctx context.Context, organizationID int64) ([]Period, error) {
	var periods []Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		periods, err = tx.ListPeriodsByOrganization(ctx, organizationID)
		return err
	})
	return periods, err
}

// CurrentPeriod finds the open period covering a date.
func (s *Service) CurrentPeriod(ctx context.Context, organizationID int64, date time.Time) (Period, error) {
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		period, err = tx.FindOpenPeriodForDate(ctx, organizationID, date)
		return err
	})
	return period, err
}

// Guard adapts the closure lock into the posting-side check the ledger
// performs before touching balances.
type Guard struct {
	locker Locker
}

// NewGuard builds a Guard over the closure lock.
func NewGuard(locker Locker) *Guard {
	return &Guard{locker: locker}
}

// EnsureOpenForPosting fails with shared.ErrLockHeld while a closure holds
// the period lock.
func (g *Guard) EnsureOpenForPosting(ctx context.Context, periodID int64) error {
	if g == nil || g.locker == nil {
		return nil
	}
	locked, err := g.locker.Locked(ctx, periodID)
	if err != nil {
		return err
	}
	if locked {
		return shared.ErrLockHeld
	}
	return nil
}
