package fiscal

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/grandlivre-erp/grandlivre/internal/shared"
)

type memoryRepo struct {
	periods map[int64]Period
	drafts  map[int64]int64
	posted  map[int64]int64
	closed  map[int64]int64
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		periods: make(map[int64]Period),
		drafts:  make(map[int64]int64),
		posted:  make(map[int64]int64),
		closed:  make(map[int64]int64),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) InsertPeriod(ctx context.Context, in CreatePeriodInput) (Period, error) {
	r.nextID++
	period := Period{
		ID:             r.nextID,
		OrganizationID: in.OrganizationID,
		Label:          in.Label,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		Status:         shared.PeriodStatusOpen,
		CreatedAt:      time.Now(),
	}
	r.periods[period.ID] = period
	return period, nil
}

func (r *memoryRepo) GetPeriod(ctx context.Context, periodID int64) (Period, error) {
	p, ok := r.periods[periodID]
	if !ok {
		return Period{}, ErrPeriodNotFound
	}
	return p, nil
}

func (r *memoryRepo) GetPeriodForUpdate(ctx context.Context, periodID int64) (Period, error) {
	return r.GetPeriod(ctx, periodID)
}

func (r *memoryRepo) ListPeriodsByOrganization(ctx context.Context, organizationID int64) ([]Period, error) {
	var out []Period
	for _, p := range r.periods {
		if p.OrganizationID == organizationID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) CountOverlapping(ctx context.Context, organizationID int64, start, end time.Time) (int64, error) {
	var n int64
	for _, p := range r.periods {
		if p.OrganizationID == organizationID && !p.StartDate.After(end) && !p.EndDate.Before(start) {
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) CountDraftEntries(ctx context.Context, periodID int64) (int64, error) {
	return r.drafts[periodID], nil
}

func (r *memoryRepo) CloseValidatedEntries(ctx context.Context, periodID int64) (int64, error) {
	n := r.posted[periodID]
	r.closed[periodID] += n
	r.posted[periodID] = 0
	return n, nil
}

func (r *memoryRepo) MarkPeriodClosed(ctx context.Context, periodID int64, closedAt time.Time, actorID int64) error {
	p, ok := r.periods[periodID]
	if !ok {
		return ErrPeriodNotFound
	}
	p.Status = shared.PeriodStatusClosed
	p.ClosedAt = &closedAt
	p.ClosedBy = &actorID
	r.periods[periodID] = p
	return nil
}

func (r *memoryRepo) MarkPeriodArchived(ctx context.Context, periodID int64, archivedAt time.Time) error {
	p, ok := r.periods[periodID]
	if !ok {
		return ErrPeriodNotFound
	}
	p.Status = shared.PeriodStatusArchived
	p.ArchivedAt = &archivedAt
	r.periods[periodID] = p
	return nil
}

func (r *memoryRepo) FindOpenPeriodForDate(ctx context.Context, organizationID int64, date time.Time) (Period, error) {
	for _, p := range r.periods {
		if p.OrganizationID == organizationID && p.Open() && p.Contains(date) {
			return p, nil
		}
	}
	return Period{}, ErrNoCurrentPeriod
}

func lockerFixture(t *testing.T) *shared.PeriodLocker {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return shared.NewPeriodLocker(client, time.Minute)
}

func fixture(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	service := NewService(repo, lockerFixture(t))
	service.WithNow(func() time.Time { return time.Date(2027, 1, 5, 9, 0, 0, 0, time.UTC) })
	return service, repo
}

func exercise2026() CreatePeriodInput {
	return CreatePeriodInput{
		OrganizationID: 1,
		Label:          "FY 2026",
		StartDate:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreatePeriodRejectsOverlap(t *testing.T) {
	service, _ := fixture(t)

	_, err := service.CreatePeriod(context.Background(), exercise2026())
	require.NoError(t, err)

	overlapping := exercise2026()
	overlapping.Label = "H2 2026"
	overlapping.StartDate = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	overlapping.EndDate = time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC)
	_, err = service.CreatePeriod(context.Background(), overlapping)
	require.ErrorIs(t, err, ErrPeriodOverlap)

	next := exercise2026()
	next.Label = "FY 2027"
	next.StartDate = time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	next.EndDate = time.Date(2027, 12, 31, 0, 0, 0, 0, time.UTC)
	_, err = service.CreatePeriod(context.Background(), next)
	require.NoError(t, err)
}

func TestCreatePeriodRejectsInvertedRange(t *testing.T) {
	service, _ := fixture(t)

	in := exercise2026()
	in.StartDate, in.EndDate = in.EndDate, in.StartDate
	_, err := service.CreatePeriod(context.Background(), in)
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestClosePeriodStampsAndClosesEntries(t *testing.T) {
	service, repo := fixture(t)

	period, err := service.CreatePeriod(context.Background(), exercise2026())
	require.NoError(t, err)
	repo.posted[period.ID] = 3

	result, err := service.ClosePeriod(context.Background(), period.ID, 42)
	require.NoError(t, err)
	require.Equal(t, shared.PeriodStatusClosed, result.Period.Status)
	require.Equal(t, int64(3), result.EntriesClosed)
	require.NotNil(t, result.Period.ClosedAt)
	require.Equal(t, time.Date(2027, 1, 5, 9, 0, 0, 0, time.UTC), result.Period.ClosedAt.UTC())
	require.NotNil(t, result.Period.ClosedBy)
	require.Equal(t, int64(42), *result.Period.ClosedBy)
	require.Equal(t, int64(3), repo.closed[period.ID])
}

func TestClosePeriodRejectsDrafts(t *testing.T) {
	service, repo := fixture(t)

	period, err := service.CreatePeriod(context.Background(), exercise2026())
	require.NoError(t, err)
	repo.drafts[period.ID] = 2

	_, err = service.ClosePeriod(context.Background(), period.ID, 42)
	require.ErrorIs(t, err, ErrDraftEntriesLeft)
	require.Equal(t, shared.PeriodStatusOpen, repo.periods[period.ID].Status)
}

func TestClosePeriodTwiceRejected(t *testing.T) {
	service, _ := fixture(t)

	period, err := service.CreatePeriod(context.Background(), exercise2026())
	require.NoError(t, err)

	_, err = service.ClosePeriod(context.Background(), period.ID, 42)
	require.NoError(t, err)
	_, err = service.ClosePeriod(context.Background(), period.ID, 42)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestClosePeriodConcurrentHolderRejected(t *testing.T) {
	repo := newMemoryRepo()
	locker := lockerFixture(t)
	service := NewService(repo, locker)

	period, err := service.CreatePeriod(context.Background(), exercise2026())
	require.NoError(t, err)

	require.NoError(t, locker.Acquire(context.Background(), period.ID, "other-closer"))
	_, err = service.ClosePeriod(context.Background(), period.ID, 42)
	require.ErrorIs(t, err, ErrCloseInProgress)
}

func TestClosePeriodReleasesLock(t *testing.T) {
	repo := newMemoryRepo()
	locker := lockerFixture(t)
	service := NewService(repo, locker)

	period, err := service.CreatePeriod(context.Background(), exercise2026())
	require.NoError(t, err)

	_, err = service.ClosePeriod(context.Background(), period.ID, 42)
	require.NoError(t, err)

	locked, err := locker.Locked(context.Background(), period.ID)
	require.NoError(t, err)
	require.False(t, locked)
}

func TestArchiveRequiresClosure(t *testing.T) {
	service, _ := fixture(t)

	period, err := service.CreatePeriod(context.Background(), exercise2026())
	require.NoError(t, err)

	_, err = service.ArchivePeriod(context.Background(), period.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = service.ClosePeriod(context.Background(), period.ID, 42)
	require.NoError(t, err)

	archived, err := service.ArchivePeriod(context.Background(), period.ID)
	require.NoError(t, err)
	require.Equal(t, shared.PeriodStatusArchived, archived.Status)
	require.NotNil(t, archived.ArchivedAt)

	_, err = service.ArchivePeriod(context.Background(), period.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCurrentPeriod(t *testing.T) {
	service, _ := fixture(t)

	period, err := service.CreatePeriod(context.Background(), exercise2026())
	require.NoError(t, err)

	found, err := service.CurrentPeriod(context.Background(), 1, time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, period.ID, found.ID)

	_, err = service.CurrentPeriod(context.Background(), 1, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, ErrNoCurrentPeriod)
}

func TestGuardProbesClosureLock(t *testing.T) {
	locker := lockerFixture(t)
	guard := NewGuard(locker)

	require.NoError(t, guard.EnsureOpenForPosting(context.Background(), 1))

	require.NoError(t, locker.Acquire(context.Background(), 1, "closer"))
	err := guard.EnsureOpenForPosting(context.Background(), 1)
	require.ErrorIs(t, err, shared.ErrLockHeld)

	require.NoError(t, locker.Release(context.Background(), 1, "closer"))
	require.NoError(t, guard.EnsureOpenForPosting(context.Background(), 1))
}
