package fiscal

import (
	"errors"
	"time"

	"github.com/grandlivre-erp/grandlivre/internal/shared"
)

var (
	ErrPeriodNotFound    = errors.New("fiscal: period not found")
	ErrPeriodOverlap     = errors.New("fiscal: period overlaps an existing one")
	ErrInvalidRange      = errors.New("fiscal: start date must not be after end date")
	ErrDraftEntriesLeft  = errors.New("fiscal: draft entries remain in period")
	ErrCloseInProgress   = errors.New("fiscal: closure already in progress")
	ErrNoCurrentPeriod   = errors.New("fiscal: no open period covers this date")
	ErrDuplicateLabel    = errors.New("fiscal: period label already used")
	ErrInvalidTransition = shared.ErrInvalidPeriodTransition
)

// Period is an accounting exercise window. Entries post only while it is
// open; closure freezes the ledger for the window and is one-way.
type Period struct {
	ID             int64      `json:"id"`
	OrganizationID int64      `json:"organizationId"`
	Label          string     `json:"label"`
	StartDate      time.Time  `json:"startDate"`
	EndDate        time.Time  `json:"endDate"`
	Status         string     `json:"status"`
	ClosedAt       *time.Time `json:"closedAt,omitempty"`
	ClosedBy       *int64     `json:"closedBy,omitempty"`
	ArchivedAt     *time.Time `json:"archivedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Contains reports whether a date falls inside the period, bounds included.
func (p Period) Contains(date time.Time) bool {
	return !date.Before(p.StartDate) && !date.After(p.EndDate)
}

// Open reports whether the period still accepts postings.
func (p Period) Open() bool {
	return p.Status == shared.PeriodStatusOpen
}

// CreatePeriodInput carries fields to open a new period.
type CreatePeriodInput struct {
	OrganizationID int64
	Label          string
	StartDate      time.Time
	EndDate        time.Time
}

// Validate checks structural constraints before hitting storage.
func (in CreatePeriodInput) Validate() error {
	if in.OrganizationID == 0 {
		return errors.New("fiscal: organization required")
	}
	if in.Label == "" {
		return errors.New("fiscal: label required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return errors.New("fiscal: start and end dates required")
	}
	if in.StartDate.After(in.EndDate) {
		return ErrInvalidRange
	}
	return nil
}

// CloseResult summarises what a closure did.
type CloseResult struct {
	Period        Period `json:"period"`
	EntriesClosed int64  `json:"entriesClosed"`
}
