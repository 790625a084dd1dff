package fiscal

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/grandlivre-erp/grandlivre/internal/platform/httpx"
	"github.com/grandlivre-erp/grandlivre/internal/shared"
)

// Handler wires fiscal period endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers HTTP routes for the fiscal module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/fiscal/periods", h.CreatePeriod)
	r.Get("/fiscal/periods", h.ListPeriods)
	r.Get("/fiscal/periods/current", h.CurrentPeriod)
	r.Get("/fiscal/periods/{id}", h.GetPeriod)
	r.Post("/fiscal/periods/{id}/close", h.ClosePeriod)
	r.Post("/fiscal/periods/{id}/archive", h.ArchivePeriod)
}

type createPeriodRequest struct {
	OrganizationID int64     `json:"organizationId" validate:"required"`
	Label          string    `json:"label" validate:"required"`
	StartDate      time.Time `json:"startDate" validate:"required"`
	EndDate        time.Time `json:"endDate" validate:"required"`
}

// CreatePeriod opens a new fiscal period.
func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req createPeriodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	period, err := h.service.CreatePeriod(r.Context(), CreatePeriodInput{
		OrganizationID: req.OrganizationID,
		Label:          req.Label,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
	})
	if err != nil {
		h.respondError(w, "create period", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, period)
}

// ListPeriods lists periods of one organization.
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	orgID, err := strconv.ParseInt(r.URL.Query().Get("organizationId"), 10, 64)
	if err != nil || orgID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "organizationId query parameter required")
		return
	}
	periods, err := h.service.ListPeriods(r.Context(), orgID)
	if err != nil {
		h.respondError(w, "list periods", err)
		return
	}
	httpx.JSON(w, http.StatusOK, periods)
}

// CurrentPeriod returns the open period covering a date, today by default.
func (h *Handler) CurrentPeriod(w http.ResponseWriter, r *http.Request) {
	orgID, err := strconv.ParseInt(r.URL.Query().Get("organizationId"), 10, 64)
	if err != nil || orgID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "organizationId query parameter required")
		return
	}
	date := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}
	period, err := h.service.CurrentPeriod(r.Context(), orgID, date)
	if err != nil {
		h.respondError(w, "current period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

// GetPeriod returns one period.
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid period id")
		return
	}
	period, err := h.service.GetPeriod(r.Context(), id)
	if err != nil {
		h.respondError(w, "get period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

// ClosePeriod freezes a period.
func (h *Handler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid period id")
		return
	}
	actor := shared.ActorFromContext(r.Context())
	result, err := h.service.ClosePeriod(r.Context(), id, actor)
	if err != nil {
		h.respondError(w, "close period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// ArchivePeriod moves a closed period to its terminal state.
func (h *Handler) ArchivePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid period id")
		return
	}
	period, err := h.service.ArchivePeriod(r.Context(), id)
	if err != nil {
		h.respondError(w, "archive period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrPeriodNotFound), errors.Is(err, ErrNoCurrentPeriod):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrPeriodOverlap), errors.Is(err, ErrDuplicateLabel),
		errors.Is(err, ErrCloseInProgress), errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrDraftEntriesLeft):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidRange):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Period", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
