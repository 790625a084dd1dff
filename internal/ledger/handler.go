package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/grandlivre-erp/grandlivre/internal/platform/httpx"
)

// Handler wires ledger endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	balances  singleflight.Group
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers HTTP routes for the ledger module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/ledger/accounts", h.CreateAccount)
	r.Get("/ledger/accounts", h.ListAccounts)
	r.Get("/ledger/accounts/{id}/consolidated", h.ConsolidatedBalance)
	r.Post("/ledger/entries", h.PostEntry)
	r.Post("/ledger/entries/drafts", h.SaveDraft)
	r.Get("/ledger/entries/{id}", h.GetEntry)
	r.Post("/ledger/entries/{id}/validate", h.ValidateEntry)
	r.Post("/ledger/entries/{id}/lines", h.AddLine)
	r.Delete("/ledger/entries/{id}/lines/{lineID}", h.RemoveLine)
}

type createAccountRequest struct {
	OrganizationID int64           `json:"organizationId" validate:"required"`
	Number         string          `json:"number" validate:"required"`
	Label          string          `json:"label" validate:"required"`
	Type           string          `json:"type" validate:"required,oneof=ASSET LIABILITY ASSET_OR_LIABILITY EXPENSE REVENUE"`
	Class          int             `json:"class" validate:"required,min=1,max=8"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
	AcceptsSub     bool            `json:"acceptsSubAccounts"`
	Lettrable      bool            `json:"lettrable"`
	Auxiliary      bool            `json:"auxiliary"`
	ParentID       *int64          `json:"parentId"`
}

type lineRequest struct {
	AccountID int64           `json:"accountId" validate:"required"`
	Label     string          `json:"label"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

type postEntryRequest struct {
	OrganizationID int64         `json:"organizationId" validate:"required"`
	PeriodID       int64         `json:"periodId" validate:"required"`
	AuthorID       int64         `json:"authorId" validate:"required"`
	Number         string        `json:"number" validate:"required"`
	Date           time.Time     `json:"date" validate:"required"`
	Label          string        `json:"label"`
	JournalCode    string        `json:"journalCode"`
	Reference      string        `json:"reference"`
	Lines          []lineRequest `json:"lines" validate:"dive"`
}

func (req postEntryRequest) toInput() (PostingInput, error) {
	reference := uuid.New()
	if req.Reference != "" {
		parsed, err := uuid.Parse(req.Reference)
		if err != nil {
			return PostingInput{}, err
		}
		reference = parsed
	}
	lines := make([]LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, LineInput{AccountID: l.AccountID, Label: l.Label, Debit: l.Debit, Credit: l.Credit})
	}
	return PostingInput{
		OrganizationID: req.OrganizationID,
		PeriodID:       req.PeriodID,
		AuthorID:       req.AuthorID,
		Number:         req.Number,
		Date:           req.Date,
		Label:          req.Label,
		JournalCode:    req.JournalCode,
		Reference:      reference,
		Lines:          lines,
	}, nil
}

// CreateAccount handles chart of accounts creation.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	account, err := h.service.CreateAccount(r.Context(), CreateAccountInput{
		OrganizationID: req.OrganizationID,
		Number:         req.Number,
		Label:          req.Label,
		Type:           AccountType(req.Type),
		Class:          AccountClass(req.Class),
		InitialBalance: req.InitialBalance,
		AcceptsSub:     req.AcceptsSub,
		Lettrable:      req.Lettrable,
		Auxiliary:      req.Auxiliary,
		ParentID:       req.ParentID,
	})
	if err != nil {
		h.respondError(w, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

// ListAccounts returns the chart of one organization.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	orgID, err := strconv.ParseInt(r.URL.Query().Get("organizationId"), 10, 64)
	if err != nil || orgID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "organizationId query parameter required")
		return
	}
	accounts, err := h.service.ListAccounts(r.Context(), orgID)
	if err != nil {
		h.respondError(w, "list accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

// ConsolidatedBalance derives the rollup for one account. Concurrent reads of
// the same account collapse into a single computation.
func (h *Handler) ConsolidatedBalance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	key := strconv.FormatInt(id, 10)
	result, err, _ := h.balances.Do(key, func() (any, error) {
		return h.service.ConsolidatedBalance(r.Context(), id)
	})
	if err != nil {
		h.respondError(w, "consolidated balance", err)
		return
	}
	balance := result.(ConsolidatedBalance)
	httpx.JSON(w, http.StatusOK, map[string]decimal.Decimal{
		"debit":  balance.Debit,
		"credit": balance.Credit,
		"net":    balance.Net,
	})
}

// PostEntry creates and validates an entry in one shot.
func (h *Handler) PostEntry(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeEntry(w, r)
	if !ok {
		return
	}
	entry, err := h.service.PostEntry(r.Context(), input)
	if err != nil {
		h.respondError(w, "post entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

// SaveDraft persists a draft entry without validating its balance.
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeEntry(w, r)
	if !ok {
		return
	}
	entry, err := h.service.SaveDraft(r.Context(), input)
	if err != nil {
		h.respondError(w, "save draft", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

// GetEntry returns an entry with lines.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.respondError(w, "get entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

// ValidateEntry runs the validation gate on a draft entry.
func (h *Handler) ValidateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	entry, err := h.service.ValidateEntry(r.Context(), id)
	if err != nil {
		h.respondError(w, "validate entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

// AddLine appends a line to a draft entry.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	var req lineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	line, err := h.service.AddLine(r.Context(), id, LineInput{
		AccountID: req.AccountID,
		Label:     req.Label,
		Debit:     req.Debit,
		Credit:    req.Credit,
	})
	if err != nil {
		h.respondError(w, "add line", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, line)
}

// RemoveLine detaches a line from a draft entry.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	lineID, err := strconv.ParseInt(chi.URLParam(r, "lineID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid line id")
		return
	}
	if err := h.service.RemoveLine(r.Context(), id, lineID); err != nil {
		h.respondError(w, "remove line", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeEntry(w http.ResponseWriter, r *http.Request) (PostingInput, bool) {
	var req postEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return PostingInput{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return PostingInput{}, false
	}
	input, err := req.toInput()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid reference uuid")
		return PostingInput{}, false
	}
	return input, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrEntryNotFound), errors.Is(err, ErrLineNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateNumber):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrImbalancedEntry), errors.Is(err, ErrInvalidLineAmount),
		errors.Is(err, ErrTooFewLines), errors.Is(err, ErrDateOutOfRange),
		errors.Is(err, ErrUnknownAccount), errors.Is(err, ErrAccountCycle),
		errors.Is(err, ErrParentRejectsChildren), errors.Is(err, ErrNegativeAmount):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Posting", err.Error())
	case errors.Is(err, ErrClosedPeriod), errors.Is(err, ErrImmutableEntry):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
