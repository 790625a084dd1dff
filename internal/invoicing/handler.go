package invoicing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/grandlivre-erp/grandlivre/internal/platform/httpx"
)

// Handler wires invoicing endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers HTTP routes for the invoicing module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/invoices", h.CreateInvoice)
	r.Get("/invoices", h.ListInvoices)
	r.Get("/invoices/{id}", h.GetInvoice)
	r.Post("/invoices/{id}/lines", h.AddLine)
	r.Delete("/invoices/{id}/lines/{lineID}", h.RemoveLine)
	r.Post("/invoices/{id}/recompute", h.Recompute)
	r.Post("/invoices/{id}/send", h.Send)
	r.Post("/invoices/{id}/pay", h.MarkPaid)
	r.Post("/invoices/{id}/cancel", h.Cancel)
}

type lineRequest struct {
	Label     string          `json:"label" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"required"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

func (req lineRequest) toInput() LineInput {
	return LineInput{Label: req.Label, Quantity: req.Quantity, UnitPrice: req.UnitPrice}
}

type createInvoiceRequest struct {
	OrganizationID int64            `json:"organizationId" validate:"required"`
	Number         string           `json:"number" validate:"required"`
	Type           string           `json:"type" validate:"required,oneof=SALE PURCHASE SALE_CREDIT_NOTE PURCHASE_CREDIT_NOTE"`
	ClientID       *int64           `json:"clientId"`
	SupplierID     *int64           `json:"supplierId"`
	IssueDate      time.Time        `json:"issueDate" validate:"required"`
	DueDate        *time.Time       `json:"dueDate"`
	Currency       string           `json:"currency" validate:"omitempty,len=3"`
	VATRate        *decimal.Decimal `json:"vatRate"`
	Notes          string           `json:"notes"`
	Lines          []lineRequest    `json:"lines" validate:"dive"`
}

// CreateInvoice persists a draft invoice with derived totals.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if req.Currency == "" {
		req.Currency = "EUR"
	}
	lines := make([]LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, l.toInput())
	}
	invoice, err := h.service.CreateInvoice(r.Context(), CreateInvoiceInput{
		OrganizationID: req.OrganizationID,
		Number:         req.Number,
		Type:           InvoiceType(req.Type),
		ClientID:       req.ClientID,
		SupplierID:     req.SupplierID,
		IssueDate:      req.IssueDate,
		DueDate:        req.DueDate,
		Currency:       req.Currency,
		VATRate:        req.VATRate,
		Notes:          req.Notes,
		Lines:          lines,
	})
	if err != nil {
		h.respondError(w, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, invoice)
}

// ListInvoices lists invoices of one organization, optionally by status.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	orgID, err := strconv.ParseInt(r.URL.Query().Get("organizationId"), 10, 64)
	if err != nil || orgID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "organizationId query parameter required")
		return
	}
	status := InvoiceStatus(r.URL.Query().Get("status"))
	invoices, err := h.service.ListInvoices(r.Context(), orgID, status)
	if err != nil {
		h.respondError(w, "list invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

// GetInvoice returns an invoice with lines.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	invoice, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.respondError(w, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

// AddLine appends a line to a draft invoice.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
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
	invoice, err := h.service.AddLine(r.Context(), id, req.toInput())
	if err != nil {
		h.respondError(w, "add invoice line", err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

// RemoveLine detaches a line from a draft invoice.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	lineID, ok := h.pathID(w, r, "lineID")
	if !ok {
		return
	}
	invoice, err := h.service.RemoveLine(r.Context(), id, lineID)
	if err != nil {
		h.respondError(w, "remove invoice line", err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

// Recompute rebuilds the totals of one invoice from its lines.
func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	invoice, err := h.service.RecomputeTotals(r.Context(), id)
	if err != nil {
		h.respondError(w, "recompute invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

// Send marks a draft invoice issued.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, "send invoice", h.service.Send)
}

// MarkPaid settles an invoice.
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, "pay invoice", h.service.MarkPaid)
}

// Cancel voids an unpaid invoice.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, "cancel invoice", h.service.Cancel)
}

func (h *Handler) runTransition(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, int64) (Invoice, error)) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	invoice, err := fn(r.Context(), id)
	if err != nil {
		h.respondError(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvoiceNotFound), errors.Is(err, ErrLineNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateNumber), errors.Is(err, ErrImmutableInvoice), errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidCounterpart), errors.Is(err, ErrInvalidLine),
		errors.Is(err, ErrInvalidVATRate), errors.Is(err, ErrInvalidDueDate):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Invoice", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
