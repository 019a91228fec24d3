package procurement

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/greengate-erp/greengate-erp/internal/orders"
	"github.com/greengate-erp/greengate-erp/internal/platform/httpx"
	"github.com/greengate-erp/greengate-erp/internal/shared"
)

// Handler manages procurement endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/purchase-orders/generate", h.generate)
	r.Get("/purchase-orders", h.listByDay)
	r.Get("/purchase-orders/{id}", h.get)
}

type generateRequest struct {
	Day             string          `json:"day" validate:"required"`
	Wave            int             `json:"wave" validate:"required,oneof=1 2 3"`
	VendorOverrides map[int64]int64 `json:"vendor_overrides,omitempty"`
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	day, err := shared.ParseDay(req.Day)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "day must be YYYY-MM-DD")
		return
	}
	created, err := h.service.Generate(r.Context(), GenerateInput{
		Day:             day,
		Wave:            orders.Wave(req.Wave),
		VendorOverrides: req.VendorOverrides,
		RunKey:          r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		// Surface partially created orders alongside the failure so the
		// caller can reconcile.
		if len(created) > 0 {
			httpx.JSON(w, http.StatusMultiStatus, map[string]any{"purchase_orders": created, "error": err.Error()})
			return
		}
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"purchase_orders": created})
}

func (h *Handler) listByDay(w http.ResponseWriter, r *http.Request) {
	day := time.Now()
	if raw := r.URL.Query().Get("day"); raw != "" {
		parsed, err := shared.ParseDay(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "day must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	list, err := h.service.PurchaseOrdersForDay(r.Context(), day)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchase_orders": list})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "purchase order id must be numeric")
		return
	}
	po, err := h.service.PurchaseOrder(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Run", err.Error())
	case errors.Is(err, ErrNothingToOrder):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Nothing To Order", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("procurement request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
