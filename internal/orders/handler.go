package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/greengate-erp/greengate-erp/internal/platform/httpx"
	"github.com/greengate-erp/greengate-erp/internal/pricing"
	"github.com/greengate-erp/greengate-erp/internal/shared"
)

// Handler manages order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.saveOrder)
	r.Get("/{id}", h.getOrder)
	r.Put("/{id}/discount", h.setDiscount)
	r.Post("/{id}/confirm", h.confirm)
	r.Post("/{id}/revert", h.revert)
	r.Delete("/{id}", h.deleteOrder)
	r.Post("/bulk-confirm", h.bulkConfirm)
	r.Get("/summary", h.summary)
	r.Get("/customers/{code}", h.customerOrders)
	r.Get("/customers/{code}/status", h.customerStatus)
}

type saveOrderRequest struct {
	CustomerCode string      `json:"customer_code" validate:"required"`
	Day          string      `json:"day" validate:"required"`
	Wave         int         `json:"wave" validate:"required,oneof=1 2 3"`
	Lines        []LineInput `json:"lines"`
	Discount     *float64    `json:"discount,omitempty"`
}

type discountRequest struct {
	Discount *float64 `json:"discount"`
}

type bulkConfirmRequest struct {
	Day  string `json:"day" validate:"required"`
	Wave int    `json:"wave" validate:"required,oneof=1 2 3"`
}

func (h *Handler) saveOrder(w http.ResponseWriter, r *http.Request) {
	var req saveOrderRequest
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
	order, err := h.service.SaveOrder(r.Context(), SaveOrderInput{
		CustomerCode: req.CustomerCode,
		Day:          day,
		Wave:         Wave(req.Wave),
		Lines:        req.Lines,
		Discount:     req.Discount,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	if order == nil {
		httpx.JSON(w, http.StatusOK, map[string]any{"order": nil, "removed": true})
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	order, err := h.service.Order(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": order, "final_amount": order.FinalAmount()})
}

func (h *Handler) setDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req discountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	order, err := h.service.SetDiscount(r.Context(), id, req.Discount)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": order, "final_amount": order.FinalAmount()})
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	order, err := h.service.Confirm(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) revert(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	order, err := h.service.RevertToDraft(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) bulkConfirm(w http.ResponseWriter, r *http.Request) {
	var req bulkConfirmRequest
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
	results, err := h.service.BulkConfirm(r.Context(), day, Wave(req.Wave))
	if err != nil {
		// Partial failure: surface both the results so far and the failure
		// point, so the caller can reconcile.
		if len(results) > 0 {
			httpx.JSON(w, http.StatusMultiStatus, map[string]any{"results": results, "error": err.Error()})
			return
		}
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayParam(w, r)
	if !ok {
		return
	}
	summary, err := h.service.CutoffSummary(r.Context(), day)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) customerOrders(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayParam(w, r)
	if !ok {
		return
	}
	list, err := h.service.OrdersForCustomer(r.Context(), chi.URLParam(r, "code"), day)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": list})
}

func (h *Handler) customerStatus(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayParam(w, r)
	if !ok {
		return
	}
	status, err := h.service.CustomerStatus(r.Context(), chi.URLParam(r, "code"), day)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": status})
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be numeric")
		return 0, false
	}
	return id, true
}

func (h *Handler) dayParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("day")
	if raw == "" {
		return time.Now(), true
	}
	day, err := shared.ParseDay(raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "day must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return day, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, pricing.ErrConfig):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Configuration Invalid", err.Error())
	case errors.Is(err, pricing.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("orders request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
