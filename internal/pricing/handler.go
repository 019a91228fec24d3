package pricing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/greengate-erp/greengate-erp/internal/directory"
	"github.com/greengate-erp/greengate-erp/internal/platform/httpx"
	"github.com/greengate-erp/greengate-erp/internal/shared"
)

// Handler manages pricing endpoints: quotes, the price history ledger, and
// margin configuration.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers pricing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/quote", h.quote)
	r.Post("/prices", h.recordPrice)
	r.Get("/products/{id}/trailing-max", h.trailingMax)
	r.Get("/margins", h.marginConfig)
	r.Put("/margins/perishable/{grade}", h.setPerishableMargin)
	r.Put("/margins/non-perishable/{grade}", h.setNonPerishableMargin)
	r.Get("/margins/audit", h.marginAudit)
	r.Post("/snapshots", h.freezeSnapshot)
}

type recordPriceRequest struct {
	ProductID int64   `json:"product_id" validate:"required"`
	Day       string  `json:"day" validate:"required"`
	Price     float64 `json:"price" validate:"gte=0"`
}

type perishableMarginRequest struct {
	Amount float64 `json:"amount" validate:"gte=0"`
	Actor  string  `json:"actor" validate:"required"`
}

type nonPerishableMarginRequest struct {
	Multiplier     float64 `json:"multiplier"`
	MinMultiplier  float64 `json:"min_multiplier"`
	MidMultiplier  float64 `json:"mid_multiplier"`
	MinMarginCheck float64 `json:"min_margin_check"`
	Actor          string  `json:"actor" validate:"required"`
}

type freezeSnapshotRequest struct {
	ProductCode string `json:"product_code" validate:"required"`
	Day         string `json:"day" validate:"required"`
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productCode := q.Get("product")
	customerCode := q.Get("customer")
	if productCode == "" || customerCode == "" {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "product and customer are required")
		return
	}
	day := time.Now()
	if raw := q.Get("day"); raw != "" {
		parsed, err := shared.ParseDay(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "day must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	var orderAdjustment float64
	if raw := q.Get("adjustment"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "adjustment must be numeric")
			return
		}
		orderAdjustment = parsed
	}
	quote, err := h.service.ResolvePrice(r.Context(), productCode, customerCode, day, orderAdjustment)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) recordPrice(w http.ResponseWriter, r *http.Request) {
	var req recordPriceRequest
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
	if err := h.service.RecordPrice(r.Context(), req.ProductID, day, req.Price); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) trailingMax(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "product id must be numeric")
		return
	}
	day := time.Now()
	if raw := r.URL.Query().Get("day"); raw != "" {
		parsed, err := shared.ParseDay(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "day must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	max, err := h.service.TrailingMax(r.Context(), id, day)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product_id": id, "day": shared.FormatDay(day), "trailing_max": max})
}

func (h *Handler) marginConfig(w http.ResponseWriter, r *http.Request) {
	config, err := h.service.MarginConfig(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"perishable": config.Perishable, "non_perishable": config.NonPerishable})
}

func (h *Handler) setPerishableMargin(w http.ResponseWriter, r *http.Request) {
	grade := directory.Grade(chi.URLParam(r, "grade"))
	var req perishableMarginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SetPerishableMargin(r.Context(), grade, req.Amount, req.Actor); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) setNonPerishableMargin(w http.ResponseWriter, r *http.Request) {
	grade := directory.Grade(chi.URLParam(r, "grade"))
	var req nonPerishableMarginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rule := NonPerishableRule{
		Grade:          grade,
		Multiplier:     req.Multiplier,
		MinMultiplier:  req.MinMultiplier,
		MidMultiplier:  req.MidMultiplier,
		MinMarginCheck: req.MinMarginCheck,
	}
	if err := h.service.SetNonPerishableMargin(r.Context(), rule, req.Actor); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) marginAudit(w http.ResponseWriter, r *http.Request) {
	trail, err := h.service.MarginAuditTrail(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"changes": trail})
}

func (h *Handler) freezeSnapshot(w http.ResponseWriter, r *http.Request) {
	var req freezeSnapshotRequest
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
	snap, err := h.service.FreezeDayPrices(r.Context(), req.ProductCode, day)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"product_id": snap.ProductID, "day": shared.FormatDay(snap.Day), "prices": snap.Prices})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrConfig):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Configuration Invalid", err.Error())
	default:
		h.logger.Error("pricing request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
