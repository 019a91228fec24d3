package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/greengate-erp/greengate-erp/internal/platform/httpx"
)

// Handler manages catalog endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Get("/products/{code}", h.getProduct)
	r.Put("/products/{id}", h.updateProduct)
	r.Get("/vendors", h.listVendors)
	r.Post("/vendors", h.createVendor)
	r.Get("/vendors/{code}", h.getVendor)
}

type productRequest struct {
	Code          string  `json:"code" validate:"required"`
	Name          string  `json:"name" validate:"required"`
	Family        string  `json:"family" validate:"required,oneof=PERISHABLE NON_PERISHABLE"`
	PurchasePrice float64 `json:"purchase_price" validate:"gte=0"`
	MinPrice      float64 `json:"min_price" validate:"gte=0"`
	MidPrice      float64 `json:"mid_price" validate:"gte=0"`
	VendorID      int64   `json:"vendor_id" validate:"required"`
	IsActive      bool    `json:"is_active"`
}

type vendorRequest struct {
	Code     string  `json:"code" validate:"required"`
	Name     string  `json:"name" validate:"required"`
	Phone    *string `json:"phone,omitempty"`
	IsActive bool    `json:"is_active"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	onlyActive := r.URL.Query().Get("active") == "true"
	products, err := h.service.ListProducts(r.Context(), onlyActive)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	product, err := h.service.CreateProduct(r.Context(), Product{
		Code:          req.Code,
		Name:          req.Name,
		Family:        Family(req.Family),
		PurchasePrice: req.PurchasePrice,
		MinPrice:      req.MinPrice,
		MidPrice:      req.MidPrice,
		VendorID:      req.VendorID,
		IsActive:      req.IsActive,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.ProductByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "product id must be numeric")
		return
	}
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	product, err := h.service.UpdateProduct(r.Context(), Product{
		ID:            id,
		Name:          req.Name,
		Family:        Family(req.Family),
		PurchasePrice: req.PurchasePrice,
		MinPrice:      req.MinPrice,
		MidPrice:      req.MidPrice,
		VendorID:      req.VendorID,
		IsActive:      req.IsActive,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) listVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.service.ListVendors(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"vendors": vendors})
}

func (h *Handler) createVendor(w http.ResponseWriter, r *http.Request) {
	var req vendorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	vendor, err := h.service.CreateVendor(r.Context(), Vendor{Code: req.Code, Name: req.Name, Phone: req.Phone, IsActive: req.IsActive})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, vendor)
}

func (h *Handler) getVendor(w http.ResponseWriter, r *http.Request) {
	vendor, err := h.service.VendorByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, vendor)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateCode):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrFamilyImmutable):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("catalog request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
