package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/soss111/maker-set-sub000/pkg/httputil"
	"github.com/soss111/maker-set-sub000/pkg/validator"

	"github.com/soss111/maker-set-sub000/internal/domain"
	"github.com/soss111/maker-set-sub000/internal/service"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding a set to the cart.
type AddItemRequest struct {
	SetID    int64 `json:"set_id" validate:"required"`
	Quantity int   `json:"quantity" validate:"required,gte=1"`
}

// UpdateQuantityRequest is the JSON request body for updating a line quantity.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

// ApplyDiscountRequest is the JSON request body for applying a discount.
type ApplyDiscountRequest struct {
	Code   string          `json:"code" validate:"required,min=1,max=64"`
	Amount decimal.Decimal `json:"amount"`
}

// --- Response DTOs ---

// cartView is the cart representation returned to clients, with the derived
// totals and provider summary computed server-side.
type cartView struct {
	*domain.Cart
	TotalItems int                  `json:"total_items"`
	TotalPrice decimal.Decimal      `json:"total_price"`
	Provider   *domain.ProviderInfo `json:"provider,omitempty"`
	Shipping   domain.ShippingInfo  `json:"shipping"`
}

func (h *CartHandler) view(cart *domain.Cart) cartView {
	v := cartView{
		Cart:       cart,
		TotalItems: cart.TotalItems(),
		TotalPrice: cart.TotalPrice(),
		Shipping:   cart.ShippingInfo(h.service.ShippingCost()),
	}
	if provider, ok := cart.Provider(); ok {
		v.Provider = &provider
	}
	return v
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	cart, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.view(cart)})
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	cart, err := h.service.AddItem(r.Context(), userID, service.AddItemInput{
		SetID:    req.SetID,
		Quantity: req.Quantity,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.view(cart)})
}

// UpdateItemQuantity handles PUT /api/v1/cart/items/{setID}
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	setID, ok := parseSetID(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	cart, err := h.service.UpdateItemQuantity(r.Context(), userID, setID, req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.view(cart)})
}

// RemoveItem handles DELETE /api/v1/cart/items/{setID}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	setID, ok := parseSetID(w, r)
	if !ok {
		return
	}

	cart, err := h.service.RemoveItem(r.Context(), userID, setID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.view(cart)})
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	cart, err := h.service.ClearCart(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.view(cart)})
}

// ApplyDiscount handles POST /api/v1/cart/discount
func (h *CartHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	var req ApplyDiscountRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	cart, err := h.service.ApplyDiscount(r.Context(), userID, service.ApplyDiscountInput{
		Code:   req.Code,
		Amount: req.Amount,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.view(cart)})
}

// RemoveDiscount handles DELETE /api/v1/cart/discount
func (h *CartHandler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	cart, err := h.service.RemoveDiscount(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.view(cart)})
}

// ValidateStock handles POST /api/v1/cart/validate-stock
func (h *CartHandler) ValidateStock(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	result, err := h.service.ValidateStock(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// CheckExpiry handles POST /api/v1/cart/expiry-check
func (h *CartHandler) CheckExpiry(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	result, err := h.service.CheckExpiry(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"expired": result.Expired,
		"cart":    h.view(result.Cart),
	}})
}

// parseSetID reads the {setID} URL parameter. The handling fee's reserved ID
// parses fine here; the service rejects operations that target it.
func parseSetID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "setID")
	setID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "setID must be an integer"},
		})
		return 0, false
	}
	return setID, true
}
