package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Priya8975/forge-storefront/internal/cart"
	"github.com/Priya8975/forge-storefront/internal/catalog"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// HeaderCartSession identifies the shopper's cart.
const HeaderCartSession = "X-Cart-Session"

type CartHandler struct {
	carts   *cart.Registry
	catalog *catalog.Service
	logger  *zap.Logger
}

func NewCartHandler(carts *cart.Registry, c *catalog.Service, logger *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, catalog: c, logger: logger}
}

type cartResponse struct {
	Items      []cart.Line `json:"items"`
	TotalItems int         `json:"total_items"`
	TotalPrice float64     `json:"total_price"`
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) session(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	id := strings.TrimSpace(r.Header.Get(HeaderCartSession))
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing "+HeaderCartSession+" header")
		return nil, false
	}

	s, err := h.carts.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load cart", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load cart")
		return nil, false
	}
	return s, true
}

func respondCart(w http.ResponseWriter, s *cart.Store) {
	snap := s.Snapshot()
	respondJSON(w, http.StatusOK, cartResponse{
		Items:      snap.Lines,
		TotalItems: snap.TotalItems,
		TotalPrice: snap.TotalPrice,
	})
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondCart(w, s)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "product_id is required")
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}

	p, err := h.catalog.ByID(r.Context(), req.ProductID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load product for cart", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to add item")
		return
	}

	s.AddToCart(catalog.CartProduct(p))
	respondCart(w, s)
}

// UpdateItem sets a line's quantity. Quantities below one leave the cart
// unchanged; use DELETE to remove a line.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}

	s.UpdateQuantity(chi.URLParam(r, "productID"), req.Quantity)
	respondCart(w, s)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	s.RemoveFromCart(chi.URLParam(r, "productID"))
	respondCart(w, s)
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	s.ClearCart()
	respondCart(w, s)
}
