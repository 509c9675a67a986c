package api

import (
	"errors"
	"net/http"

	"github.com/Priya8975/forge-storefront/internal/catalog"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ProductHandler struct {
	catalog *catalog.Service
	logger  *zap.Logger
}

func NewProductHandler(c *catalog.Service, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{catalog: c, logger: logger}
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.BySlug(r.Context(), chi.URLParam(r, "slug"))
	if errors.Is(err, catalog.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get product", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	respondJSON(w, http.StatusOK, p)
}
