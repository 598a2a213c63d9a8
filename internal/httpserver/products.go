package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.ListProducts(r.Context())
	if err != nil {
		s.logger.WithError(err).Warn("failed to list products")
		respondError(w, remoteStatus(err), "CATALOG_UNAVAILABLE", "could not load products")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}
	product, err := s.catalog.GetProduct(r.Context(), id)
	if err != nil {
		status := remoteStatus(err)
		if status == http.StatusNotFound {
			respondError(w, status, "PRODUCT_NOT_FOUND", "product not found")
			return
		}
		respondError(w, status, "CATALOG_UNAVAILABLE", "could not load product")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "INVALID_PRODUCT_ID", "productId must be a positive integer")
		return 0, false
	}
	return id, true
}
