package httpserver

import (
	"net/http"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
)

type cartLineDTO struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	UnitPrice string `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"lineTotal"`
}

type cartResponse struct {
	Identity   string                   `json:"identity"`
	Lines      []cartLineDTO            `json:"lines"`
	TotalItems int                      `json:"totalItems"`
	Pricing    pricing.DisplayBreakdown `json:"pricing"`
}

type addItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (s *Server) cartFor(r *http.Request) *cart.Store {
	return s.carts.For(r.Context(), domain.IdentityFrom(r.Context()))
}

func (s *Server) cartView(store *cart.Store) cartResponse {
	lines := store.Lines()
	out := make([]cartLineDTO, 0, len(lines))
	for _, line := range lines {
		out = append(out, cartLineDTO{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: pricing.Display(line.UnitPrice),
			Quantity:  line.Quantity,
			LineTotal: pricing.Display(line.Amount()),
		})
	}
	return cartResponse{
		Identity:   store.Identity().Key(),
		Lines:      out,
		TotalItems: domain.LinesCount(lines),
		Pricing:    pricing.ToDisplay(s.pricing.ForLines(lines)),
	}
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.cartView(s.cartFor(r)))
}

// addItem берёт цену и название из каталога: клиенту цена не доверяется.
func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "INVALID_PRODUCT_ID", "productId must be a positive integer")
		return
	}

	product, err := s.catalog.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		status := remoteStatus(err)
		if status == http.StatusNotFound {
			respondError(w, status, "PRODUCT_NOT_FOUND", "product not found")
			return
		}
		respondError(w, status, "CATALOG_UNAVAILABLE", "could not load product")
		return
	}

	store := s.cartFor(r)
	store.AddItem(product, req.Quantity)
	respondJSON(w, http.StatusOK, s.cartView(store))
}

func (s *Server) setQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}
	var req setQuantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	store := s.cartFor(r)
	store.SetQuantity(id, req.Quantity)
	respondJSON(w, http.StatusOK, s.cartView(store))
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}
	store := s.cartFor(r)
	store.RemoveItem(id)
	respondJSON(w, http.StatusOK, s.cartView(store))
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	store := s.cartFor(r)
	store.Clear()
	respondJSON(w, http.StatusOK, s.cartView(store))
}
