package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
	"github.com/vladislavdragonenkov/storefront/internal/service/history"
)

type orderLineDTO struct {
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
}

type orderDTO struct {
	ID              int64          `json:"id"`
	Status          string         `json:"status"`
	TotalAmount     string         `json:"totalAmount"`
	PaymentID       *int64         `json:"paymentId,omitempty"`
	CustomerEmail   string         `json:"customerEmail"`
	CustomerName    string         `json:"customerName"`
	ShippingAddress string         `json:"shippingAddress"`
	PaymentMethod   string         `json:"paymentMethod"`
	Items           []orderLineDTO `json:"items"`
	CreatedAt       *time.Time     `json:"createdAt,omitempty"`
}

type historyResponse struct {
	State  string     `json:"state"`
	Orders []orderDTO `json:"orders"`
}

func toOrderDTO(order domain.Order) orderDTO {
	items := make([]orderLineDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderLineDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       pricing.Display(item.Price),
		})
	}
	dto := orderDTO{
		ID:              order.ID,
		Status:          string(order.Status),
		TotalAmount:     pricing.Display(order.TotalAmount),
		PaymentID:       order.PaymentID,
		CustomerEmail:   order.CustomerEmail,
		CustomerName:    order.CustomerName,
		ShippingAddress: order.ShippingAddress,
		PaymentMethod:   order.PaymentMethod,
		Items:           items,
	}
	if !order.CreatedAt.IsZero() {
		createdAt := order.CreatedAt
		dto.CreatedAt = &createdAt
	}
	return dto
}

// listOrders: email из query, иначе из identity.
func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		email = domain.IdentityFrom(r.Context()).Email
	}
	if strings.TrimSpace(email) == "" {
		respondError(w, http.StatusBadRequest, "EMAIL_REQUIRED", history.ErrEmailRequired.Error())
		return
	}

	view := s.history.Load(r.Context(), email)
	if view.State == history.StateLoadFailed {
		respondError(w, http.StatusBadGateway, string(view.State), "could not load your orders, please try again")
		return
	}

	orders := make([]orderDTO, 0, len(view.Orders))
	for _, order := range view.Orders {
		orders = append(orders, toOrderDTO(order))
	}
	respondJSON(w, http.StatusOK, historyResponse{State: string(view.State), Orders: orders})
}
