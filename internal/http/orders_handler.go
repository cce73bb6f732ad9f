package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/service"
)

type OrderService interface {
	PlaceOrder(ctx context.Context, caller service.Caller, in service.PlaceOrderInput) (domain.OrderReceipt, error)
	ListOrders(ctx context.Context, caller service.Caller, limit int) ([]domain.OrderReceipt, error)
	Logout(ctx context.Context, caller service.Caller) error
}

type OrdersHandler struct {
	svc         OrderService
	timeout     time.Duration
	maxBodySize int64
}

func NewOrdersHandler(svc OrderService, timeout time.Duration, maxBodySize int64) *OrdersHandler {
	return &OrdersHandler{
		svc:         svc,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

type PlaceOrderRequestDTO struct {
	ShippingAddress string `json:"shipping_address"`
	Note            string `json:"note"`
	PaymentMethod   string `json:"payment_method"`
	BranchID        int64  `json:"branch_id"`
	IdempotencyKey  string `json:"idempotency_key"`
}

func (h *OrdersHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req PlaceOrderRequestDTO
	if !decodeBody(w, r, h.maxBodySize, &req) {
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	receipt, err := h.svc.PlaceOrder(ctx, caller, service.PlaceOrderInput{
		ShippingAddress: req.ShippingAddress,
		Note:            req.Note,
		PaymentMethod:   req.PaymentMethod,
		BranchID:        req.BranchID,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, receipt)
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	receipts, err := h.svc.ListOrders(ctx, caller, limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, receipts)
}

func (h *OrdersHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	if err := h.svc.Logout(ctx, caller); err != nil {
		handleError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "logged out")
}
