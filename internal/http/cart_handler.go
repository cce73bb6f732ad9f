package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/go-chi/chi/v5"
)

type CartService interface {
	GetCart(ctx context.Context, caller service.Caller) (domain.Cart, error)
	AddLine(ctx context.Context, caller service.Caller, in service.AddLineInput) (domain.CartLineItem, domain.Cart, error)
	UpdateQuantity(ctx context.Context, caller service.Caller, lineID string, quantity int) (domain.Cart, error)
	Increment(ctx context.Context, caller service.Caller, lineID string) (domain.Cart, error)
	Decrement(ctx context.Context, caller service.Caller, lineID string) (domain.Cart, error)
	RemoveLine(ctx context.Context, caller service.Caller, lineID string) (domain.Cart, error)
	ResetCart(ctx context.Context, caller service.Caller) (domain.Cart, error)
}

type CartHandler struct {
	svc         CartService
	timeout     time.Duration
	maxBodySize int64
}

func NewCartHandler(svc CartService, timeout time.Duration, maxBodySize int64) *CartHandler {
	return &CartHandler{
		svc:         svc,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

type AddItemRequestDTO struct {
	MenuItemID int64 `json:"menu_item_id"`
	// Selections maps option group id to value id. JSON object keys are strings.
	Selections map[string]int64 `json:"selections"`
	Quantity   int              `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type AddItemResponse struct {
	Line domain.CartLineItem `json:"line"`
	Cart domain.Cart         `json:"cart"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	c, err := h.svc.GetCart(ctx, caller)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if !decodeBody(w, r, h.maxBodySize, &req) {
		return
	}

	if req.MenuItemID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_menu_item_id", "menu_item_id must be positive")
		return
	}
	if req.Quantity > service.MaxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", service.ErrQuantityLimit.Error())
		return
	}
	selections := make(map[int64]int64, len(req.Selections))
	for k, v := range req.Selections {
		groupID, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_selections", "selection keys must be option group ids")
			return
		}
		selections[groupID] = v
	}

	line, c, err := h.svc.AddLine(ctx, caller, service.AddLineInput{
		MenuItemID: req.MenuItemID,
		Selections: selections,
		Quantity:   req.Quantity,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, AddItemResponse{Line: line, Cart: c})
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if !decodeBody(w, r, h.maxBodySize, &req) {
		return
	}
	if req.Quantity > service.MaxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", service.ErrQuantityLimit.Error())
		return
	}

	c, err := h.svc.UpdateQuantity(ctx, caller, chi.URLParam(r, "line_id"), req.Quantity)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *CartHandler) Increment(w http.ResponseWriter, r *http.Request) {
	h.lineAction(w, r, h.svc.Increment)
}

func (h *CartHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.lineAction(w, r, h.svc.Decrement)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.lineAction(w, r, h.svc.RemoveLine)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	c, err := h.svc.ResetCart(ctx, caller)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *CartHandler) lineAction(w http.ResponseWriter, r *http.Request,
	action func(context.Context, service.Caller, string) (domain.Cart, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	c, err := action(ctx, caller, chi.URLParam(r, "line_id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}
