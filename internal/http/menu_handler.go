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

type MenuService interface {
	ListMenuItems(ctx context.Context, caller service.Caller) ([]domain.MenuItem, error)
	GetMenuItem(ctx context.Context, caller service.Caller, id int64) (domain.MenuItem, error)
	ListOptionGroups(ctx context.Context, caller service.Caller, menuItemID int64) (service.OptionGroups, error)
}

type MenuHandler struct {
	svc     MenuService
	timeout time.Duration
}

func NewMenuHandler(svc MenuService, timeout time.Duration) *MenuHandler {
	return &MenuHandler{svc: svc, timeout: timeout}
}

type OptionGroupsResponse struct {
	Groups []domain.OptionGroup `json:"groups"`
	// UnavailableGroupIDs are shown as "no options available" and do not block add-to-cart.
	UnavailableGroupIDs []int64 `json:"unavailableGroupIds"`
}

func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	items, err := h.svc.ListMenuItems(ctx, caller)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := positiveIDParam(w, r, "id")
	if !ok {
		return
	}

	item, err := h.svc.GetMenuItem(ctx, caller, id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (h *MenuHandler) Options(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := positiveIDParam(w, r, "id")
	if !ok {
		return
	}

	res, err := h.svc.ListOptionGroups(ctx, caller, id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	unavailable := make([]int64, len(res.Unavailable))
	for i, g := range res.Unavailable {
		unavailable[i] = g.ID
	}
	respondJSON(w, http.StatusOK, OptionGroupsResponse{Groups: res.Groups, UnavailableGroupIDs: unavailable})
}

func requireCaller(w http.ResponseWriter, r *http.Request) (service.Caller, bool) {
	c, ok := getCaller(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return service.Caller{}, false
	}
	return service.Caller{UserID: c.userID, Token: c.token}, true
}

func positiveIDParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
