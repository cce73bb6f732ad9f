package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type SessionService interface {
	TokenExpired(ctx context.Context, userID, token string) error
}

// Storefront is everything the HTTP API needs from the service layer.
type Storefront interface {
	MenuService
	CartService
	OrderService
	SessionService
}

type RouterConfig struct {
	JWTSecret          string
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

// NewRouter builds the chi router with the /api/v1 routes and a traced outer handler.
func NewRouter(svc Storefront, cfg RouterConfig, logger *zap.Logger) http.Handler {
	menuHandler := NewMenuHandler(svc, cfg.RequestTimeout)
	cartHandler := NewCartHandler(svc, cfg.RequestTimeout, cfg.MaxRequestBodySize)
	ordersHandler := NewOrdersHandler(svc, cfg.RequestTimeout, cfg.MaxRequestBodySize)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(AccessLog(logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	expired := func(ctx context.Context, userID, token string) {
		if err := svc.TokenExpired(ctx, userID, token); err != nil {
			logger.Warn("end expired session failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret, expired))

		r.Route("/menu-items", func(r chi.Router) {
			r.Get("/", menuHandler.List)
			r.Get("/{id}", menuHandler.Get)
			r.Get("/{id}/options", menuHandler.Options)
		})
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Patch("/items/{line_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{line_id}", cartHandler.RemoveItem)
			r.Post("/items/{line_id}/increment", cartHandler.Increment)
			r.Post("/items/{line_id}/decrement", cartHandler.Decrement)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordersHandler.ListOrders)
			r.Post("/", ordersHandler.PlaceOrder)
		})
		r.Post("/session/logout", ordersHandler.Logout)
	})

	return otelhttp.NewHandler(r, "storefront")
}
