// Package handler exposes the billing operations over JSON/HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/laundry-billing/internal/domain/auth"
	"github.com/xenking/laundry-billing/internal/domain/order"
	"github.com/xenking/laundry-billing/internal/domain/tariff"
)

// OrderService is the subset of *order.Service the handlers use.
type OrderService interface {
	Snapshot(ctx context.Context, branchID string) (tariff.Snapshot, error)
	Quote(ctx context.Context, branchID string, req order.QuoteRequest) (*order.Quote, error)
	Submit(ctx context.Context, branchID, staffID string, req order.SubmitRequest) (*order.SubmitResult, error)
	Get(ctx context.Context, id string) (*order.Order, error)
	Handover(ctx context.Context, id string, method order.PaymentMethod) (*order.Order, error)
	Recent(ctx context.Context, branchID string, limit int) ([]order.Summary, error)
	DailyStats(ctx context.Context, branchID string, day time.Time) (*order.DailyStats, error)
	FindCustomer(ctx context.Context, branchID, phone string) (*order.Customer, error)
	Today() time.Time
	Location() *time.Location
}

var _ OrderService = (*order.Service)(nil)

// Handler serves the /api/v1 routes.
type Handler struct {
	orders   OrderService
	security *SecurityHandler
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(orders OrderService, security *SecurityHandler) *Handler {
	return &Handler{
		orders:   orders,
		security: security,
	}
}

// Routes registers the authenticated API routes on r.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.security.Middleware)

	r.Get("/meta", h.getMeta)
	r.Post("/quote", h.quote)
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.submitOrder)
		r.Get("/recent", h.recentOrders)
		r.Get("/{orderID}", h.getOrder)
		r.Post("/{orderID}/handover", h.handover)
	})
	r.Get("/customers/{phone}", h.findCustomer)
	r.With(requireRole(auth.RoleAuthUser)).Get("/stats/daily", h.dailyStats)
}

// Router builds a chi router with the API mounted under /api/v1.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(r.Context(), w, newError("not_found", "route not found", http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(r.Context(), w, newError("method_not_allowed", "method not allowed", http.StatusMethodNotAllowed))
	})
	r.Route("/api/v1", h.Routes)
	return r
}

// requireRole rejects callers whose role is below min.
func requireRole(min auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if info := identity(r); info == nil || !info.Role.Allows(min) {
				writeError(r.Context(), w, newError("forbidden", "insufficient role", http.StatusForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func identity(r *http.Request) *auth.APIKeyInfo {
	info, _ := auth.IdentityFromContext(r.Context())
	return info
}
