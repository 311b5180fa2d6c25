package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/order-engine/internal/api/middleware"
	"github.com/example/order-engine/internal/auth"
	"github.com/example/order-engine/internal/metrics"
)

// NewRouter wires the HTTP routes. Catalog reads are public, cart and order
// routes require a valid token, admin routes additionally require the admin
// role.
func NewRouter(h *Handlers, jwtService *auth.JWTService, m *metrics.Metrics, log *logrus.Logger) http.Handler {
	if m == nil {
		m = metrics.Noop()
	}
	mux := http.NewServeMux()

	requireAuth := middleware.AuthMiddleware(jwtService)
	requireAdmin := func(next http.Handler) http.Handler {
		return requireAuth(middleware.RequireRole(auth.RoleAdmin)(next))
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Products
	mux.Handle("/products", methodSwitch(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(h.GetProducts),
		http.MethodPost: requireAdmin(http.HandlerFunc(h.CreateProduct)),
	}))
	mux.HandleFunc("/products/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/restock") {
			requireAdmin(http.HandlerFunc(h.Restock)).ServeHTTP(w, r)
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.GetProduct(w, r)
		case http.MethodPut:
			requireAdmin(http.HandlerFunc(h.UpdateProduct)).ServeHTTP(w, r)
		case http.MethodDelete:
			requireAdmin(http.HandlerFunc(h.DiscontinueProduct)).ServeHTTP(w, r)
		default:
			respondJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		}
	})

	mux.HandleFunc("/inventory/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			respondJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		h.GetInventory(w, r)
	})

	// Cart
	mux.Handle("/cart", requireAuth(methodSwitch(map[string]http.Handler{
		http.MethodGet:    http.HandlerFunc(h.GetCart),
		http.MethodDelete: http.HandlerFunc(h.ClearCart),
	})))
	mux.Handle("/cart/items", requireAuth(methodSwitch(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(h.AddToCart),
	})))
	mux.Handle("/cart/items/", requireAuth(methodSwitch(map[string]http.Handler{
		http.MethodDelete: http.HandlerFunc(h.RemoveFromCart),
	})))
	mux.Handle("/cart/merge", requireAuth(methodSwitch(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(h.MergeGuestCart),
	})))

	// Orders
	mux.Handle("/orders", requireAuth(methodSwitch(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(h.GetOrders),
		http.MethodPost: http.HandlerFunc(h.PlaceOrder),
	})))
	mux.Handle("/orders/", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.GetOrder(w, r)
			return
		}
		if r.Method != http.MethodPost {
			respondJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/cancel"):
			h.CancelOrder(w, r)
		case strings.HasSuffix(r.URL.Path, "/return"):
			h.ReturnOrder(w, r)
		case strings.HasSuffix(r.URL.Path, "/payment/confirm"):
			h.ConfirmPayment(w, r)
		case strings.HasSuffix(r.URL.Path, "/payment/abort"):
			h.AbortPayment(w, r)
		case strings.HasSuffix(r.URL.Path, "/payment"):
			h.IssuePaymentSession(w, r)
		default:
			respondJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		}
	})))

	// Admin
	mux.Handle("/admin/orders", requireAdmin(methodSwitch(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(h.GetAllOrders),
	})))
	mux.Handle("/admin/orders/", requireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/transition") {
			h.TransitionOrder(w, r)
			return
		}
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})))
	mux.Handle("/admin/users/", requireAdmin(methodSwitch(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(h.GetUserStats),
	})))

	return withObservability(mux, m, log)
}

func methodSwitch(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if next, ok := handlers[r.Method]; ok {
			next.ServeHTTP(w, r)
			return
		}
		respondJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})
}

// statusRecorder captures the response code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func withObservability(next http.Handler, m *metrics.Metrics, log *logrus.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.RecordHTTP(r.Context(), r.Method, r.URL.Path, rec.status, start)
		log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("HTTP request")
	})
}
