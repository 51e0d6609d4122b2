/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zap request log carrying the request id
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontends
  5. Auth:       Bearer token on every /api route except registration
                and login

ROUTE GROUPS:
  /healthz              Liveness + store ping
  /api/users            Registration (public)
  /api/auth/token       Login (public)
  /api/buses/*          Bus and seat inventory
  /api/tickets/*        Purchase, cancel, purge
  /api/wallet/*         Balance, deposits, history
  /api/admin/*          Reconciliation report, audit log

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token verification
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterConfig carries what the router needs besides the handler.
type RouterConfig struct {
	CORSOrigins []string
	Logger      *zap.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(log.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/users", h.RegisterUser)
		r.Post("/auth/token", h.IssueToken)

		r.Group(func(r chi.Router) {
			r.Use(h.Auth.Middleware)

			// Bus routes
			r.Route("/buses", func(r chi.Router) {
				r.Get("/", h.ListBuses)
				r.Post("/", h.CreateBus)
				r.Put("/{id}", h.UpdateBus)
				r.Delete("/{id}", h.DeleteBus)
				r.Get("/{id}/seats", h.ListAvailableSeats)
			})

			// Ticket routes
			r.Route("/tickets", func(r chi.Router) {
				r.Get("/", h.ListTickets)
				r.Post("/", h.PurchaseTicket)
				r.Post("/{id}/cancel", h.CancelTicket)
				r.Delete("/{id}", h.PurgeTicket)
			})

			// Wallet routes
			r.Route("/wallet", func(r chi.Router) {
				r.Get("/", h.GetWallet)
				r.Post("/deposits", h.Deposit)
				r.Get("/transactions", h.ListTransactions)
			})

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Get("/reconciliation", h.GetReconciliation)
				r.Get("/audit", h.ListAudit)
			})
		})
	})

	return r
}

// requestLogger logs one line per request once the response is written.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("latency", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
