package httpserver

import (
	"net/http"

	"lv-finbroker/internal/broker"
	"lv-finbroker/internal/health"

	"github.com/go-chi/chi/v5"
)

type RouterDeps struct {
	BrokerHandler *broker.Handler
	HealthHandler *health.Handler
	WSHandler     http.Handler
	InternalToken string
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS middleware for development
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = "*"
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Internal-Token")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Use(SecurityHeaders)
	r.Use(RateLimitMiddleware)

	r.Get("/health", d.HealthHandler.Get)
	r.Get("/health/live", d.HealthHandler.Live)
	r.Route("/v1", func(r chi.Router) {
		r.Use(InternalAuth(d.InternalToken))
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", d.BrokerHandler.List)
			r.Post("/", d.BrokerHandler.Place)
			r.Get("/{ref}", d.BrokerHandler.Get)
			r.Delete("/{ref}", d.BrokerHandler.Cancel)
		})
		r.Get("/positions", d.BrokerHandler.Positions)
		r.Get("/account", d.BrokerHandler.Account)
		r.Get("/notifications", d.BrokerHandler.Notification)
	})
	if d.WSHandler != nil {
		r.Handle("/ws/notifications", d.WSHandler)
	}
	return r
}
