package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	ChiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"reflights/internal/api/middleware"
)

type RouterConfig struct {
	JWTSecret []byte
	// Redis backs Idempotency-Key handling on writes; nil disables it.
	Redis  *redis.Client
	Logger *slog.Logger
}

func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(ChiMiddleware.RequestID)
	r.Use(requestLogger(cfg.Logger))
	r.Use(ChiMiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Reads
	r.Get("/tickets/{id}", h.GetTicket)
	r.Get("/tickets/{id}/trail", h.GetTrail)
	r.Get("/tickets/{id}/listing", h.GetListing)
	r.Get("/tickets/{id}/relocation-quote", h.QuoteRelocation)
	r.Get("/listings", h.ActiveListings)
	r.Get("/relocations/{messageID}", h.GetRelocation)
	r.Get("/balances/{account}", h.Balance)

	// Writes act on behalf of the token subject.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.Idempotency(cfg.Redis))

		r.Post("/tickets", h.Mint)
		r.Post("/tickets/{id}/transfer", h.Transfer)
		r.Post("/tickets/{id}/use", h.MarkUsed)
		r.Post("/tickets/{id}/listing", h.List)
		r.Delete("/tickets/{id}/listing", h.CancelListing)
		r.Post("/tickets/{id}/buy", h.Buy)
		r.Post("/tickets/{id}/relocate", h.Relocate)

		r.Route("/admin", func(r chi.Router) {
			r.Put("/domains/{domain}", h.AllowlistDomain)
			r.Put("/senders/{sender}", h.AllowlistSender)
			r.Post("/tickets/{id}/pause", h.Pause)
			r.Put("/tickets/{id}/resellable", h.SetResellable)
			r.Post("/withdraw", h.Withdraw)
		})
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := ChiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", ChiMiddleware.GetReqID(r.Context()),
			)
		})
	}
}
