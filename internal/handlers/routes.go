package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/streamhall/backend/internal/metrics"
	"github.com/streamhall/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Guard    Authorizer
	Accounts AccountRecorder
	Roles    RoleReader
	Videos   VideoCatalog
	Uploads  UploadCreator
	Tokens   TokenIssuer
	Webhooks WebhookVerifier
	Archive  PayloadArchive
	DB       Pinger

	WebhookLimiter RateLimiter
	UploadLimiter  RateLimiter
	ClientIPs      *middleware.ClientIPResolver
	CORSOrigins    []string
}

// NewRouter wires every endpoint behind request logging and CORS.
func NewRouter(logger *slog.Logger, deps Dependencies) http.Handler {
	health := HealthHandler{DB: deps.DB}
	webhook := WebhookHandler{Verifier: deps.Webhooks, Accounts: deps.Accounts, Archive: deps.Archive, Limiter: deps.WebhookLimiter, ClientIPs: deps.ClientIPs}
	upload := UploadHandler{Guard: deps.Guard, Uploads: deps.Uploads, Limiter: deps.UploadLimiter, ClientIPs: deps.ClientIPs}
	role := RoleHandler{Guard: deps.Guard, Roles: deps.Roles}
	videos := VideoHandler{Guard: deps.Guard, Videos: deps.Videos}
	playback := PlaybackHandler{Guard: deps.Guard, Videos: deps.Videos, Tokens: deps.Tokens}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(r.Context(), w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Method(http.MethodGet, "/healthz", metrics.Instrument("/healthz", http.HandlerFunc(health.Handle)))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		webhookHandler := metrics.Instrument("/api/clerk-webhook", http.HandlerFunc(webhook.Handle))
		r.Method(http.MethodPost, "/clerk-webhook", webhookHandler)
		r.Method(http.MethodPost, "/webhooks/identity", webhookHandler)

		r.Method(http.MethodPost, "/upload", metrics.Instrument("/api/upload", http.HandlerFunc(upload.Create)))
		r.Method(http.MethodGet, "/user/role", metrics.Instrument("/api/user/role", http.HandlerFunc(role.Get)))
		r.Method(http.MethodGet, "/videos", metrics.Instrument("/api/videos", http.HandlerFunc(videos.List)))
		r.Method(http.MethodGet, "/videos/{id}", metrics.Instrument("/api/videos/{id}", http.HandlerFunc(videos.Get)))
		r.Method(http.MethodGet, "/videos/{id}/playback", metrics.Instrument("/api/videos/{id}/playback", http.HandlerFunc(playback.Token)))
	})

	return r
}
