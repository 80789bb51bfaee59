package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/streamhall/backend/internal/auth"
	"github.com/streamhall/backend/internal/config"
	"github.com/streamhall/backend/internal/db"
	"github.com/streamhall/backend/internal/handlers"
	"github.com/streamhall/backend/internal/middleware"
	"github.com/streamhall/backend/internal/playback"
	"github.com/streamhall/backend/internal/repositories"
	"github.com/streamhall/backend/internal/storage"
	"github.com/streamhall/backend/internal/stream"
	"github.com/streamhall/backend/internal/videos"
	"github.com/streamhall/backend/internal/webhooks"
)

const limiterTTL = 10 * time.Minute

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. Missing credentials leave the dependent collaborator unset so the
// affected endpoints answer 500 instead of the process refusing to start.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) handlers.Dependencies {
	accounts := repositories.NewPostgresAccountRepository(pool)
	videoRepo := repositories.NewPostgresVideoRepository(pool)

	platform := stream.NewClient(stream.Config{
		BaseURL:   cfg.Stream.APIBaseURL,
		AccountID: cfg.Stream.AccountID,
		APIToken:  cfg.Stream.APIToken,
		Timeout:   cfg.Stream.Timeout,
	}, nil)
	registry := videos.NewRegistry(accounts, videoRepo, platform)

	deps := handlers.Dependencies{
		Accounts:       registry,
		Roles:          registry,
		Videos:         registry,
		Uploads:        registry,
		DB:             pool,
		WebhookLimiter: middleware.NewKeyedRateLimiter(cfg.WebhookRateLimit.Requests, cfg.WebhookRateLimit.Window, cfg.WebhookRateLimit.Burst, limiterTTL),
		UploadLimiter:  middleware.NewKeyedRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, limiterTTL),
		CORSOrigins:    cfg.CORSOrigins,
	}

	clientIPs, err := middleware.NewClientIPResolver(cfg.TrustedProxies)
	if err != nil {
		logger.Error("trusted proxies rejected, forwarded headers ignored", "error", err)
	} else {
		deps.ClientIPs = clientIPs
	}

	var verifier auth.IdentityVerifier
	if cfg.Identity.IssuerURL != "" {
		sessions, err := auth.NewSessionVerifier(ctx, auth.SessionConfig{
			IssuerURL:         cfg.Identity.IssuerURL,
			JWKSURL:           cfg.Identity.JWKSURL,
			AuthorizedParties: cfg.Identity.AuthorizedParties,
		})
		if err != nil {
			logger.Error("session verifier unavailable", "error", err)
		} else {
			verifier = sessions
		}
	}
	deps.Guard = auth.NewGuard(verifier, registry)

	if cfg.Identity.WebhookSecret != "" {
		wh, err := webhooks.NewVerifier(cfg.Identity.WebhookSecret)
		if err != nil {
			logger.Error("identity webhook secret rejected", "error", err)
		} else {
			deps.Webhooks = wh
		}
	}

	signer := playback.NewSigner(cfg.Stream.KeyID, cfg.Stream.SigningKey)
	if signer.Configured() {
		if _, err := playback.ImportKey(signer.KeyMaterial); err != nil {
			logger.Error("playback signing key rejected", "signer", signer, "error", err)
		}
	}
	deps.Tokens = signer

	if cfg.ObjectStore.Bucket != "" {
		archive, err := storage.NewS3Archive(ctx, cfg.ObjectStore)
		if err != nil {
			logger.Warn("webhook archive disabled", "error", err)
		} else {
			deps.Archive = archive
		}
	}

	if missing := cfg.Missing(); len(missing) > 0 {
		logger.Warn("configuration incomplete, dependent endpoints will fail", "missing", missing)
	}

	return deps
}
