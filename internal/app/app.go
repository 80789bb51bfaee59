package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/streamhall/backend/internal/config"
	"github.com/streamhall/backend/internal/db"
	"github.com/streamhall/backend/internal/handlers"
	"github.com/streamhall/backend/internal/httpserver"
	"github.com/streamhall/backend/internal/logging"
	"github.com/streamhall/backend/internal/models"
	"github.com/streamhall/backend/internal/repositories"
)

// Run dispatches one of the serve, migrate, seed or role commands.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, seed, or role")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	case "seed":
		return runSeed(ctx, args[1:])
	case "role":
		return runSetRole(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel, os.Stdout)
	slog.SetDefault(logger)

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	deps := buildDependencies(ctx, pool, cfg, logger)
	srv := httpserver.New(cfg.AppPort, handlers.NewRouter(logger, deps))

	logger.Info("starting http server", "port", cfg.AppPort)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}

// runSetRole changes an account's role out of band. It is the only path that
// promotes an account to admin.
func runSetRole(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: role <account-id> <viewer|admin>")
	}

	accountID := strings.TrimSpace(args[0])
	role := models.Role(strings.ToLower(strings.TrimSpace(args[1])))
	if accountID == "" || !role.Valid() {
		return fmt.Errorf("invalid role assignment %q -> %q", args[0], args[1])
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := repositories.NewPostgresAccountRepository(pool).UpdateRole(ctx, accountID, role); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("account %s has not been replicated yet", accountID)
		}
		return err
	}

	fmt.Printf("account %s is now %s\n", accountID, role)
	return nil
}
