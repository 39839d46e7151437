// Command cloudcrafter runs the CloudCrafter console: the HTTP service that
// turns natural-language requests into provisioned cloud infrastructure by
// way of an NLU oracle and a Terraform job runner.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cloudcrafter/console/common/version"
	"github.com/cloudcrafter/console/internal/console/api"
	"github.com/cloudcrafter/console/internal/console/config"
	"github.com/cloudcrafter/console/internal/console/convo"
	"github.com/cloudcrafter/console/internal/console/identity"
	"github.com/cloudcrafter/console/internal/console/jobs"
	"github.com/cloudcrafter/console/internal/console/observability"
	"github.com/cloudcrafter/console/internal/console/oracle"
	"github.com/cloudcrafter/console/internal/console/store"
)

func main() {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		// Parse errors can echo file content, so strip the API key if set.
		slog.Error("configuration error",
			"err", observability.RedactSecrets(err.Error(), os.Getenv("ORACLE_API_KEY")))
		os.Exit(1)
	}

	observability.Setup(cfg.Log.Level, cfg.Log.Format)
	slog.Info("CloudCrafter console starting", "version", version.Info(), "env", cfg.Env)

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.Database.Path, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	oracleClient := newOracleClient(cfg)
	jobsClient := jobs.NewHTTP(jobs.HTTPConfig{
		BaseURL: cfg.Jobs.BaseURL,
		Timeout: cfg.Jobs.Timeout.Std(),
	})

	mgr := convo.NewManager(oracleClient, jobsClient, jobs.Options{
		PlanInterval:  cfg.Jobs.PlanInterval.Std(),
		ApplyInterval: cfg.Jobs.ApplyInterval.Std(),
		MaxPlanPolls:  cfg.Jobs.MaxPlanPolls,
		MaxApplyPolls: cfg.Jobs.MaxApplyPolls,
	}, db)
	defer mgr.CloseAll()

	var provider identity.Provider
	if cfg.Identity.BaseURL != "" {
		provider = identity.NewHTTPProvider(identity.ProviderConfig{
			BaseURL: cfg.Identity.BaseURL,
			PoolID:  cfg.Identity.PoolID,
		})
	}

	handler := api.NewHandler(mgr, db)
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.Router(handler, provider, cfg.IsDev()),
		ReadTimeout:  cfg.HTTP.ReadTimeout.Std(),
		WriteTimeout: cfg.HTTP.WriteTimeout.Std(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout.Std())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "err", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

func newOracleClient(cfg *config.Config) oracle.Client {
	return oracle.NewHTTP(oracle.Config{
		BaseURL:    cfg.Oracle.BaseURL,
		BotID:      cfg.Oracle.BotID,
		BotAliasID: cfg.Oracle.BotAliasID,
		LocaleID:   cfg.Oracle.LocaleID,
		APIKey:     cfg.Oracle.APIKey,
		Timeout:    cfg.Oracle.Timeout.Std(),
	})
}
