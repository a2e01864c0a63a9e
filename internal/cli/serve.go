package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/evanhartley/genforge/internal/adapter/driving/http"
	"github.com/evanhartley/genforge/internal/application"
	"github.com/evanhartley/genforge/internal/config"
	"github.com/evanhartley/genforge/internal/domain/model"
	"github.com/evanhartley/genforge/internal/domain/port/driven"
	"github.com/evanhartley/genforge/internal/metrics"

	vaultadapter "github.com/evanhartley/genforge/internal/adapter/driven/vault"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the generation daemon",
		Long: "Start the HTTP API and metrics endpoint. The daemon resolves its credential " +
			"from the environment or the vault at startup and reloads it on SIGHUP.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

// telemetryObserver feeds terminal jobs into the metrics collector and
// refreshes the quota gauges afterwards.
type telemetryObserver struct {
	collector *metrics.Collector
	ledger    driven.UsageLedger
}

func (o telemetryObserver) JobFinished(job model.GenerationJob) {
	o.collector.JobFinished(job)
	if snap, err := o.ledger.Snapshot(context.Background()); err == nil {
		o.collector.SetUsage(snap)
	}
}

func runServe(cmd *cobra.Command) error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"quota_limit", cfg.QuotaLimit,
		"poll_interval", cfg.PollInterval,
		"max_wait", cfg.MaxWait,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database, run migrations, reconcile the quota limit.
	st, err := openStores(cmd, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Resolve the credential. The daemon never prompts: without an env
	// pair or a headless passphrase it starts degraded and waits for SIGHUP.
	provider := application.NewClientProvider(nil)
	if cred, ok := daemonCredential(cfg); ok {
		provider.Replace(buildClient(cfg, cred))
		slog.Info("credential resolved", "token", cred.Redacted(), "workspace", cred.WorkspaceID)
	} else {
		slog.Warn("no credential available; generation disabled until one is configured and SIGHUP is sent")
	}

	// 5. Wire the resilience stack and metrics.
	executor, breaker := buildExecutor(cfg, slog.Default())
	collector := metrics.NewCollector("genforge")
	collector.SetBreakerState(breaker.State().String())
	breaker.OnStateChange(func(from, to application.BreakerState) {
		slog.Warn("breaker state changed", "from", from, "to", to)
		collector.SetBreakerState(to.String())
	})
	if snap, err := st.ledger.Snapshot(ctx); err == nil {
		collector.SetUsage(snap)
	}

	// 6. Wire the orchestrator and services.
	orch := application.NewOrchestrator(provider, executor, st.ledger, st.jobs, application.OrchestratorConfig{
		PollInterval: cfg.PollInterval,
		MaxWait:      cfg.MaxWait,
	}, slog.Default())
	orch.SetObserver(telemetryObserver{collector: collector, ledger: st.ledger})

	vault := vaultadapter.New(cfg.VaultPath)
	healthSvc := application.NewHealthService(vault, st.ledger, breaker, provider)

	// 7. HTTP server. Generate requests are synchronous and may poll for
	// the whole wait budget, so the write timeout sits above MaxWait.
	apiHandler := httphandler.NewHandler(orch, provider, healthSvc, st.ledger, st.jobs, slog.Default())
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, collector.Handler(), slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.MaxWait + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// 8. Reload the credential on SIGHUP so a rotation lands without a
	// restart. Jobs in flight keep the client they started with.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			if cred, ok := daemonCredential(cfg); ok {
				provider.Replace(buildClient(cfg, cred))
				slog.Info("credential reloaded", "token", cred.Redacted())
			} else {
				slog.Warn("credential reload failed; keeping the current client")
			}
		}
	}()

	slog.Info("genforge started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with a drain window for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// daemonCredential resolves the credential without ever prompting: the env
// pair first, then the vault if a headless passphrase is configured.
func daemonCredential(cfg *config.Config) (model.Credential, bool) {
	if cfg.HasEnvCredential() {
		return model.Credential{APIToken: cfg.APIToken, WorkspaceID: cfg.WorkspaceID}, true
	}
	if cfg.VaultPassphrase == "" {
		return model.Credential{}, false
	}
	cred, err := vaultadapter.New(cfg.VaultPath).Unlock(cfg.VaultPassphrase)
	if err != nil {
		slog.Error("vault unlock failed", "error", err)
		return model.Credential{}, false
	}
	return cred, true
}
