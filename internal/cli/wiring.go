package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	layeradapter "github.com/evanhartley/genforge/internal/adapter/driven/layer"
	sqliteadapter "github.com/evanhartley/genforge/internal/adapter/driven/sqlite"
	vaultadapter "github.com/evanhartley/genforge/internal/adapter/driven/vault"
	"github.com/evanhartley/genforge/internal/application"
	"github.com/evanhartley/genforge/internal/config"
	"github.com/evanhartley/genforge/internal/domain/model"
)

// stores bundles the SQLite-backed adapters shared by the daemon and the
// one-shot commands.
type stores struct {
	db     *sqliteadapter.DB
	ledger *sqliteadapter.UsageRepo
	jobs   *sqliteadapter.JobRepo
}

func (s *stores) Close() {
	if err := s.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// openStores opens the database, runs migrations, and reconciles the
// configured quota limit into the ledger row.
func openStores(cmd *cobra.Command, cfg *config.Config) (*stores, error) {
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		db.Close()
		return nil, err
	}

	ledger := sqliteadapter.NewUsageRepo(db, cfg.QuotaLimit)
	if err := ledger.Reconcile(cmd.Context()); err != nil {
		db.Close()
		return nil, err
	}

	return &stores{
		db:     db,
		ledger: ledger,
		jobs:   sqliteadapter.NewJobRepo(db),
	}, nil
}

// resolveCredential produces the credential to call the service with. The
// env pair wins so CI and containers never need a vault; otherwise the vault
// is unlocked with the configured or prompted passphrase.
func resolveCredential(cmd *cobra.Command, cfg *config.Config) (model.Credential, error) {
	if cfg.HasEnvCredential() {
		return model.Credential{APIToken: cfg.APIToken, WorkspaceID: cfg.WorkspaceID}, nil
	}

	passphrase := cfg.VaultPassphrase
	if passphrase == "" {
		var err error
		passphrase, err = promptLine(cmd, "Vault passphrase: ")
		if err != nil {
			return model.Credential{}, err
		}
	}

	cred, err := vaultadapter.New(cfg.VaultPath).Unlock(passphrase)
	if errors.Is(err, os.ErrNotExist) {
		return model.Credential{}, fmt.Errorf("no credential found: set GENFORGE_API_TOKEN and GENFORGE_WORKSPACE_ID, or run `genforge setup`")
	}
	if err != nil {
		return model.Credential{}, err
	}
	return cred, nil
}

// buildClient wires the transport for a resolved credential.
func buildClient(cfg *config.Config, cred model.Credential) *layeradapter.Client {
	return layeradapter.NewClient(cred, cfg.APIURL)
}

// buildExecutor wires the retry executor and its shared breaker from config.
func buildExecutor(cfg *config.Config, logger *slog.Logger) (*application.Executor, *application.CircuitBreaker) {
	breaker := application.NewCircuitBreaker(application.DefaultFailureThreshold, application.DefaultCooldown)
	execCfg := application.DefaultExecutorConfig()
	execCfg.MaxAttempts = cfg.MaxAttempts
	return application.NewExecutor(execCfg, breaker, logger), breaker
}

// promptLine reads one trimmed line from the command's stdin.
func promptLine(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), label)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("empty input")
	}
	return line, nil
}
