package application

import (
	"context"

	"github.com/evanhartley/genforge/internal/domain/model"
	"github.com/evanhartley/genforge/internal/domain/port/driven"
)

// Health is the daemon's self-report for the health endpoint and CLI.
type Health struct {
	Status           string // "ok" or "degraded"
	VaultConfigured  bool
	ClientConfigured bool
	Breaker          string
	Usage            model.UsageSnapshot
}

// HealthService assembles the health view from the vault, ledger, breaker,
// and client provider. It depends only on port interfaces plus the two
// application-owned structures.
type HealthService struct {
	vault    driven.CredentialVault
	ledger   driven.UsageLedger
	breaker  *CircuitBreaker
	provider *ClientProvider
}

// NewHealthService creates a HealthService with the required dependencies.
func NewHealthService(
	vault driven.CredentialVault,
	ledger driven.UsageLedger,
	breaker *CircuitBreaker,
	provider *ClientProvider,
) *HealthService {
	return &HealthService{
		vault:    vault,
		ledger:   ledger,
		breaker:  breaker,
		provider: provider,
	}
}

// Report gathers the current health. The report itself never fails; a
// broken collaborator degrades the status instead.
func (s *HealthService) Report(ctx context.Context) Health {
	h := Health{
		Status:           "ok",
		ClientConfigured: s.provider.HasClient(),
		Breaker:          s.breaker.State().String(),
	}

	if st, err := s.vault.Status(); err == nil {
		h.VaultConfigured = st.Exists
	} else {
		h.Status = "degraded"
	}

	if snap, err := s.ledger.Snapshot(ctx); err == nil {
		h.Usage = snap
	} else {
		h.Status = "degraded"
	}

	if !h.ClientConfigured {
		h.Status = "degraded"
	}

	return h
}
