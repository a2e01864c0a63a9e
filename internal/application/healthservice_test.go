package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/evanhartley/genforge/internal/application"
	"github.com/evanhartley/genforge/internal/domain/model"
)

type mockVault struct {
	status    model.VaultStatus
	statusErr error
}

func (m *mockVault) Unlock(string) (model.Credential, error) {
	return model.Credential{}, nil
}

func (m *mockVault) Store(model.Credential, string) error  { return nil }
func (m *mockVault) Rotate(model.Credential, string) error { return nil }

func (m *mockVault) Status() (model.VaultStatus, error) {
	return m.status, m.statusErr
}

func newHealthService(vault *mockVault, client *mockClient) *application.HealthService {
	breaker := application.NewCircuitBreaker(application.DefaultFailureThreshold, application.DefaultCooldown)
	var provider *application.ClientProvider
	if client != nil {
		provider = application.NewClientProvider(client)
	} else {
		provider = application.NewClientProvider(nil)
	}
	return application.NewHealthService(vault, &mockLedger{}, breaker, provider)
}

func TestReport_AllHealthy(t *testing.T) {
	vault := &mockVault{status: model.VaultStatus{Exists: true}}

	h := newHealthService(vault, &mockClient{}).Report(context.Background())

	assert.Equal(t, "ok", h.Status)
	assert.True(t, h.VaultConfigured)
	assert.True(t, h.ClientConfigured)
	assert.Equal(t, "closed", h.Breaker)
	assert.Equal(t, 600, h.Usage.Limit)
}

func TestReport_NoClientDegrades(t *testing.T) {
	vault := &mockVault{status: model.VaultStatus{Exists: true}}

	h := newHealthService(vault, nil).Report(context.Background())

	assert.Equal(t, "degraded", h.Status)
	assert.False(t, h.ClientConfigured)
}

func TestReport_VaultErrorDegrades(t *testing.T) {
	vault := &mockVault{statusErr: errors.New("stat failed")}

	h := newHealthService(vault, &mockClient{}).Report(context.Background())

	assert.Equal(t, "degraded", h.Status)
	assert.False(t, h.VaultConfigured)
}

func TestReport_ReflectsBreakerState(t *testing.T) {
	vault := &mockVault{status: model.VaultStatus{Exists: true}}
	breaker := application.NewCircuitBreaker(1, 30*time.Second)
	provider := application.NewClientProvider(&mockClient{})
	svc := application.NewHealthService(vault, &mockLedger{}, breaker, provider)

	breaker.RecordFailure()

	h := svc.Report(context.Background())
	assert.Equal(t, "open", h.Breaker)
}
