package application

import (
	"sync"

	"github.com/evanhartley/genforge/internal/domain/port/driven"
)

// ClientProvider enables runtime hot-swap of the generation client. It
// holds a mutex-protected reference to the current driven.GenerationClient,
// allowing a credential rotation to take effect without restarting the
// daemon or disturbing jobs already in flight (they keep the client they
// started with).
type ClientProvider struct {
	mu     sync.RWMutex
	client driven.GenerationClient
}

// NewClientProvider creates a provider with the given initial client.
// client may be nil if no credential is available at startup.
func NewClientProvider(client driven.GenerationClient) *ClientProvider {
	return &ClientProvider{client: client}
}

// Get returns the current client. Callers should check for nil if the
// provider was created without an initial credential.
func (p *ClientProvider) Get() driven.GenerationClient {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client
}

// Replace swaps the current client. Used after `setup` and `rotate`; the
// next caller of Get receives the new client.
func (p *ClientProvider) Replace(client driven.GenerationClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = client
}

// HasClient returns true if a non-nil client is currently held.
func (p *ClientProvider) HasClient() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client != nil
}
