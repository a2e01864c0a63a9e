package model

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Token format issued by the asset service: a "pat_" prefix followed by
// URL-safe base64 characters, 50 to 200 characters in total.
var tokenPattern = regexp.MustCompile(`^pat_[A-Za-z0-9_-]+$`)

const (
	tokenMinLen = 50
	tokenMaxLen = 200
)

// Credential is the pair needed to call the asset service: a personal API
// token and the workspace the calls are billed to. It only ever exists in
// plaintext in memory; at rest it lives encrypted inside the vault.
type Credential struct {
	APIToken    string
	WorkspaceID string
}

// Validate checks both fields against the service's published formats.
// It is called before storing and after unlocking, so a vault can never
// round-trip an implausible credential.
func (c Credential) Validate() error {
	if n := len(c.APIToken); n < tokenMinLen || n > tokenMaxLen {
		return fmt.Errorf("api token length %d outside %d..%d", n, tokenMinLen, tokenMaxLen)
	}
	if !tokenPattern.MatchString(c.APIToken) {
		return fmt.Errorf("api token must start with %q and contain only URL-safe characters", "pat_")
	}
	if _, err := uuid.Parse(c.WorkspaceID); err != nil {
		return fmt.Errorf("workspace id %q is not a UUID: %w", c.WorkspaceID, err)
	}
	return nil
}

// Redacted returns the only loggable form of the token: the prefix plus the
// first four payload characters.
func (c Credential) Redacted() string {
	const keep = 8
	if len(c.APIToken) <= keep {
		return "pat_..."
	}
	return c.APIToken[:keep] + "..."
}

// VaultStatus describes the vault record without unlocking it, for status
// output and diagnostics.
type VaultStatus struct {
	Path       string
	Exists     bool
	Version    uint8
	Iterations uint32
}
