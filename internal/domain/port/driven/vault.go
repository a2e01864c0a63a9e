package driven

import (
	"github.com/evanhartley/genforge/internal/domain/model"
)

// CredentialVault defines the driven port for encrypted credential storage.
// The adapter owns key derivation and encryption; this interface operates on
// plaintext credentials at the domain boundary. Implementations report
// failures through the fault taxonomy: wrong_passphrase when the record is
// intact but the passphrase does not open it, vault_corrupt for structural
// damage, insecure_permissions when the file is readable by other users.
type CredentialVault interface {
	// Unlock decrypts the stored credential. A missing vault file is
	// reported by wrapping os.ErrNotExist so callers can drive first-run
	// setup instead of treating it as damage.
	Unlock(passphrase string) (model.Credential, error)

	// Store validates the credential and writes a fresh encrypted record,
	// replacing any existing one atomically. Creating the vault directory
	// is the adapter's job.
	Store(cred model.Credential, passphrase string) error

	// Rotate replaces the stored credential, first proving the caller
	// holds the current passphrase by unlocking the existing record.
	Rotate(newCred model.Credential, passphrase string) error

	// Status describes the record without unlocking it.
	Status() (model.VaultStatus, error)
}
