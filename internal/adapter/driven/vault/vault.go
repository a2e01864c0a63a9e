// Package vault stores the service credential encrypted at rest in a single
// file. The key is derived from an operator passphrase with PBKDF2-SHA256;
// the payload is sealed with AES-256-GCM. Writes are atomic and the file is
// kept private to the owning user.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/crypto/pbkdf2"

	"github.com/evanhartley/genforge/internal/domain/fault"
	"github.com/evanhartley/genforge/internal/domain/model"
	"github.com/evanhartley/genforge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialVault = (*Vault)(nil)

const (
	// defaultIterations is the PBKDF2 work factor written into new
	// records. Records carry their own count, so raising this later
	// does not break existing vaults.
	defaultIterations = 200_000

	// minIterations is the floor accepted when reading. A record
	// claiming fewer has been tampered with or written by broken code.
	minIterations = 100_000

	saltSize = 16
	keySize  = 32
)

// payload is the JSON sealed inside the record.
type payload struct {
	APIToken    string `json:"api_token"`
	WorkspaceID string `json:"workspace_id"`
}

// Vault is the file-backed CredentialVault implementation.
type Vault struct {
	path       string
	iterations int
}

// New creates a vault over the given file path. The file need not exist
// yet; Store creates it and its directory.
func New(path string) *Vault {
	return &Vault{path: path, iterations: defaultIterations}
}

// Unlock reads, authenticates, and decrypts the stored credential.
func (v *Vault) Unlock(passphrase string) (model.Credential, error) {
	if err := v.checkPermissions(); err != nil {
		return model.Credential{}, err
	}

	data, err := os.ReadFile(v.path)
	if errors.Is(err, os.ErrNotExist) {
		return model.Credential{}, fmt.Errorf("vault %q: %w", v.path, os.ErrNotExist)
	}
	if err != nil {
		return model.Credential{}, fmt.Errorf("read vault %q: %w", v.path, err)
	}

	rec, err := parseRecord(data)
	if err != nil {
		return model.Credential{}, corrupt(v.path, err)
	}
	if rec.iterations < minIterations {
		return model.Credential{}, corrupt(v.path, fmt.Errorf("iteration count %d below minimum %d", rec.iterations, minIterations))
	}

	key := deriveKey(passphrase, rec.salt, int(rec.iterations))
	plaintext, err := open(key, rec.nonce, rec.ciphertext)
	if err != nil {
		// GCM cannot tell a wrong key from tampered ciphertext; both
		// authenticate as failure. Report the common case.
		f := fault.Wrap(fault.KindWrongPassphrase, "vault did not open", err)
		f.Remediation = "check the passphrase; if it is correct the vault file has been modified"
		return model.Credential{}, f
	}

	var p payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return model.Credential{}, corrupt(v.path, fmt.Errorf("decrypted payload is not valid JSON: %w", err))
	}
	cred := model.Credential{APIToken: p.APIToken, WorkspaceID: p.WorkspaceID}
	if err := cred.Validate(); err != nil {
		return model.Credential{}, corrupt(v.path, fmt.Errorf("decrypted credential is implausible: %w", err))
	}
	return cred, nil
}

// Store validates and writes the credential as a fresh record. Each write
// gets a new salt and nonce.
func (v *Vault) Store(cred model.Credential, passphrase string) error {
	if err := cred.Validate(); err != nil {
		return fmt.Errorf("refusing to store credential: %w", err)
	}
	if passphrase == "" {
		return fmt.Errorf("refusing to store credential: empty passphrase")
	}

	plaintext, err := json.Marshal(payload{APIToken: cred.APIToken, WorkspaceID: cred.WorkspaceID})
	if err != nil {
		return fmt.Errorf("encode credential payload: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("rand salt: %w", err)
	}
	key := deriveKey(passphrase, salt, v.iterations)

	nonce, ciphertext, err := seal(key, plaintext)
	if err != nil {
		return err
	}

	rec := record{
		version:    recordVersion,
		iterations: uint32(v.iterations),
		salt:       salt,
		nonce:      nonce,
		ciphertext: ciphertext,
	}

	if err := os.MkdirAll(filepath.Dir(v.path), 0o700); err != nil {
		return fmt.Errorf("create vault directory: %w", err)
	}
	if err := writeFileAtomic(v.path, rec.encode()); err != nil {
		return fmt.Errorf("write vault %q: %w", v.path, err)
	}
	return nil
}

// Rotate replaces the stored credential after proving the caller can open
// the current record.
func (v *Vault) Rotate(newCred model.Credential, passphrase string) error {
	if _, err := v.Unlock(passphrase); err != nil {
		return fmt.Errorf("rotate: %w", err)
	}
	return v.Store(newCred, passphrase)
}

// Status describes the record header without deriving a key.
func (v *Vault) Status() (model.VaultStatus, error) {
	st := model.VaultStatus{Path: v.path}

	data, err := os.ReadFile(v.path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("read vault %q: %w", v.path, err)
	}
	rec, err := parseRecord(data)
	if err != nil {
		return st, corrupt(v.path, err)
	}
	st.Exists = true
	st.Version = rec.version
	st.Iterations = rec.iterations
	return st, nil
}

// checkPermissions refuses to touch a vault readable by other users. File
// modes carry no meaning on Windows, so the check is skipped there.
func (v *Vault) checkPermissions() error {
	if runtime.GOOS == "windows" {
		return nil
	}

	fi, err := os.Stat(v.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat vault %q: %w", v.path, err)
	}
	if perm := fi.Mode().Perm(); perm&0o077 != 0 {
		f := fault.Newf(fault.KindInsecurePermissions, "vault file %q has mode %04o", v.path, perm)
		f.Remediation = fmt.Sprintf("run: chmod 600 %s", v.path)
		return f
	}

	dir := filepath.Dir(v.path)
	di, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat vault directory %q: %w", dir, err)
	}
	if perm := di.Mode().Perm(); perm&0o077 != 0 {
		f := fault.Newf(fault.KindInsecurePermissions, "vault directory %q has mode %04o", dir, perm)
		f.Remediation = fmt.Sprintf("run: chmod 700 %s", dir)
		return f
	}
	return nil
}

func corrupt(path string, err error) error {
	f := fault.Wrap(fault.KindVaultCorrupt, fmt.Sprintf("vault %q is damaged", path), err)
	f.Remediation = "restore the vault from backup, or run setup again to write a new one"
	return f
}

func deriveKey(passphrase string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
}

func seal(key, plaintext []byte) (nonce, ciphertext []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	nonce = make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("rand nonce: %w", err)
	}
	return nonce, gcm.Seal(nil, nonce, plaintext, nil), nil
}

func open(key, nonce, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("nonce is %d bytes, want %d", len(nonce), gcm.NonceSize())
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// writeFileAtomic writes data to a same-directory temp file, syncs it, and
// renames it over path. Readers see either the old record or the new one,
// never a partial write.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".vault-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	tmpName = ""
	return nil
}
