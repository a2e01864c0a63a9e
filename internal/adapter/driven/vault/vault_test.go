package vault

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanhartley/genforge/internal/domain/fault"
	"github.com/evanhartley/genforge/internal/domain/model"
)

const testPassphrase = "correct horse battery staple"

func testCredential() model.Credential {
	return model.Credential{
		APIToken:    "pat_" + strings.Repeat("a", 46),
		WorkspaceID: "2f1e4f60-7b5a-4c58-9d3e-1a2b3c4d5e6f",
	}
}

// fastVault lowers the PBKDF2 work factor so the test suite does not burn
// CPU on key stretching. Still above the reader's floor.
func fastVault(t *testing.T) *Vault {
	t.Helper()
	v := New(filepath.Join(t.TempDir(), "vault.bin"))
	v.iterations = minIterations
	return v
}

func TestVault_StoreUnlockRoundTrip(t *testing.T) {
	v := fastVault(t)
	cred := testCredential()

	require.NoError(t, v.Store(cred, testPassphrase))

	got, err := v.Unlock(testPassphrase)
	require.NoError(t, err)
	assert.Equal(t, cred, got)
}

func TestVault_UnlockMissingFile(t *testing.T) {
	v := New(filepath.Join(t.TempDir(), "nope.bin"))

	_, err := v.Unlock(testPassphrase)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestVault_WrongPassphrase(t *testing.T) {
	v := fastVault(t)
	require.NoError(t, v.Store(testCredential(), testPassphrase))

	_, err := v.Unlock("not the passphrase")
	require.Error(t, err)
	assert.Equal(t, fault.KindWrongPassphrase, fault.KindOf(err))
}

func TestVault_TamperedCiphertext(t *testing.T) {
	v := fastVault(t)
	require.NoError(t, v.Store(testCredential(), testPassphrase))

	data, err := os.ReadFile(v.path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(v.path, data, 0o600))

	// GCM authentication cannot distinguish a flipped bit from a wrong
	// key, so the adapter reports the common case.
	_, err = v.Unlock(testPassphrase)
	require.Error(t, err)
	assert.Equal(t, fault.KindWrongPassphrase, fault.KindOf(err))
}

func TestVault_TruncatedRecord(t *testing.T) {
	v := fastVault(t)
	require.NoError(t, v.Store(testCredential(), testPassphrase))

	data, err := os.ReadFile(v.path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(v.path, data[:6], 0o600))

	_, err = v.Unlock(testPassphrase)
	require.Error(t, err)
	assert.Equal(t, fault.KindVaultCorrupt, fault.KindOf(err))
}

func TestVault_GarbageFile(t *testing.T) {
	v := fastVault(t)
	require.NoError(t, os.WriteFile(v.path, []byte("not a vault record at all"), 0o600))

	_, err := v.Unlock(testPassphrase)
	require.Error(t, err)
	assert.Equal(t, fault.KindVaultCorrupt, fault.KindOf(err))
}

func TestVault_WorldReadableFileRefused(t *testing.T) {
	v := fastVault(t)
	require.NoError(t, v.Store(testCredential(), testPassphrase))
	require.NoError(t, os.Chmod(v.path, 0o644))

	_, err := v.Unlock(testPassphrase)
	require.Error(t, err)
	assert.Equal(t, fault.KindInsecurePermissions, fault.KindOf(err))
}

func TestVault_GroupReadableDirectoryRefused(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shared")
	require.NoError(t, os.MkdirAll(dir, 0o750))

	v := New(filepath.Join(dir, "vault.bin"))
	v.iterations = minIterations
	require.NoError(t, v.Store(testCredential(), testPassphrase))

	_, err := v.Unlock(testPassphrase)
	require.Error(t, err)
	assert.Equal(t, fault.KindInsecurePermissions, fault.KindOf(err))
}

func TestVault_StoreWritesPrivateFile(t *testing.T) {
	v := fastVault(t)
	require.NoError(t, v.Store(testCredential(), testPassphrase))

	fi, err := os.Stat(v.path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
}

func TestVault_StoreRejectsImplausibleCredential(t *testing.T) {
	v := fastVault(t)

	err := v.Store(model.Credential{APIToken: "short", WorkspaceID: "nope"}, testPassphrase)
	require.Error(t, err)
	assert.NoFileExists(t, v.path)
}

func TestVault_StoreRejectsEmptyPassphrase(t *testing.T) {
	v := fastVault(t)

	err := v.Store(testCredential(), "")
	require.Error(t, err)
}

func TestVault_RotateRequiresCurrentPassphrase(t *testing.T) {
	v := fastVault(t)
	original := testCredential()
	require.NoError(t, v.Store(original, testPassphrase))

	replacement := testCredential()
	replacement.APIToken = "pat_" + strings.Repeat("b", 46)

	err := v.Rotate(replacement, "wrong")
	require.Error(t, err)
	assert.Equal(t, fault.KindWrongPassphrase, fault.KindOf(err))

	// The original credential survives a refused rotation.
	got, err := v.Unlock(testPassphrase)
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestVault_RotateReplacesCredential(t *testing.T) {
	v := fastVault(t)
	require.NoError(t, v.Store(testCredential(), testPassphrase))

	replacement := testCredential()
	replacement.APIToken = "pat_" + strings.Repeat("b", 46)
	require.NoError(t, v.Rotate(replacement, testPassphrase))

	got, err := v.Unlock(testPassphrase)
	require.NoError(t, err)
	assert.Equal(t, replacement, got)
}

func TestVault_StatusMissingFile(t *testing.T) {
	v := New(filepath.Join(t.TempDir(), "nope.bin"))

	st, err := v.Status()
	require.NoError(t, err)
	assert.False(t, st.Exists)
	assert.Equal(t, v.path, st.Path)
}

func TestVault_StatusDescribesRecord(t *testing.T) {
	v := fastVault(t)
	require.NoError(t, v.Store(testCredential(), testPassphrase))

	st, err := v.Status()
	require.NoError(t, err)
	assert.True(t, st.Exists)
	assert.Equal(t, uint8(recordVersion), st.Version)
	assert.Equal(t, uint32(minIterations), st.Iterations)
}

func TestVault_FreshSaltAndNoncePerStore(t *testing.T) {
	v := fastVault(t)
	cred := testCredential()

	require.NoError(t, v.Store(cred, testPassphrase))
	first, err := os.ReadFile(v.path)
	require.NoError(t, err)

	require.NoError(t, v.Store(cred, testPassphrase))
	second, err := os.ReadFile(v.path)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
