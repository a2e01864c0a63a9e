package sqlite

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanhartley/genforge/internal/domain/fault"
)

func TestUsageRepo_AdmissionBelowLimit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUsageRepo(db, 5)
	ctx := context.Background()

	require.NoError(t, repo.Reconcile(ctx))
	require.NoError(t, repo.CheckAdmission(ctx))
}

func TestUsageRepo_CommitIncrementsCount(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUsageRepo(db, 10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Commit(ctx))
	}

	snap, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Count)
	assert.Equal(t, 10, snap.Limit)
	assert.Equal(t, 7, snap.Remaining())
}

func TestUsageRepo_AdmissionBlockedAtLimit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUsageRepo(db, 2)
	ctx := context.Background()

	require.NoError(t, repo.Commit(ctx))
	require.NoError(t, repo.Commit(ctx))

	err := repo.CheckAdmission(ctx)
	require.Error(t, err)
	assert.Equal(t, fault.KindQuotaExceeded, fault.KindOf(err))

	// CheckAdmission never mutates.
	snap, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Count)
}

func TestUsageRepo_ConcurrentCommitsLoseNothing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUsageRepo(db, 1000)
	ctx := context.Background()

	const commits = 50
	var wg sync.WaitGroup
	errs := make(chan error, commits)

	for i := 0; i < commits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Commit(ctx)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	snap, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, commits, snap.Count)
}

func TestUsageRepo_ResetRestoresAdmission(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUsageRepo(db, 1)
	ctx := context.Background()

	require.NoError(t, repo.Commit(ctx))
	require.Error(t, repo.CheckAdmission(ctx))

	require.NoError(t, repo.Reset(ctx))

	require.NoError(t, repo.CheckAdmission(ctx))
	snap, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Count)
	assert.False(t, snap.LastResetAt.IsZero())
}

func TestUsageRepo_ReconcileUpdatesStoredLimit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUsageRepo(db, 42)
	ctx := context.Background()

	require.NoError(t, repo.Reconcile(ctx))

	var stored int
	err := db.Reader.QueryRowContext(ctx, `SELECT quota_limit FROM usage_counter WHERE id = 1`).Scan(&stored)
	require.NoError(t, err)
	assert.Equal(t, 42, stored)
}

func TestUsageRepo_SnapshotPercentages(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUsageRepo(db, 4)
	ctx := context.Background()

	require.NoError(t, repo.Commit(ctx))

	snap, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, snap.PercentUsed(), 0.001)
	assert.False(t, snap.Exhausted())
}
