package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedLock "github.com/davicafu/lendinglab/internal/shared/infra/platform/lock"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	connStr := os.Getenv("TEST_DATABASE_URL")
	if connStr == "" {
		t.Skip("TEST_DATABASE_URL no definido, se omiten tests de Postgres")
	}
	db, err := sql.Open("pgx", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// Dos pools distintos hacen de dos réplicas.
func TestAdvisoryLock_ExcluyeOtraReplica(t *testing.T) {
	ctx := context.Background()
	replicaA := NewAdvisoryLock(openTestDB(t), "lendinglab:test:drain")
	replicaB := NewAdvisoryLock(openTestDB(t), "lendinglab:test:drain")

	release, err := replicaA.TryAcquire(ctx)
	require.NoError(t, err)

	_, err = replicaB.TryAcquire(ctx)
	assert.ErrorIs(t, err, sharedLock.ErrNotAcquired)

	require.NoError(t, release(ctx))

	release, err = replicaB.TryAcquire(ctx)
	require.NoError(t, err)
	assert.NoError(t, release(ctx))
}
