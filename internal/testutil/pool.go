package testutil

import (
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	sharedMu        sync.Mutex
	sharedContainer *PostgresContainer
)

// NewPool returns a migrated connection pool backed by a PostgreSQL test
// container shared across the test binary. The container is reaped by the
// testcontainers sidecar when the binary exits, so no per-test cleanup is
// registered.
//
// Precondition: Docker must be available.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedContainer == nil {
		sharedContainer = startContainer(t)
		sharedContainer.ApplyMigrations(t)
	}
	return sharedContainer.RawPool
}
