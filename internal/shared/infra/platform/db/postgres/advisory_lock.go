package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"

	sharedLock "github.com/davicafu/lendinglab/internal/shared/infra/platform/lock"
)

// AdvisoryLock coordina el drenado del outbox entre réplicas con
// pg_try_advisory_lock. El lock vive en una conexión dedicada del pool y se
// suelta solo al liberarlo o al cerrarse esa conexión.
type AdvisoryLock struct {
	db  *sql.DB
	key int64
}

var _ sharedLock.DrainLock = (*AdvisoryLock)(nil)

// NewAdvisoryLock deriva la clave numérica del nombre del lock.
func NewAdvisoryLock(db *sql.DB, name string) *AdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(name))
	return &AdvisoryLock{db: db, key: int64(h.Sum64())}
}

func (l *AdvisoryLock) TryAcquire(ctx context.Context) (func(context.Context) error, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("advisory lock conn: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, l.key).Scan(&acquired); err != nil {
		conn.Close()
		return nil, fmt.Errorf("advisory lock %d: %w", l.key, err)
	}
	if !acquired {
		conn.Close()
		return nil, sharedLock.ErrNotAcquired
	}

	return func(ctx context.Context) error {
		defer conn.Close()
		_, err := conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, l.key)
		return err
	}, nil
}
