package lock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"

	"github.com/diewo77/quote-optimizer/internal/apperrors"
)

// Postgres holds a session-level advisory lock on a dedicated connection,
// so the lock is released by the server if the process dies.
type Postgres struct {
	db   *sql.DB
	name string
	key  int64
}

func NewPostgres(db *sql.DB, name string) *Postgres {
	return &Postgres{db: db, name: name, key: AdvisoryKey(name)}
}

// AdvisoryKey maps a lock name onto the bigint keyspace of pg advisory locks.
func AdvisoryKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("quoteopt:"))
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

func (p *Postgres) Acquire(ctx context.Context) (Release, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock %s: get connection: %w", p.name, err)
	}

	var ok bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", p.key).Scan(&ok); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("lock %s: %w", p.name, err)
	}
	if !ok {
		_ = conn.Close()
		return nil, apperrors.ErrRunInProgress
	}

	return func(ctx context.Context) error {
		defer conn.Close()
		var released bool
		if err := conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", p.key).Scan(&released); err != nil {
			return fmt.Errorf("unlock %s: %w", p.name, err)
		}
		if !released {
			return apperrors.ErrLockNotHeld
		}
		return nil
	}, nil
}
