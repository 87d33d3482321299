package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite" // pure-Go driver, registered as "sqlite"

	"github.com/memoryd/engine/internal/errs"
	"github.com/memoryd/engine/internal/storage"
)

// PoolConfig sizes the connection pool and the per-connection prepared
// statement cache. Defaults use conservative minimums (5 idle / 20
// max) suitable for a single daemon process.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	StmtCacheSize   int
}

// DefaultPoolConfig returns the engine's baseline pool sizing.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		StmtCacheSize:   100,
	}
}

// pool wraps *sql.DB with a retry policy for SQLITE_BUSY-class
// transient failures, built on a declarative backoff.ExponentialBackOff
// instead of a manual doubling loop. It hands out leasedConns, each
// carrying its own prepared-statement LRU scoped to the one physical
// connection it wraps.
type pool struct {
	db            *sql.DB
	stmtCacheSize int
}

func openPool(path string, cfg PoolConfig) (*pool, error) {
	connStr := storage.SQLiteConnString(path, false)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, errs.Storage("open sqlite database", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	size := cfg.StmtCacheSize
	if size <= 0 {
		size = 100
	}
	return &pool{db: db, stmtCacheSize: size}, nil
}

func (p *pool) close() error {
	if err := p.db.Close(); err != nil {
		return errs.Storage("close sqlite database", err)
	}
	return nil
}

// leasedConn pairs a *sql.Conn checked out of the pool with a
// prepared-statement cache keyed by SQL text and scoped to that one
// physical connection. The cache is only ever read or written while
// the connection is leased; release purges it (closing every cached
// statement) before the connection returns to the pool, so no cache
// entry survives past the connection that prepared it.
type leasedConn struct {
	conn  *sql.Conn
	stmts *lru.Cache[string, *sql.Stmt]
}

// acquire checks out one physical connection from the pool and gives
// it a fresh statement cache.
func (p *pool) acquire(ctx context.Context) (*leasedConn, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, errs.Storage("acquire connection", err)
	}
	stmts, err := lru.NewWithEvict[string, *sql.Stmt](p.stmtCacheSize, func(_ string, s *sql.Stmt) {
		_ = s.Close()
	})
	if err != nil {
		_ = conn.Close()
		return nil, errs.Storage("create prepared statement cache", err)
	}
	return &leasedConn{conn: conn, stmts: stmts}, nil
}

// release clears lc's statement cache (closing every cached statement
// via the LRU's OnEvict callback) and returns its connection to the
// pool.
func (lc *leasedConn) release() {
	lc.stmts.Purge()
	_ = lc.conn.Close()
}

// prepared returns a cached *sql.Stmt for query, preparing it against
// lc's leased connection on first use within this lease.
func (lc *leasedConn) prepared(ctx context.Context, query string) (*sql.Stmt, error) {
	if s, ok := lc.stmts.Get(query); ok {
		return s, nil
	}
	s, err := lc.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, errs.Storage("prepare statement", err)
	}
	lc.stmts.Add(query, s)
	return s, nil
}

// withConn leases a connection for the duration of fn and releases it
// (clearing its statement cache) when fn returns, regardless of
// outcome.
func (p *pool) withConn(ctx context.Context, fn func(*leasedConn) error) error {
	lc, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer lc.release()
	return fn(lc)
}

// retryPolicy returns the backoff schedule used for transient
// SQLITE_BUSY / SQLITE_LOCKED failures: 50ms base, 2s cap, 5 attempts.
func retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	return backoff.WithContext(backoff.WithMaxRetries(b, 4), ctx) // 5 attempts total
}

// withRetry runs op under retryPolicy, retrying only on errors
// isTransient classifies as SQLite busy/locked.
func withRetry(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if isTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, retryPolicy(ctx))
}
