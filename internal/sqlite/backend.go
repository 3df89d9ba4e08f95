package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/glworbs/pkg/types"
)

// dbFileName is the database file created inside Config.DataDir.
const dbFileName = "glworbs.db"

// Backend implements types.RecordStore and types.BlobStore on a single
// SQLite keyspace. Records and blobs share one address space, so any entry
// can be serialized and restored under a new address.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB

	// now is the clock used for expiry; tests replace it.
	now func() time.Time
}

var _ types.Store = (*Backend)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{now: time.Now}
}

// Attach opens (or creates) the database in config.DataDir, applies the
// schema and purges expired entries.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	config = config.WithDefaults()

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, dbFileName))
	if err != nil {
		return err
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, stmt := range append(append([]string{`PRAGMA busy_timeout = 5000;`}, schemaDDL...), indexDDL...) {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	b.db = db
	b.config = config
	b.attached = true

	if _, err := b.purgeExpiredLocked(context.Background()); err != nil {
		b.db = nil
		b.attached = false
		db.Close()
		return fmt.Errorf("purge expired: %w", err)
	}
	return nil
}

// Detach closes the database. Idempotent. After Detach every operation
// returns ErrBackendDetached.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.attached = false
	if b.db != nil {
		err := b.db.Close()
		b.db = nil
		return err
	}
	return nil
}

// PurgeExpired deletes every expired entry and returns how many were removed.
func (b *Backend) PurgeExpired(ctx context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return 0, types.ErrBackendDetached
	}
	return b.purgeExpiredLocked(ctx)
}

func (b *Backend) purgeExpiredLocked(ctx context.Context) (int64, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := b.nowMillis()
	for _, stmt := range []string{
		`DELETE FROM fields WHERE address IN (SELECT address FROM keyspace WHERE expires_at IS NOT NULL AND expires_at <= ?)`,
		`DELETE FROM blobs WHERE address IN (SELECT address FROM keyspace WHERE expires_at IS NOT NULL AND expires_at <= ?)`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, now); err != nil {
			return 0, err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM keyspace WHERE expires_at IS NOT NULL AND expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// TTL returns the remaining lifetime of an entry. The boolean is false for
// entries without expiry. Returns ErrNotFound for missing entries.
func (b *Backend) TTL(ctx context.Context, address string) (time.Duration, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return 0, false, types.ErrBackendDetached
	}

	var expires sql.NullInt64
	err := b.db.QueryRowContext(ctx, `SELECT expires_at FROM keyspace WHERE address = ?`, address).Scan(&expires)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("ttl %s: %w", address, types.ErrNotFound)
	}
	if err != nil {
		return 0, false, fmt.Errorf("ttl %s: %w", address, err)
	}
	if !expires.Valid {
		return 0, false, nil
	}
	remaining := expires.Int64 - b.nowMillis()
	if remaining <= 0 {
		return 0, false, fmt.Errorf("ttl %s: %w", address, types.ErrNotFound)
	}
	return time.Duration(remaining) * time.Millisecond, true, nil
}

func (b *Backend) nowMillis() int64 {
	return b.now().UnixMilli()
}

// liveKind returns the kind of the live entry at address, or
// types.ErrNotFound when it is missing or expired.
func (b *Backend) liveKind(ctx context.Context, q querier, address string) (string, error) {
	var kind string
	var expires sql.NullInt64
	err := q.QueryRowContext(ctx, `SELECT kind, expires_at FROM keyspace WHERE address = ?`, address).Scan(&kind, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return "", types.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if expires.Valid && expires.Int64 <= b.nowMillis() {
		return "", types.ErrNotFound
	}
	return kind, nil
}

// dropEntry removes every row belonging to address.
func dropEntry(ctx context.Context, q querier, address string) error {
	for _, stmt := range []string{
		`DELETE FROM fields WHERE address = ?`,
		`DELETE FROM blobs WHERE address = ?`,
		`DELETE FROM keyspace WHERE address = ?`,
	} {
		if _, err := q.ExecContext(ctx, stmt, address); err != nil {
			return err
		}
	}
	return nil
}

// dropIfExpired removes the entry at address when it has expired, so the
// address can be reused.
func (b *Backend) dropIfExpired(ctx context.Context, q querier, address string) error {
	var expires sql.NullInt64
	err := q.QueryRowContext(ctx, `SELECT expires_at FROM keyspace WHERE address = ?`, address).Scan(&expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if expires.Valid && expires.Int64 <= b.nowMillis() {
		return dropEntry(ctx, q, address)
	}
	return nil
}
