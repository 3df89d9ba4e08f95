package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/glworbs/pkg/types"
)

// Get returns the bytes stored at key.
// Returns ErrNotFound if the key is missing, ErrWrongKind for records.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrBackendDetached
	}

	if err := b.requireKind(ctx, b.db, key, kindBlob); err != nil {
		return nil, fmt.Errorf("get blob %s: %w", key, err)
	}
	data, err := loadBlob(ctx, b.db, key)
	if err != nil {
		return nil, fmt.Errorf("get blob %s: %w", key, err)
	}
	return data, nil
}

// Put stores data at key. Any previous entry at key, record or blob, is
// replaced and its expiry cleared.
func (b *Backend) Put(ctx context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrBackendDetached
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := dropEntry(ctx, tx, key); err != nil {
		return fmt.Errorf("put blob %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO keyspace (address, kind, expires_at) VALUES (?, ?, NULL)`, key, kindBlob); err != nil {
		return fmt.Errorf("put blob %s: %w", key, err)
	}
	if err := b.writeBlob(ctx, tx, key, data); err != nil {
		return fmt.Errorf("put blob %s: %w", key, err)
	}
	return tx.Commit()
}

func (b *Backend) writeBlob(ctx context.Context, q querier, key string, data []byte) error {
	tag, stored, err := encodeBlob(data, b.config.BlobCompression)
	if err != nil {
		return err
	}
	if stored == nil {
		stored = []byte{}
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO blobs (address, compression, size, data) VALUES (?, ?, ?, ?)`,
		key, int(tag), len(data), stored)
	return err
}

func loadBlob(ctx context.Context, q querier, key string) ([]byte, error) {
	var tag, size int
	var stored []byte
	err := q.QueryRowContext(ctx,
		`SELECT compression, size, data FROM blobs WHERE address = ?`, key).Scan(&tag, &size, &stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeBlob(compressionTag(tag), stored, size)
}
