package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/glworbs/internal/dump"
	"github.com/mesh-intelligence/glworbs/pkg/types"
)

// GetField returns one field of a record.
// Returns ErrNotFound if the record or field is missing, ErrWrongKind for blobs.
func (b *Backend) GetField(ctx context.Context, address, field string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return "", types.ErrBackendDetached
	}

	if err := b.requireKind(ctx, b.db, address, kindHash); err != nil {
		return "", fmt.Errorf("get field %s %s: %w", address, field, err)
	}
	var value string
	err := b.db.QueryRowContext(ctx,
		`SELECT value FROM fields WHERE address = ? AND name = ?`, address, field).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("get field %s %s: %w", address, field, types.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get field %s %s: %w", address, field, err)
	}
	return value, nil
}

// GetAll returns the fields of a record in insertion order.
// Returns ErrNotFound if the address is missing, ErrWrongKind for blobs.
func (b *Backend) GetAll(ctx context.Context, address string) (*types.Fields, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrBackendDetached
	}

	if err := b.requireKind(ctx, b.db, address, kindHash); err != nil {
		return nil, fmt.Errorf("get all %s: %w", address, err)
	}
	pairs, err := loadFields(ctx, b.db, address)
	if err != nil {
		return nil, fmt.Errorf("get all %s: %w", address, err)
	}
	return types.FieldsOf(pairs...), nil
}

// SetField creates or overwrites a field. New fields go after existing ones;
// an overwritten field keeps its position. The record's expiry is kept.
// Returns ErrWrongKind if address holds a blob.
func (b *Backend) SetField(ctx context.Context, address, field, value string) error {
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

	if err := b.dropIfExpired(ctx, tx, address); err != nil {
		return fmt.Errorf("set field %s %s: %w", address, field, err)
	}
	kind, err := b.liveKind(ctx, tx, address)
	switch {
	case errors.Is(err, types.ErrNotFound):
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO keyspace (address, kind, expires_at) VALUES (?, ?, NULL)`, address, kindHash); err != nil {
			return fmt.Errorf("set field %s %s: %w", address, field, err)
		}
	case err != nil:
		return fmt.Errorf("set field %s %s: %w", address, field, err)
	case kind != kindHash:
		return fmt.Errorf("set field %s %s: %w", address, field, types.ErrWrongKind)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO fields (address, position, name, value)
VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM fields WHERE address = ?), ?, ?)
ON CONFLICT (address, name) DO UPDATE SET value = excluded.value`,
		address, address, field, value); err != nil {
		return fmt.Errorf("set field %s %s: %w", address, field, err)
	}
	return tx.Commit()
}

// DeleteField removes a field. A record left without fields is removed.
// Returns ErrNotFound if the field does not exist.
func (b *Backend) DeleteField(ctx context.Context, address, field string) error {
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

	if err := b.requireKind(ctx, tx, address, kindHash); err != nil {
		return fmt.Errorf("delete field %s %s: %w", address, field, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM fields WHERE address = ? AND name = ?`, address, field)
	if err != nil {
		return fmt.Errorf("delete field %s %s: %w", address, field, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("delete field %s %s: %w", address, field, types.ErrNotFound)
	}

	var remaining int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM fields WHERE address = ?`, address).Scan(&remaining); err != nil {
		return err
	}
	if remaining == 0 {
		if err := dropEntry(ctx, tx, address); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Scan returns the live addresses matching a glob pattern, sorted.
func (b *Backend) Scan(ctx context.Context, pattern string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrBackendDetached
	}

	rows, err := b.db.QueryContext(ctx, `SELECT address FROM keyspace
WHERE address GLOB ? AND (expires_at IS NULL OR expires_at > ?)
ORDER BY address`, pattern, b.nowMillis())
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", pattern, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, fmt.Errorf("scan %q: %w", pattern, err)
		}
		out = append(out, address)
	}
	return out, rows.Err()
}

// Serialize returns a dump payload of the entry at address.
// Returns ErrNotFound if the address is missing.
func (b *Backend) Serialize(ctx context.Context, address string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrBackendDetached
	}

	kind, err := b.liveKind(ctx, b.db, address)
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", address, err)
	}

	var p dump.Payload
	switch kind {
	case kindHash:
		pairs, err := loadFields(ctx, b.db, address)
		if err != nil {
			return nil, fmt.Errorf("serialize %s: %w", address, err)
		}
		p = dump.Payload{Kind: dump.KindHash, Fields: pairs}
	case kindBlob:
		data, err := loadBlob(ctx, b.db, address)
		if err != nil {
			return nil, fmt.Errorf("serialize %s: %w", address, err)
		}
		p = dump.Payload{Kind: dump.KindBlob, Data: data}
	default:
		return nil, fmt.Errorf("serialize %s: unknown kind %q", address, kind)
	}
	return dump.Encode(p)
}

// Restore creates an entry at address from a Serialize payload. The entry
// expires after ttlMillis milliseconds; 0 means it never expires.
// Returns ErrAddressInUse if a live entry exists at address and
// ErrCorruptPayload if the payload does not decode. Nothing is written on
// failure.
func (b *Backend) Restore(ctx context.Context, address string, ttlMillis int64, payload []byte) error {
	if ttlMillis < 0 {
		return fmt.Errorf("restore %s: negative ttl: %w", address, types.ErrInvalidArgument)
	}
	p, err := dump.Decode(payload)
	if err != nil {
		return fmt.Errorf("restore %s: %w", address, err)
	}

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

	if err := b.dropIfExpired(ctx, tx, address); err != nil {
		return fmt.Errorf("restore %s: %w", address, err)
	}
	if _, err := b.liveKind(ctx, tx, address); err == nil {
		return fmt.Errorf("restore %s: %w", address, types.ErrAddressInUse)
	} else if !errors.Is(err, types.ErrNotFound) {
		return fmt.Errorf("restore %s: %w", address, err)
	}

	var expires any
	if ttlMillis > 0 {
		expires = b.nowMillis() + ttlMillis
	}

	switch p.Kind {
	case dump.KindHash:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO keyspace (address, kind, expires_at) VALUES (?, ?, ?)`, address, kindHash, expires); err != nil {
			return fmt.Errorf("restore %s: %w", address, err)
		}
		for i, f := range p.Fields {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO fields (address, position, name, value) VALUES (?, ?, ?, ?)`,
				address, i, f.Name, f.Value); err != nil {
				return fmt.Errorf("restore %s field %s: %w", address, f.Name, err)
			}
		}
	case dump.KindBlob:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO keyspace (address, kind, expires_at) VALUES (?, ?, ?)`, address, kindBlob, expires); err != nil {
			return fmt.Errorf("restore %s: %w", address, err)
		}
		if err := b.writeBlob(ctx, tx, address, p.Data); err != nil {
			return fmt.Errorf("restore %s: %w", address, err)
		}
	}
	return tx.Commit()
}

// requireKind checks that a live entry of the given kind exists at address.
func (b *Backend) requireKind(ctx context.Context, q querier, address, want string) error {
	kind, err := b.liveKind(ctx, q, address)
	if err != nil {
		return err
	}
	if kind != want {
		return types.ErrWrongKind
	}
	return nil
}

func loadFields(ctx context.Context, q querier, address string) ([]types.Field, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name, value FROM fields WHERE address = ? ORDER BY position`, address)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Field
	for rows.Next() {
		var f types.Field
		if err := rows.Scan(&f.Name, &f.Value); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
