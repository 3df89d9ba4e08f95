package types

import "context"

// RecordStore is the keyspace holding records. Records are ordered field
// mappings; the same keyspace also holds blobs, which Serialize and Restore
// handle as well so a blob reference can be duplicated like a record.
type RecordStore interface {
	// GetField returns the value of one field.
	// Returns ErrNotFound if the record or the field does not exist.
	GetField(ctx context.Context, address, field string) (string, error)

	// GetAll returns every field of the record in insertion order.
	// Returns ErrNotFound if the address does not exist and ErrWrongKind
	// if it holds a blob.
	GetAll(ctx context.Context, address string) (*Fields, error)

	// SetField creates or overwrites a field, creating the record if needed.
	// An existing expiry is kept.
	SetField(ctx context.Context, address, field, value string) error

	// DeleteField removes a field. Returns ErrNotFound if it does not exist.
	DeleteField(ctx context.Context, address, field string) error

	// Scan returns the live addresses matching a glob pattern (*, ?, [...]).
	Scan(ctx context.Context, pattern string) ([]string, error)

	// Serialize returns an opaque payload of the entry at address.
	// Returns ErrNotFound if the address does not exist.
	Serialize(ctx context.Context, address string) ([]byte, error)

	// Restore creates a new entry at address from a Serialize payload,
	// expiring after ttlMillis milliseconds (0 means no expiry).
	// Returns ErrAddressInUse if the address exists.
	Restore(ctx context.Context, address string, ttlMillis int64, payload []byte) error
}

// BlobStore holds raw byte payloads under opaque keys.
type BlobStore interface {
	// Get returns the bytes stored at key.
	// Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores data at key, replacing any previous value.
	Put(ctx context.Context, key string, data []byte) error
}

// Store is a keyspace backend holding both records and blobs. Callers
// attach it to a Config, use it, and detach when done.
type Store interface {
	RecordStore
	BlobStore

	// Attach opens the backend described by config. Returns
	// ErrAlreadyAttached if called while attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent. After Detach every
	// operation returns ErrBackendDetached.
	Detach() error
}
