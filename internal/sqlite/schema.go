// Package sqlite implements the SQLite backend for the glworbs keyspace.
package sqlite

// Schema DDL. Every entry of the keyspace has one keyspace row; hashes keep
// their fields in the fields table, blobs their bytes in the blobs table.
const (
	createKeyspace = `CREATE TABLE IF NOT EXISTS keyspace (
    address TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    expires_at INTEGER
);`

	createFields = `CREATE TABLE IF NOT EXISTS fields (
    address TEXT NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (address, name)
);`

	createBlobs = `CREATE TABLE IF NOT EXISTS blobs (
    address TEXT PRIMARY KEY,
    compression INTEGER NOT NULL,
    size INTEGER NOT NULL,
    data BLOB NOT NULL
);`
)

// Index DDL.
const (
	idxKeyspaceExpires = `CREATE INDEX IF NOT EXISTS idx_keyspace_expires ON keyspace(expires_at);`
	idxFieldsPosition  = `CREATE INDEX IF NOT EXISTS idx_fields_position ON fields(address, position);`
)

// Keyspace entry kinds stored in keyspace.kind.
const (
	kindHash = "hash"
	kindBlob = "blob"
)

// schemaDDL lists all CREATE TABLE statements.
var schemaDDL = []string{
	createKeyspace,
	createFields,
	createBlobs,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxKeyspaceExpires,
	idxFieldsPosition,
}
