// Package sqlite exposes the SQLite keyspace backend to code outside this
// module while keeping its implementation internal.
package sqlite

import (
	"github.com/mesh-intelligence/glworbs/internal/sqlite"
	"github.com/mesh-intelligence/glworbs/pkg/types"
)

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	store := sqlite.NewBackend()
//	if err := store.Attach(types.Config{DataDir: ".glworbs"}); err != nil {
//	    return err
//	}
//	defer store.Detach()
//	err := store.SetField(ctx, "glworb:1", "name", "first")
func NewBackend() types.Store {
	return sqlite.NewBackend()
}
