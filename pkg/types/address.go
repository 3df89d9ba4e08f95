package types

import (
	"strings"

	"github.com/google/uuid"
)

// AddressSeparator separates the namespace from the identifier.
const AddressSeparator = ":"

// Namespace returns everything before the last separator of an address,
// or "" when the address has none. "glworb:abc" has namespace "glworb".
func Namespace(address string) string {
	i := strings.LastIndex(address, AddressSeparator)
	if i < 0 {
		return ""
	}
	return address[:i]
}

// NewAddress mints a fresh address in the given namespace using a UUID v7
// identifier.
func NewAddress(namespace string) string {
	id := newID()
	if namespace == "" {
		return id
	}
	return namespace + AddressSeparator + id
}

// newID generates a UUID v7, falling back to v4 if v7 generation fails.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
