// Package refs classifies record field values as references.
//
// Two heuristics coexist and are kept apart on purpose: Classify decides
// which fields are opened and displayed as images, IsDuplicableReference
// decides which fields the cloner follows. They disagree on some inputs
// (a "thumbnail" field holding "binary:1" is displayed but not duplicated).
// Both are textual matches; false positives are expected and callers skip
// entries that fail to open.
package refs

import (
	"strings"

	"github.com/mesh-intelligence/glworbs/pkg/types"
)

// Kind is the classification of a field value.
type Kind int

const (
	None Kind = iota
	BlobRef
	RecordRef
)

// String returns the lowercase name of k.
func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case BlobRef:
		return "blob"
	case RecordRef:
		return "record"
	default:
		return "unknown"
	}
}

// IsReference reports whether k is BlobRef or RecordRef.
func (k Kind) IsReference() bool {
	return k == BlobRef || k == RecordRef
}

// keySuffix marks a field name as a reference for display.
const keySuffix = "_key"

// Resolver holds the prefixes recognized by the display heuristic.
type Resolver struct {
	BlobPrefixes   []string
	RecordPrefixes []string
}

// NewResolver returns a Resolver using the config's prefixes, falling back
// to the defaults when they are unset.
func NewResolver(cfg types.Config) *Resolver {
	cfg = cfg.WithDefaults()
	return &Resolver{
		BlobPrefixes:   cfg.BlobPrefixes,
		RecordPrefixes: cfg.RecordPrefixes,
	}
}

var defaultResolver = &Resolver{
	BlobPrefixes:   types.DefaultBlobPrefixes,
	RecordPrefixes: types.DefaultRecordPrefixes,
}

// Classify applies the display heuristic with the default prefixes.
func Classify(name, value string) Kind {
	return defaultResolver.Classify(name, value)
}

// Classify reports whether a field is a reference for display purposes.
// A value is a candidate when it contains the address separator, contains a
// known prefix, or the field name ends in "_key". Candidates whose value
// contains a blob prefix are BlobRef; otherwise a record prefix makes them
// RecordRef; anything else is an opaque key and treated as BlobRef.
func (r *Resolver) Classify(name, value string) Kind {
	if value == "" {
		return None
	}
	blob := containsAny(value, r.BlobPrefixes)
	record := containsAny(value, r.RecordPrefixes)
	candidate := strings.Contains(value, types.AddressSeparator) ||
		blob || record ||
		strings.HasSuffix(name, keySuffix)
	switch {
	case !candidate:
		return None
	case blob:
		return BlobRef
	case record:
		return RecordRef
	default:
		return BlobRef
	}
}

// IsDuplicableReference reports whether the cloner follows a field: the
// name contains "key" and the value contains the address separator.
func IsDuplicableReference(name, value string) bool {
	return strings.Contains(name, "key") && strings.Contains(value, types.AddressSeparator)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
