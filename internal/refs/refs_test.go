package refs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/glworbs/pkg/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value string
		want  Kind
	}{
		{name: "plain text", field: "title", value: "holiday", want: None},
		{name: "empty value", field: "image_key", value: "", want: None},
		{name: "blob prefix with separator", field: "binary_key", value: "binary:abc", want: BlobRef},
		{name: "record prefix with separator", field: "parent", value: "glworb:abc", want: RecordRef},
		{name: "blob prefix wins over record prefix", field: "x", value: "glworb_binary:abc", want: BlobRef},
		{name: "separator only is an opaque blob key", field: "thumb", value: "abc:def", want: BlobRef},
		{name: "known prefix without separator", field: "source", value: "binary-store-1", want: BlobRef},
		{name: "name suffix without separator", field: "image_key", value: "deadbeef", want: BlobRef},
		{name: "key in middle of name is not enough", field: "keyword", value: "sunset", want: None},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.field, tt.value))
		})
	}
}

func TestResolverCustomPrefixes(t *testing.T) {
	r := NewResolver(types.Config{BlobPrefixes: []string{"img"}, RecordPrefixes: []string{"thing"}})

	assert.Equal(t, BlobRef, r.Classify("a", "img-42"))
	assert.Equal(t, RecordRef, r.Classify("a", "thing-42"))
	assert.Equal(t, None, r.Classify("a", "binary-42"), "default prefixes are replaced")
}

func TestIsDuplicableReference(t *testing.T) {
	tests := []struct {
		field string
		value string
		want  bool
	}{
		{field: "binary_key", value: "binary:abc", want: true},
		{field: "keyframe", value: "glworb:abc", want: true},
		{field: "parent", value: "glworb:abc", want: false},
		{field: "image_key", value: "deadbeef", want: false},
		{field: "image_key", value: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.field+"="+tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDuplicableReference(tt.field, tt.value))
		})
	}
}

func TestHeuristicsDisagree(t *testing.T) {
	// Displayed as an image but not followed by the cloner.
	assert.True(t, Classify("thumbnail", "binary:1").IsReference())
	assert.False(t, IsDuplicableReference("thumbnail", "binary:1"))

	// Both agree when the name contains "key" and the value has a separator.
	assert.True(t, IsDuplicableReference("monkey", "x:y"))
	assert.Equal(t, BlobRef, Classify("monkey", "x:y"))

	// The "_key" suffix is a display signal only.
	assert.True(t, Classify("image_key", "deadbeef").IsReference())
	assert.False(t, IsDuplicableReference("image_key", "deadbeef"))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "blob", BlobRef.String())
	assert.Equal(t, "record", RecordRef.String())
	assert.False(t, None.IsReference())
}
