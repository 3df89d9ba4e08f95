package cloner

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/glworbs/internal/metrics"
	"github.com/mesh-intelligence/glworbs/internal/sqlite"
	"github.com/mesh-intelligence/glworbs/pkg/types"
)

func setupStore(t *testing.T) *sqlite.Backend {
	t.Helper()
	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(types.Config{DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })
	return b
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seed(t *testing.T, b *sqlite.Backend, address string, pairs ...string) {
	t.Helper()
	require.Zero(t, len(pairs)%2)
	for i := 0; i < len(pairs); i += 2 {
		require.NoError(t, b.SetField(context.Background(), address, pairs[i], pairs[i+1]))
	}
}

func TestDuplicateMissingRoot(t *testing.T) {
	b := setupStore(t)
	c := New(b, WithLogger(quietLogger()))

	_, err := c.Duplicate(context.Background(), "glworb:missing", 60)
	require.ErrorIs(t, err, types.ErrNotFound)

	addrs, err := b.Scan(context.Background(), "*")
	require.NoError(t, err)
	assert.Empty(t, addrs, "nothing is written when the root is missing")
}

func TestDuplicateNegativeTTL(t *testing.T) {
	b := setupStore(t)
	seed(t, b, "glworb:a", "name", "a")

	_, err := New(b).Duplicate(context.Background(), "glworb:a", -1)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestDuplicateFlatRecord(t *testing.T) {
	ctx := context.Background()
	b := setupStore(t)
	seed(t, b, "glworb:a", "name", "first", "created", "1700000000", "note", "has:colon")

	newAddr, err := New(b, WithLogger(quietLogger())).Duplicate(ctx, "glworb:a", 600)
	require.NoError(t, err)
	assert.NotEqual(t, "glworb:a", newAddr)
	assert.True(t, strings.HasPrefix(newAddr, "glworb:"))

	got, err := b.GetAll(ctx, newAddr)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "created", "note"}, got.Names())
	note, _ := got.Get("note")
	assert.Equal(t, "has:colon", note, "names without key are not followed")

	ttl, ok, err := b.TTL(ctx, newAddr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, float64(600*time.Second), float64(ttl), float64(5*time.Second))

	_, ok, err = b.TTL(ctx, "glworb:a")
	require.NoError(t, err)
	assert.False(t, ok, "source keeps no expiry")
}

func TestDuplicateFollowsReferences(t *testing.T) {
	ctx := context.Background()
	b := setupStore(t)
	img := []byte("\x89PNG fake bytes")
	require.NoError(t, b.Put(ctx, "binary:img", img))
	seed(t, b, "glworb:child", "image_key", "binary:img")
	seed(t, b, "glworb:root", "title", "root", "child_key", "glworb:child", "thumb_key", "binary:img")

	m := metrics.New()
	newRoot, err := New(b, WithLogger(quietLogger()), WithMetrics(m)).Duplicate(ctx, "glworb:root", 60)
	require.NoError(t, err)

	root, err := b.GetAll(ctx, newRoot)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "child_key", "thumb_key"}, root.Names(), "field order survives rewrites")

	childAddr, _ := root.Get("child_key")
	assert.NotEqual(t, "glworb:child", childAddr)
	assert.True(t, strings.HasPrefix(childAddr, "glworb:"))

	thumb, _ := root.Get("thumb_key")
	assert.NotEqual(t, "binary:img", thumb)
	assert.True(t, strings.HasPrefix(thumb, "binary:"))
	data, err := b.Get(ctx, thumb)
	require.NoError(t, err)
	assert.Equal(t, img, data)

	child, err := b.GetAll(ctx, childAddr)
	require.NoError(t, err)
	childImg, _ := child.Get("image_key")
	assert.NotEqual(t, "binary:img", childImg)
	assert.Equal(t, thumb, childImg, "a shared blob is copied once per call")

	src, err := b.GetAll(ctx, "glworb:root")
	require.NoError(t, err)
	v, _ := src.Get("child_key")
	assert.Equal(t, "glworb:child", v, "source is untouched")

	// root, child, shared image
	assert.Equal(t, 3.0, counter(t, m, "glworb_entries_duplicated_total"))
}

func TestDuplicateTwiceGivesIndependentCopies(t *testing.T) {
	ctx := context.Background()
	b := setupStore(t)
	seed(t, b, "glworb:child", "name", "child", "back_key", "glworb:root")
	seed(t, b, "glworb:root", "name", "root", "child_key", "glworb:child")

	c := New(b, WithLogger(quietLogger()))
	first, err := c.Duplicate(ctx, "glworb:root", 120)
	require.NoError(t, err)
	second, err := c.Duplicate(ctx, "glworb:root", 120)
	require.NoError(t, err)

	assert.NotEqual(t, "glworb:root", first)
	assert.NotEqual(t, "glworb:root", second)
	assert.NotEqual(t, first, second)

	firstChild, err := b.GetField(ctx, first, "child_key")
	require.NoError(t, err)
	secondChild, err := b.GetField(ctx, second, "child_key")
	require.NoError(t, err)
	assert.NotEqual(t, "glworb:child", firstChild)
	assert.NotEqual(t, "glworb:child", secondChild)
	assert.NotEqual(t, firstChild, secondChild)

	for root, child := range map[string]string{first: firstChild, second: secondChild} {
		back, err := b.GetField(ctx, child, "back_key")
		require.NoError(t, err)
		assert.Equal(t, root, back, "each copy closes its own ring")

		for _, addr := range []string{root, child} {
			ttl, ok, err := b.TTL(ctx, addr)
			require.NoError(t, err)
			require.True(t, ok, addr)
			assert.InDelta(t, float64(120*time.Second), float64(ttl), float64(5*time.Second), addr)
		}
	}

	// Editing one copy leaves the other and the source alone.
	require.NoError(t, b.SetField(ctx, firstChild, "name", "edited"))
	v, err := b.GetField(ctx, secondChild, "name")
	require.NoError(t, err)
	assert.Equal(t, "child", v)
	v, err = b.GetField(ctx, "glworb:child", "name")
	require.NoError(t, err)
	assert.Equal(t, "child", v)
}

func TestDuplicateChildFailureKeepsOriginal(t *testing.T) {
	ctx := context.Background()
	b := setupStore(t)
	require.NoError(t, b.Put(ctx, "binary:ok", []byte("ok")))
	seed(t, b, "glworb:a", "broken_key", "binary:gone", "good_key", "binary:ok")

	var logs bytes.Buffer
	m := metrics.New()
	c := New(b, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))), WithMetrics(m))

	newAddr, err := c.Duplicate(ctx, "glworb:a", 60)
	require.NoError(t, err)

	got, err := b.GetAll(ctx, newAddr)
	require.NoError(t, err)
	broken, _ := got.Get("broken_key")
	assert.Equal(t, "binary:gone", broken)
	good, _ := got.Get("good_key")
	assert.NotEqual(t, "binary:ok", good, "siblings still duplicate")

	assert.Contains(t, logs.String(), "binary:gone")
	assert.Equal(t, 1.0, counter(t, m, "glworb_duplicate_child_failures_total"))
}

func TestDuplicateCycleGuard(t *testing.T) {
	ctx := context.Background()
	b := setupStore(t)
	seed(t, b, "glworb:a", "next_key", "glworb:b")
	seed(t, b, "glworb:b", "prev_key", "glworb:a")

	newA, err := New(b, WithLogger(quietLogger())).Duplicate(ctx, "glworb:a", 60)
	require.NoError(t, err)

	newB, err := b.GetField(ctx, newA, "next_key")
	require.NoError(t, err)
	assert.NotEqual(t, "glworb:b", newB)

	back, err := b.GetField(ctx, newB, "prev_key")
	require.NoError(t, err)
	assert.Equal(t, newA, back, "the cycle closes on the copy")

	addrs, err := b.Scan(ctx, "glworb:*")
	require.NoError(t, err)
	assert.Len(t, addrs, 4)
}

func TestDuplicateSelfReferenceWithGuard(t *testing.T) {
	ctx := context.Background()
	b := setupStore(t)
	seed(t, b, "glworb:self", "self_key", "glworb:self")

	newAddr, err := New(b, WithLogger(quietLogger()), WithCycleGuard(true)).Duplicate(ctx, "glworb:self", 0)
	require.NoError(t, err)

	v, err := b.GetField(ctx, newAddr, "self_key")
	require.NoError(t, err)
	assert.Equal(t, newAddr, v)
}

func TestDuplicateWithoutGuardCopiesSharedChildTwice(t *testing.T) {
	ctx := context.Background()
	b := setupStore(t)
	require.NoError(t, b.Put(ctx, "binary:shared", []byte("s")))
	seed(t, b, "glworb:a", "left_key", "binary:shared", "right_key", "binary:shared")

	guarded, err := New(b, WithLogger(quietLogger())).Duplicate(ctx, "glworb:a", 0)
	require.NoError(t, err)
	l, _ := b.GetField(ctx, guarded, "left_key")
	r, _ := b.GetField(ctx, guarded, "right_key")
	assert.Equal(t, l, r, "guard shares one copy")

	unguarded, err := New(b, WithLogger(quietLogger()), WithCycleGuard(false)).Duplicate(ctx, "glworb:a", 0)
	require.NoError(t, err)
	l, _ = b.GetField(ctx, unguarded, "left_key")
	r, _ = b.GetField(ctx, unguarded, "right_key")
	assert.NotEqual(t, l, r)
}

func TestDuplicateBlobRoot(t *testing.T) {
	ctx := context.Background()
	b := setupStore(t)
	require.NoError(t, b.Put(ctx, "binary:x", []byte("payload")))

	newKey, err := New(b).Duplicate(ctx, "binary:x", 30)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(newKey, "binary:"))
	data, err := b.Get(ctx, newKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func counter(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	totals, err := m.Totals()
	require.NoError(t, err)
	return totals[name]
}
