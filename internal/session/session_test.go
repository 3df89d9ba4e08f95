package session

import (
	"context"
	"image"
	"image/color"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/basicfont"

	"github.com/mesh-intelligence/glworbs/internal/annotate"
	"github.com/mesh-intelligence/glworbs/internal/images"
	"github.com/mesh-intelligence/glworbs/internal/imageops"
	"github.com/mesh-intelligence/glworbs/internal/sqlite"
	"github.com/mesh-intelligence/glworbs/pkg/types"
)

var black = color.NRGBA{A: 255}

type fixture struct {
	store   *sqlite.Backend
	session *Session
}

func setup(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(types.Config{DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := imageops.NewRegistry(imageops.WithFontSource(imageops.StaticFace(basicfont.Face7x13)))
	interp := annotate.NewInterpreter(reg, annotate.WithLogger(logger))
	s := New(b, b, interp, append([]Option{WithLogger(logger)}, opts...)...)
	t.Cleanup(func() { s.Close() })
	return &fixture{store: b, session: s}
}

func (f *fixture) image(t *testing.T, address, field, key string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	data, err := images.PNG(img)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, f.store.Put(ctx, key, data))
	require.NoError(t, f.store.SetField(ctx, address, field, key))
}

func (f *fixture) field(t *testing.T, address, name, value string) {
	t.Helper()
	require.NoError(t, f.store.SetField(context.Background(), address, name, value))
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.field(t, "glworb:a", "name", "first")
	f.image(t, "glworb:a", "image_key", "binary:img", 20, 10)
	f.field(t, "glworb:a", "broken_key", "binary:gone")
	f.image(t, "glworb:a", "thumb_key", "binary:thumb", 4, 4)

	require.NoError(t, f.session.Load(ctx, "glworb:a"))
	assert.Equal(t, []string{"glworb:a"}, f.session.Loaded())
	assert.Equal(t, []string{"image_key", "thumb_key"}, f.session.Fields("glworb:a"))

	active, ok := f.session.Active()
	require.True(t, ok)
	assert.Equal(t, Pointer{Address: "glworb:a", Field: "image_key"}, active)

	meta, ok := f.session.Metadata("glworb:a")
	require.True(t, ok)
	assert.Equal(t, 4, meta.Len())

	f.field(t, "glworb:a", "name", "changed")
	meta, _ = f.session.Metadata("glworb:a")
	name, _ := meta.Get("name")
	assert.Equal(t, "first", name, "snapshot is not refetched")

	assert.ErrorIs(t, f.session.Load(ctx, "glworb:missing"), types.ErrNotFound)
}

func TestActivePointer(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.image(t, "glworb:a", "image_key", "binary:a", 5, 5)
	f.image(t, "glworb:a", "thumb_key", "binary:t", 3, 3)
	f.image(t, "glworb:b", "image_key", "binary:b", 6, 6)

	_, err := f.session.ActiveImage()
	assert.ErrorIs(t, err, types.ErrNoActiveImage)
	assert.ErrorIs(t, f.session.SetActiveField("image_key"), types.ErrFieldNotLoaded)

	require.NoError(t, f.session.Load(ctx, "glworb:a"))
	require.NoError(t, f.session.Load(ctx, "glworb:b"))

	require.NoError(t, f.session.SetActiveField("thumb_key"))
	img, err := f.session.ActiveImage()
	require.NoError(t, err)
	assert.Equal(t, 3, img.Rect.Dx())

	err = f.session.SetActiveField("name")
	require.ErrorIs(t, err, types.ErrFieldNotLoaded)
	assert.Contains(t, err.Error(), `"name"`)

	require.NoError(t, f.session.SetActiveAddress("glworb:b"))
	active, _ := f.session.Active()
	assert.Equal(t, Pointer{Address: "glworb:b", Field: "image_key"}, active)
	assert.ErrorIs(t, f.session.SetActiveAddress("glworb:c"), types.ErrFieldNotLoaded)

	info := f.session.Info()
	assert.Equal(t, []string{
		"glworb:a",
		"  image_key            5x5 binary:a",
		"  thumb_key            3x3 binary:t",
		"glworb:b",
		"  image_key            6x6 binary:b * (active)",
	}, info)
}

func TestApplyAndRevert(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.image(t, "glworb:a", "image_key", "binary:a", 30, 30)
	f.image(t, "glworb:a", "thumb_key", "binary:t", 30, 30)
	require.NoError(t, f.session.Load(ctx, "glworb:a"))

	_, err := f.session.Apply("rectangle 0 0 10 10 255 0 0 255")
	require.NoError(t, err)
	res, err := f.session.Apply("rectangle_grid 10 10 0 4 true")
	require.NoError(t, err)
	assert.True(t, res.IsRect())
	_, err = f.session.Apply("unknown 1")
	assert.ErrorIs(t, err, types.ErrUnknownOperation)

	img, _ := f.session.ActiveImage()
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, img.NRGBAAt(5, 5))

	ops := f.session.Ops()
	require.Len(t, ops, 2)
	assert.Equal(t, "rectangle 0 0 10 10 255 0 0 255", ops[0].String())
	assert.Equal(t, "rectangle_grid 10 10 0 4 true -> (0, 0, 20, 20)", ops[1].String())

	// Edit the other field too; revert only touches the active one.
	require.NoError(t, f.session.SetActiveField("thumb_key"))
	_, err = f.session.Apply("rectangle 0 0 10 10 0 255 0 255")
	require.NoError(t, err)
	require.NoError(t, f.session.SetActiveField("image_key"))

	require.NoError(t, f.session.Revert(ctx))
	img, _ = f.session.ActiveImage()
	assert.Equal(t, black, img.NRGBAAt(5, 5))
	assert.Empty(t, f.session.Ops())

	require.NoError(t, f.session.SetActiveField("thumb_key"))
	thumb, _ := f.session.ActiveImage()
	assert.Equal(t, color.NRGBA{G: 255, A: 255}, thumb.NRGBAAt(5, 5))
}

func TestGeometryLeavesImage(t *testing.T) {
	f := setup(t)
	f.image(t, "glworb:a", "image_key", "binary:a", 30, 30)
	require.NoError(t, f.session.Load(context.Background(), "glworb:a"))

	rect, err := f.session.Geometry("rectangle 1 2 3 4")
	require.NoError(t, err)
	assert.Equal(t, imageops.Rect{X0: 1, Y0: 2, X1: 4, Y1: 6}, rect)
	img, _ := f.session.ActiveImage()
	assert.Equal(t, black, img.NRGBAAt(2, 3))
	assert.Empty(t, f.session.Ops())
}

func TestUse(t *testing.T) {
	ctx := context.Background()

	t.Run("latest by created", func(t *testing.T) {
		f := setup(t)
		f.image(t, "glworb:old", "image_key", "binary:o", 2, 2)
		f.field(t, "glworb:old", "created", "100")
		f.image(t, "glworb:new", "image_key", "binary:n", 2, 2)
		f.field(t, "glworb:new", "created", "200.5")
		f.image(t, "glworb:zzz", "image_key", "binary:z", 2, 2)
		f.field(t, "glworb:zzz", "created", "not a time")

		addr, err := f.session.Use(ctx, SelectLatest, KeepField)
		require.NoError(t, err)
		assert.Equal(t, "glworb:new", addr)
	})

	t.Run("random uses the injected source", func(t *testing.T) {
		f := setup(t, WithRandom(func(n int) int { return n - 1 }))
		f.image(t, "glworb:a", "image_key", "binary:a", 2, 2)
		f.image(t, "glworb:b", "image_key", "binary:b", 2, 2)
		require.NoError(t, f.store.Put(ctx, "binary:loose", []byte("x")))

		addr, err := f.session.Use(ctx, SelectRandom, "")
		require.NoError(t, err)
		assert.Equal(t, "glworb:b", addr)
	})

	t.Run("clears previous state and selects the field", func(t *testing.T) {
		f := setup(t)
		f.image(t, "glworb:a", "image_key", "binary:a", 2, 2)
		f.image(t, "glworb:b", "image_key", "binary:b", 2, 2)
		f.image(t, "glworb:b", "thumb_key", "binary:t", 2, 2)
		require.NoError(t, f.session.Load(ctx, "glworb:a"))
		_, err := f.session.Apply("rotate 90")
		require.NoError(t, err)

		addr, err := f.session.Use(ctx, "glworb:b", "thumb_key")
		require.NoError(t, err)
		assert.Equal(t, "glworb:b", addr)
		assert.Equal(t, []string{"glworb:b"}, f.session.Loaded())
		assert.Empty(t, f.session.Ops())
		active, _ := f.session.Active()
		assert.Equal(t, "thumb_key", active.Field)
	})

	t.Run("nothing to select", func(t *testing.T) {
		f := setup(t, WithScanPattern("other:*"))
		f.image(t, "glworb:a", "image_key", "binary:a", 2, 2)
		_, err := f.session.Use(ctx, SelectRandom, "")
		assert.ErrorIs(t, err, types.ErrNothingToSelect)
	})
}

// track records every handle the session opens, newest last.
func (f *fixture) track() *[]*images.Handle {
	var seen []*images.Handle
	f.session.opener.OnOpen = func(h *images.Handle) { seen = append(seen, h) }
	return &seen
}

func openHandles(seen []*images.Handle) []string {
	var open []string
	for _, h := range seen {
		if !h.Closed() {
			open = append(open, h.Address+" "+h.Field)
		}
	}
	return open
}

func TestHandlesReleased(t *testing.T) {
	ctx := context.Background()

	t.Run("revert releases only the replaced handle", func(t *testing.T) {
		f := setup(t)
		seen := f.track()
		f.image(t, "glworb:a", "image_key", "binary:a", 4, 4)
		f.image(t, "glworb:a", "thumb_key", "binary:t", 4, 4)
		require.NoError(t, f.session.Load(ctx, "glworb:a"))
		require.Len(t, *seen, 2)
		replaced := (*seen)[0]

		require.NoError(t, f.session.Revert(ctx))
		require.Len(t, *seen, 3)
		assert.True(t, replaced.Closed())
		assert.Equal(t, []string{"glworb:a thumb_key", "glworb:a image_key"}, openHandles(*seen))
	})

	t.Run("loading again releases the previous images", func(t *testing.T) {
		f := setup(t)
		seen := f.track()
		f.image(t, "glworb:a", "image_key", "binary:a", 4, 4)
		require.NoError(t, f.session.Load(ctx, "glworb:a"))
		require.NoError(t, f.session.Load(ctx, "glworb:a"))

		require.Len(t, *seen, 2)
		assert.True(t, (*seen)[0].Closed())
		assert.False(t, (*seen)[1].Closed())
	})

	t.Run("use releases every other record", func(t *testing.T) {
		f := setup(t)
		seen := f.track()
		f.image(t, "glworb:a", "image_key", "binary:a", 4, 4)
		f.image(t, "glworb:b", "image_key", "binary:b", 4, 4)
		f.image(t, "glworb:b", "thumb_key", "binary:t", 4, 4)
		require.NoError(t, f.session.Load(ctx, "glworb:a"))
		require.NoError(t, f.session.Load(ctx, "glworb:b"))

		_, err := f.session.Use(ctx, "glworb:a", KeepField)
		require.NoError(t, err)
		require.Len(t, *seen, 4)
		assert.Equal(t, []string{"glworb:a image_key"}, openHandles(*seen))
	})

	t.Run("close releases everything", func(t *testing.T) {
		f := setup(t)
		seen := f.track()
		f.image(t, "glworb:a", "image_key", "binary:a", 4, 4)
		f.image(t, "glworb:b", "image_key", "binary:b", 4, 4)
		require.NoError(t, f.session.Load(ctx, "glworb:a"))
		require.NoError(t, f.session.Load(ctx, "glworb:b"))
		_, err := f.session.Apply("rotate 90")
		require.NoError(t, err)

		require.NoError(t, f.session.Close())
		require.Len(t, *seen, 2)
		assert.Empty(t, openHandles(*seen))
		_, err = f.session.ActiveImage()
		assert.ErrorIs(t, err, types.ErrNoActiveImage)
	})
}
