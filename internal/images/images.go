// Package images opens images referenced by record fields.
//
// A record field holds a blob key; the blob holds encoded image bytes. Open
// follows that chain and returns a Handle owning the decoded image and the
// raw buffer it came from. Decoders for PNG, JPEG, GIF, BMP, TIFF and WebP
// are registered.
package images

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"sync"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/mesh-intelligence/glworbs/pkg/types"
)

// Opener resolves (address, field) pairs to decoded images.
type Opener struct {
	Records types.RecordStore
	Blobs   types.BlobStore

	// OnOpen, when set, sees every handle Open returns.
	OnOpen func(*Handle)
}

// Handle is an opened image with the buffer it was decoded from.
// Close releases both; it is safe to call more than once.
type Handle struct {
	Image   *image.NRGBA
	Address string
	Field   string
	Key     string
	Format  string

	mu     sync.Mutex
	buf    []byte
	closed bool
}

// Open reads the blob key stored in field of the record at address, fetches
// the blob and decodes it.
// Missing records, fields or blobs wrap types.ErrNotFound; undecodable bytes
// wrap types.ErrDecode.
func (o *Opener) Open(ctx context.Context, address, field string) (*Handle, error) {
	key, err := o.Records.GetField(ctx, address, field)
	if err != nil {
		return nil, fmt.Errorf("open %s %s: %w", address, field, err)
	}
	data, err := o.Blobs.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open %s %s: blob %s: %w", address, field, key, err)
	}
	img, format, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("open %s %s: blob %s: %w", address, field, key, err)
	}
	h := &Handle{
		Image:   img,
		Address: address,
		Field:   field,
		Key:     key,
		Format:  format,
		buf:     data,
	}
	if o.OnOpen != nil {
		o.OnOpen(h)
	}
	return h, nil
}

// Bytes returns the encoded bytes the image was decoded from, or nil after
// Close.
func (h *Handle) Bytes() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf
}

// Closed reports whether Close has been called.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Close drops the image and its buffer.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.buf = nil
	h.Image = nil
	return nil
}

// Decode decodes any registered format into an NRGBA image.
func Decode(data []byte) (*image.NRGBA, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", types.ErrDecode, err)
	}
	return ToNRGBA(img), format, nil
}

// ToNRGBA converts img to an NRGBA image whose bounds start at the origin.
// An NRGBA input already at the origin is returned as is.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)
	return out
}

// Clone returns a deep copy of img.
func Clone(img *image.NRGBA) *image.NRGBA {
	out := &image.NRGBA{
		Pix:    make([]byte, len(img.Pix)),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
	copy(out.Pix, img.Pix)
	return out
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// PNG returns img encoded as PNG.
func PNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
