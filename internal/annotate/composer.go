package annotate

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/image/draw"

	"github.com/mesh-intelligence/glworbs/internal/images"
	"github.com/mesh-intelligence/glworbs/internal/imageops"
	"github.com/mesh-intelligence/glworbs/internal/metrics"
	"github.com/mesh-intelligence/glworbs/internal/refs"
	"github.com/mesh-intelligence/glworbs/pkg/types"
)

// Caption placement for the field listing drawn on every composed image.
const (
	CaptionX    = 1
	CaptionY    = 100
	CaptionSize = 20
)

// FieldColumnWidth pads field names in FormatFields.
const FieldColumnWidth = 30

// Composer concatenates the annotated images of several records.
type Composer struct {
	records  types.RecordStore
	opener   *images.Opener
	interp   *Interpreter
	resolver *refs.Resolver
	border   int
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewComposer returns a Composer reading records and blobs from the given
// stores. resolver decides which fields hold images; nil uses the default
// prefixes.
func NewComposer(records types.RecordStore, blobs types.BlobStore, interp *Interpreter, resolver *refs.Resolver, opts ...Option) *Composer {
	o := buildOptions(opts)
	if resolver == nil {
		resolver = refs.NewResolver(types.DefaultConfig())
	}
	return &Composer{
		records:  records,
		opener:   &images.Opener{Records: records, Blobs: blobs},
		interp:   interp,
		resolver: resolver,
		border:   o.border,
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

type opened struct {
	handle *images.Handle
	fields *types.Fields
}

// Concatenate opens every reference field of every address, runs layers
// over each image, captions it with the record's fields and pastes the
// results left to right. Each image is followed by the border, so the
// canvas is sum(width+border) wide and as tall as the tallest image.
//
// Records and fields that cannot be read or decoded are logged and
// skipped. If nothing could be opened the error wraps types.ErrNotFound.
func (c *Composer) Concatenate(ctx context.Context, addresses []string, layers []string) (*image.NRGBA, error) {
	var all []opened
	defer func() {
		for _, o := range all {
			o.handle.Close()
		}
	}()

	for _, addr := range addresses {
		fields, err := c.records.GetAll(ctx, addr)
		if err != nil {
			c.logger.Warn("record skipped", "address", addr, "err", err)
			continue
		}
		for _, f := range fields.Pairs() {
			if !c.resolver.Classify(f.Name, f.Value).IsReference() {
				continue
			}
			h, err := c.opener.Open(ctx, addr, f.Name)
			if err != nil {
				c.logger.Warn("field skipped", "address", addr, "field", f.Name, "err", err)
				continue
			}
			all = append(all, opened{handle: h, fields: fields})
		}
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("concatenate %s: no images: %w", strings.Join(addresses, ", "), types.ErrNotFound)
	}

	results := make([]*image.NRGBA, 0, len(all))
	width, height := 0, 0
	for _, o := range all {
		img := c.interp.Apply(o.handle.Image, layers, o.fields.Map()).Image
		img = c.caption(img, o)
		results = append(results, img)
		width += img.Rect.Dx() + c.border
		height = max(height, img.Rect.Dy())
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))
	x := 0
	for _, img := range results {
		draw.Draw(canvas, image.Rect(x, 0, x+img.Rect.Dx(), img.Rect.Dy()), img, image.Point{}, draw.Src)
		x += img.Rect.Dx() + c.border
		c.metrics.ImageComposed()
	}
	return canvas, nil
}

// caption overlays the record's fields. A failing overlay leaves the image
// as it was.
func (c *Composer) caption(img *image.NRGBA, o opened) *image.NRGBA {
	text := escapeBraces(FormatFields(o.fields))
	res, err := c.interp.Registry().Run(imageops.Overlay, images.Clone(img), imageops.Call{
		Args: []string{text, strconv.Itoa(CaptionX), strconv.Itoa(CaptionY), strconv.Itoa(CaptionSize)},
	})
	if err != nil {
		c.logger.Warn("caption skipped", "address", o.handle.Address, "field", o.handle.Field, "err", err)
		return img
	}
	if out, ok := res.Image(); ok {
		return out
	}
	return img
}

// FormatFields lists fields one per line with names padded to
// FieldColumnWidth.
func FormatFields(fields *types.Fields) string {
	var b strings.Builder
	for i, f := range fields.Pairs() {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%-*s%s", FieldColumnWidth, f.Name, f.Value)
	}
	return b.String()
}

var braceEscaper = strings.NewReplacer("{", "{{", "}", "}}")

func escapeBraces(s string) string {
	return braceEscaper.Replace(s)
}
