// Package imageops implements the image operations used by annotation
// layers and interactive sessions.
//
// Operations are enumerated by Kind and bound to implementations when a
// Registry is built. Every operation takes its positional arguments as
// strings and is dual-mode: in Mutate mode it returns the edited image, in
// Geometry mode the area it covers. Operations draw on the image they are
// given; callers that need the input preserved pass a copy.
package imageops

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/mesh-intelligence/glworbs/pkg/types"
)

// Op is the implementation of one operation.
type Op func(img *image.NRGBA, call Call) (Result, error)

// Viewer displays images. Show must not block on the display.
type Viewer interface {
	Show(img image.Image) error
}

// Registry maps operation kinds to implementations.
type Registry struct {
	ops       map[Kind]Op
	fonts     FontSource
	viewer    Viewer
	labelFace font.Face
}

// Option configures a Registry.
type Option func(*Registry)

// WithFontSource sets where overlay text faces come from.
func WithFontSource(fs FontSource) Option {
	return func(r *Registry) { r.fonts = fs }
}

// WithViewer sets the viewer used by the view operation.
func WithViewer(v Viewer) Option {
	return func(r *Registry) { r.viewer = v }
}

// WithLabelFace sets the face used for grid, column and row labels.
func WithLabelFace(f font.Face) Option {
	return func(r *Registry) { r.labelFace = f }
}

// NewRegistry builds a registry with every operation bound. Without
// options, overlay loads fonts from the default paths, labels use a
// built-in bitmap face and view fails for lack of a viewer.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		fonts:     NewFileFonts(types.DefaultFontPath, types.DefaultFontFallbackPath),
		labelFace: basicfont.Face7x13,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.ops = map[Kind]Op{
		Rectangle:       r.rectangle,
		Grid:            r.grid,
		RectangleGrid:   r.rectangleGrid,
		Column:          r.column,
		RectangleColumn: r.rectangleColumn,
		Row:             r.row,
		RectangleRow:    r.rectangleRow,
		Rotate:          r.rotate,
		Overlay:         r.overlay,
		View:            r.view,
	}
	return r
}

// Lookup resolves an operation name to its kind.
func (r *Registry) Lookup(name string) (Kind, error) {
	k, err := ParseKind(name)
	if err != nil {
		return 0, err
	}
	if _, ok := r.ops[k]; !ok {
		return 0, fmt.Errorf("%w: %q", types.ErrUnknownOperation, name)
	}
	return k, nil
}

// Run executes one operation on img.
func (r *Registry) Run(k Kind, img *image.NRGBA, call Call) (Result, error) {
	op, ok := r.ops[k]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", types.ErrUnknownOperation, k)
	}
	res, err := op(img, call)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", k, err)
	}
	return res, nil
}
