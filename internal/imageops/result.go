package imageops

import (
	"fmt"
	"image"
)

// Mode selects what an operation returns.
type Mode int

const (
	// Mutate draws on the image and returns it.
	Mutate Mode = iota
	// Geometry leaves the image alone and returns the area the operation
	// would cover.
	Geometry
)

// Call carries the arguments of one operation invocation.
type Call struct {
	// Args are the positional arguments as they appeared in the layer.
	Args []string
	Mode Mode
	// Substitutions resolve {name} placeholders in overlay text.
	Substitutions map[string]string
}

// Rect is a bounding box with exclusive max corner (X1, Y1).
type Rect struct {
	X0, Y0, X1, Y1 int
}

// Rectangle converts r to a canonical image.Rectangle.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X0, r.Y0, r.X1, r.Y1)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", r.X0, r.Y0, r.X1, r.Y1)
}

// Result holds either an image or a Rect.
type Result struct {
	img    *image.NRGBA
	rect   Rect
	isRect bool
}

// ImageResult wraps an image.
func ImageResult(img *image.NRGBA) Result {
	return Result{img: img}
}

// RectResult wraps a bounding box.
func RectResult(r Rect) Result {
	return Result{rect: r, isRect: true}
}

// Image returns the image, if the result holds one.
func (r Result) Image() (*image.NRGBA, bool) {
	return r.img, !r.isRect
}

// Rect returns the bounding box, if the result holds one.
func (r Result) Rect() (Rect, bool) {
	return r.rect, r.isRect
}

// IsRect reports whether the result is a bounding box.
func (r Result) IsRect() bool {
	return r.isRect
}
