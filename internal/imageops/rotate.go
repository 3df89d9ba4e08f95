package imageops

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// rotate: degrees
//
// Rotation is counter-clockwise and the canvas grows to hold the whole
// rotated image; uncovered pixels are transparent.
func (r *Registry) rotate(img *image.NRGBA, call Call) (Result, error) {
	deg, err := args(call.Args).float(0, "degrees")
	if err != nil {
		return Result{}, err
	}
	w, h := float64(img.Rect.Dx()), float64(img.Rect.Dy())
	sin, cos := math.Sincos(deg * math.Pi / 180)
	nw := expand(math.Abs(w*cos) + math.Abs(h*sin))
	nh := expand(math.Abs(w*sin) + math.Abs(h*cos))
	if call.Mode == Geometry {
		return RectResult(Rect{X1: nw, Y1: nh}), nil
	}

	dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	csx, csy := w/2, h/2
	cdx, cdy := float64(nw)/2, float64(nh)/2
	// Source to destination: translate to the source center, rotate,
	// translate to the destination center.
	s2d := f64.Aff3{
		cos, sin, cdx - (cos*csx + sin*csy),
		-sin, cos, cdy - (-sin*csx + cos*csy),
	}
	interp := draw.Interpolator(draw.BiLinear)
	if math.Mod(deg, 90) == 0 {
		interp = draw.NearestNeighbor
	}
	interp.Transform(dst, s2d, img, img.Rect, draw.Src, nil)
	return ImageResult(dst), nil
}

// expand rounds away float noise before taking the ceiling, so a 90 degree
// turn of a 3x2 image is exactly 2x3.
func expand(v float64) int {
	return int(math.Ceil(math.Round(v*1e6) / 1e6))
}
