package imageops

import (
	"fmt"
	"image"

	"github.com/mesh-intelligence/glworbs/pkg/types"
)

// view hands the image to the viewer and passes it through unchanged.
func (r *Registry) view(img *image.NRGBA, call Call) (Result, error) {
	if call.Mode == Geometry {
		return RectResult(Rect{X1: img.Rect.Dx(), Y1: img.Rect.Dy()}), nil
	}
	if r.viewer == nil {
		return Result{}, fmt.Errorf("no viewer: %w", types.ErrResource)
	}
	if err := r.viewer.Show(img); err != nil {
		return Result{}, fmt.Errorf("%w: %v", types.ErrResource, err)
	}
	return ImageResult(img), nil
}
