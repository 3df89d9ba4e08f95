package imageops

import (
	"fmt"
	"image"
	"image/color"
	"strconv"

	"golang.org/x/image/draw"

	"github.com/mesh-intelligence/glworbs/pkg/types"
)

var (
	// DefaultFill is the rectangle color when none is given.
	DefaultFill = color.NRGBA{R: 255, G: 255, B: 255, A: 127}
	// DefaultLine is the grid, column and row line color when none is given.
	DefaultLine = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// labelInset offsets cell labels from the cell corner.
const labelInset = 2

// rectangle: x y w h [r g b a]
func (r *Registry) rectangle(img *image.NRGBA, call Call) (Result, error) {
	a := args(call.Args)
	var dims [4]int
	for i, name := range [4]string{"x", "y", "width", "height"} {
		v, err := a.int(i, name)
		if err != nil {
			return Result{}, err
		}
		dims[i] = v
	}
	fill, err := a.color(4, DefaultFill)
	if err != nil {
		return Result{}, err
	}
	box := Rect{X0: dims[0], Y0: dims[1], X1: dims[0] + dims[2], Y1: dims[1] + dims[3]}
	if call.Mode == Geometry {
		return RectResult(box), nil
	}
	draw.Draw(img, box.Rectangle(), image.NewUniform(fill), image.Point{}, draw.Over)
	return ImageResult(img), nil
}

// grid: xspacing yspacing [r g b a [label]]
func (r *Registry) grid(img *image.NRGBA, call Call) (Result, error) {
	a := args(call.Args)
	xs, err := a.positive(0, "xspacing")
	if err != nil {
		return Result{}, err
	}
	ys, err := a.positive(1, "yspacing")
	if err != nil {
		return Result{}, err
	}
	return r.lines(img, call, xs, ys, a, 2, GridCells(img.Rect.Dx(), img.Rect.Dy(), xs, ys))
}

// column: xspacing [r g b a [label]]
func (r *Registry) column(img *image.NRGBA, call Call) (Result, error) {
	a := args(call.Args)
	xs, err := a.positive(0, "xspacing")
	if err != nil {
		return Result{}, err
	}
	return r.lines(img, call, xs, 0, a, 1, ColumnCells(img.Rect.Dx(), xs))
}

// row: yspacing [r g b a [label]]
func (r *Registry) row(img *image.NRGBA, call Call) (Result, error) {
	a := args(call.Args)
	ys, err := a.positive(0, "yspacing")
	if err != nil {
		return Result{}, err
	}
	return r.lines(img, call, 0, ys, a, 1, RowCells(img.Rect.Dy(), ys))
}

// lines draws vertical lines every xs and horizontal lines every ys (0
// skips a direction) and labels the cells. The color starts at argument
// colorAt and the label flag follows it.
func (r *Registry) lines(img *image.NRGBA, call Call, xs, ys int, a args, colorAt int, cells []image.Point) (Result, error) {
	line, err := a.color(colorAt, DefaultLine)
	if err != nil {
		return Result{}, err
	}
	label, err := a.boolOr(colorAt+4, "label", true)
	if err != nil {
		return Result{}, err
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if call.Mode == Geometry {
		return RectResult(Rect{X1: w, Y1: h}), nil
	}

	src := image.NewUniform(line)
	if xs > 0 {
		for x := 0; x < w; x += xs {
			draw.Draw(img, image.Rect(x, 0, x+1, h), src, image.Point{}, draw.Over)
		}
	}
	if ys > 0 {
		for y := 0; y < h; y += ys {
			draw.Draw(img, image.Rect(0, y, w, y+1), src, image.Point{}, draw.Over)
		}
	}
	if label {
		opaque := line
		opaque.A = 255
		for i, p := range cells {
			text := fmt.Sprintf("%d (%d,%d)", i, p.X, p.Y)
			drawText(img, r.labelFace, p.X+labelInset, p.Y+labelInset, []string{text}, opaque)
		}
	}
	return ImageResult(img), nil
}

// rectangle_grid: xspacing yspacing upper_left lower_right [geometry_only]
func (r *Registry) rectangleGrid(img *image.NRGBA, call Call) (Result, error) {
	a := args(call.Args)
	xs, err := a.positive(0, "xspacing")
	if err != nil {
		return Result{}, err
	}
	ys, err := a.positive(1, "yspacing")
	if err != nil {
		return Result{}, err
	}
	cells := GridCells(img.Rect.Dx(), img.Rect.Dy(), xs, ys)
	return r.selectCells(img, call, a, 2, cells, xs, ys)
}

// rectangle_column: xspacing left right [geometry_only]
func (r *Registry) rectangleColumn(img *image.NRGBA, call Call) (Result, error) {
	a := args(call.Args)
	xs, err := a.positive(0, "xspacing")
	if err != nil {
		return Result{}, err
	}
	return r.selectCells(img, call, a, 1, ColumnCells(img.Rect.Dx(), xs), xs, img.Rect.Dy())
}

// rectangle_row: yspacing top bottom [geometry_only]
func (r *Registry) rectangleRow(img *image.NRGBA, call Call) (Result, error) {
	a := args(call.Args)
	ys, err := a.positive(0, "yspacing")
	if err != nil {
		return Result{}, err
	}
	return r.selectCells(img, call, a, 1, RowCells(img.Rect.Dy(), ys), img.Rect.Dx(), ys)
}

// selectCells spans from the top-left of cell first to the bottom-right of
// cell last, each cell being cw by ch, and hands the box to rectangle.
func (r *Registry) selectCells(img *image.NRGBA, call Call, a args, at int, cells []image.Point, cw, ch int) (Result, error) {
	first, err := cellIndex(a, at, "first cell", len(cells))
	if err != nil {
		return Result{}, err
	}
	last, err := cellIndex(a, at+1, "last cell", len(cells))
	if err != nil {
		return Result{}, err
	}
	geometryOnly, err := a.boolOr(at+2, "geometry_only", false)
	if err != nil {
		return Result{}, err
	}

	tl := cells[first]
	br := cells[last].Add(image.Pt(cw, ch))
	sub := Call{
		Args: []string{
			strconv.Itoa(tl.X), strconv.Itoa(tl.Y),
			strconv.Itoa(br.X - tl.X), strconv.Itoa(br.Y - tl.Y),
		},
		Mode:          call.Mode,
		Substitutions: call.Substitutions,
	}
	if geometryOnly {
		sub.Mode = Geometry
	}
	return r.rectangle(img, sub)
}

func cellIndex(a args, i int, name string, n int) (int, error) {
	v, err := a.int(i, name)
	if err != nil {
		return 0, err
	}
	if v < 0 || v >= n {
		return 0, fmt.Errorf("%s %d outside 0-%d: %w", name, v, n-1, types.ErrInvalidArgument)
	}
	return v, nil
}

// GridCells returns the top-left corner of every cell of a w by h area cut
// every xs and ys pixels, in column-major order: all cells of the first
// column top to bottom, then the next column.
func GridCells(w, h, xs, ys int) []image.Point {
	var cells []image.Point
	for x := 0; x < w; x += xs {
		for y := 0; y < h; y += ys {
			cells = append(cells, image.Pt(x, y))
		}
	}
	return cells
}

// ColumnCells returns the left edge of every column.
func ColumnCells(w, xs int) []image.Point {
	var cells []image.Point
	for x := 0; x < w; x += xs {
		cells = append(cells, image.Pt(x, 0))
	}
	return cells
}

// RowCells returns the top edge of every row.
func RowCells(h, ys int) []image.Point {
	var cells []image.Point
	for y := 0; y < h; y += ys {
		cells = append(cells, image.Pt(0, y))
	}
	return cells
}
