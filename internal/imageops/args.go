package imageops

import (
	"fmt"
	"image/color"
	"strconv"

	"github.com/mesh-intelligence/glworbs/pkg/types"
)

// args reads positional arguments by index.
type args []string

func (a args) has(i int) bool { return i < len(a) }

func (a args) int(i int, name string) (int, error) {
	if !a.has(i) {
		return 0, fmt.Errorf("missing %s: %w", name, types.ErrInvalidArgument)
	}
	v, err := strconv.Atoi(a[i])
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", name, a[i], types.ErrParse)
	}
	return v, nil
}

func (a args) intOr(i int, name string, def int) (int, error) {
	if !a.has(i) {
		return def, nil
	}
	return a.int(i, name)
}

func (a args) positive(i int, name string) (int, error) {
	v, err := a.int(i, name)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d: %w", name, v, types.ErrInvalidArgument)
	}
	return v, nil
}

func (a args) float(i int, name string) (float64, error) {
	if !a.has(i) {
		return 0, fmt.Errorf("missing %s: %w", name, types.ErrInvalidArgument)
	}
	v, err := strconv.ParseFloat(a[i], 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", name, a[i], types.ErrParse)
	}
	return v, nil
}

func (a args) boolOr(i int, name string, def bool) (bool, error) {
	if !a.has(i) {
		return def, nil
	}
	v, err := strconv.ParseBool(a[i])
	if err != nil {
		return false, fmt.Errorf("%s %q: %w", name, a[i], types.ErrParse)
	}
	return v, nil
}

// color reads r g b a starting at index i, each defaulting to def.
func (a args) color(i int, def color.NRGBA) (color.NRGBA, error) {
	out := [4]uint8{def.R, def.G, def.B, def.A}
	for j, name := range [4]string{"red", "green", "blue", "alpha"} {
		if !a.has(i + j) {
			break
		}
		v, err := a.int(i+j, name)
		if err != nil {
			return color.NRGBA{}, err
		}
		if v < 0 || v > 255 {
			return color.NRGBA{}, fmt.Errorf("%s %d out of range 0-255: %w", name, v, types.ErrInvalidArgument)
		}
		out[j] = uint8(v)
	}
	return color.NRGBA{R: out[0], G: out[1], B: out[2], A: out[3]}, nil
}
