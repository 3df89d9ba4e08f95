package imageops

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/glworbs/pkg/types"
)

// Kind enumerates the image operations.
type Kind int

// Operation kinds.
const (
	Rectangle Kind = iota
	Grid
	RectangleGrid
	Column
	RectangleColumn
	Row
	RectangleRow
	Rotate
	Overlay
	View
)

// NamePrefix is accepted in front of any operation name, so "img_grid" and
// "grid" select the same operation.
const NamePrefix = "img_"

var kindNames = [...]string{
	Rectangle:       "rectangle",
	Grid:            "grid",
	RectangleGrid:   "rectangle_grid",
	Column:          "column",
	RectangleColumn: "rectangle_column",
	Row:             "row",
	RectangleRow:    "rectangle_row",
	Rotate:          "rotate",
	Overlay:         "overlay",
	View:            "view",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = Kind(k)
	}
	return m
}()

// Kinds returns every operation kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kindNames))
	for i := range kindNames {
		out[i] = Kind(i)
	}
	return out
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind resolves an operation name, with or without NamePrefix.
// Unknown names wrap types.ErrUnknownOperation.
func ParseKind(name string) (Kind, error) {
	if k, ok := kindsByName[strings.TrimPrefix(name, NamePrefix)]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("%w: %q", types.ErrUnknownOperation, name)
}
