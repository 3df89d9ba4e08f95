// Package annotate runs layer pipelines over images.
//
// A layer is one line of text: an operation name followed by positional
// arguments, separated by whitespace. There is no quoting, so arguments
// cannot contain spaces. The Interpreter applies layers in order and keeps
// going past bad ones; the Composer runs a pipeline over every image of
// several records and lays the results out side by side.
package annotate

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/glworbs/internal/imageops"
	"github.com/mesh-intelligence/glworbs/pkg/types"
)

// Layer is a parsed layer spec.
type Layer struct {
	Kind imageops.Kind
	// Name is the operation name as written.
	Name string
	Args []string
}

func (l Layer) String() string {
	return strings.Join(append([]string{l.Kind.String()}, l.Args...), " ")
}

// ParseLayer splits spec on whitespace and resolves the first token to an
// operation. Blank specs wrap types.ErrParse; unknown operations wrap
// types.ErrUnknownOperation.
func ParseLayer(spec string) (Layer, error) {
	tokens := strings.Fields(spec)
	if len(tokens) == 0 {
		return Layer{}, fmt.Errorf("empty layer: %w", types.ErrParse)
	}
	kind, err := imageops.ParseKind(tokens[0])
	if err != nil {
		return Layer{}, err
	}
	return Layer{Kind: kind, Name: tokens[0], Args: tokens[1:]}, nil
}

// LayerError reports a layer that was skipped.
type LayerError struct {
	Index int
	Spec  string
	Err   error
}

func (e *LayerError) Error() string {
	return fmt.Sprintf("layer %d %q: %v", e.Index, e.Spec, e.Err)
}

func (e *LayerError) Unwrap() error {
	return e.Err
}
