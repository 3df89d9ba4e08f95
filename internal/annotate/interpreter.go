package annotate

import (
	"errors"
	"image"
	"log/slog"

	"github.com/mesh-intelligence/glworbs/internal/images"
	"github.com/mesh-intelligence/glworbs/internal/imageops"
	"github.com/mesh-intelligence/glworbs/internal/metrics"
	"github.com/mesh-intelligence/glworbs/pkg/types"
)

// Interpreter applies layer specs through an operation registry.
type Interpreter struct {
	registry *imageops.Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures an Interpreter or a Composer.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	border  int
}

// WithLogger sets the logger that reports skipped layers and images.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the counters for applied and skipped layers.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithBorder sets the gap the Composer leaves after each image.
func WithBorder(px int) Option {
	return func(o *options) { o.border = px }
}

func buildOptions(opts []Option) options {
	o := options{border: types.DefaultConcatBorder}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// NewInterpreter returns an Interpreter dispatching to registry.
func NewInterpreter(registry *imageops.Registry, opts ...Option) *Interpreter {
	o := buildOptions(opts)
	return &Interpreter{registry: registry, logger: o.logger, metrics: o.metrics}
}

// Registry returns the registry the interpreter dispatches to.
func (in *Interpreter) Registry() *imageops.Registry {
	return in.registry
}

// LayerRect is a bounding box returned by one layer.
type LayerRect struct {
	Index int
	Spec  string
	Rect  imageops.Rect
}

// Outcome is the result of Apply.
type Outcome struct {
	// Image is the output of the last layer that produced an image, or the
	// input when none did.
	Image  *image.NRGBA
	Rects  []LayerRect
	Errors []error
}

// Apply runs specs in order. Each layer works on a copy of the previous
// successful image, so a failing layer leaves no partial drawing behind.
// Failures are logged, counted and collected; they never stop the run.
func (in *Interpreter) Apply(img *image.NRGBA, specs []string, subs map[string]string) *Outcome {
	out := &Outcome{Image: img}
	for i, spec := range specs {
		res, layer, err := in.Step(out.Image, spec, subs, imageops.Mutate)
		if err != nil {
			lerr := &LayerError{Index: i, Spec: spec, Err: err}
			in.logger.Warn("layer skipped", "index", i, "spec", spec, "err", err)
			out.Errors = append(out.Errors, lerr)
			continue
		}
		if rect, ok := res.Rect(); ok {
			out.Rects = append(out.Rects, LayerRect{Index: i, Spec: spec, Rect: rect})
		} else if next, ok := res.Image(); ok {
			out.Image = next
		}
		in.logger.Debug("layer applied", "index", i, "operation", layer.Kind.String())
	}
	return out
}

// Geometry runs one layer in geometry mode and returns the area it covers.
func (in *Interpreter) Geometry(img *image.NRGBA, spec string, subs map[string]string) (imageops.Rect, error) {
	res, _, err := in.Step(img, spec, subs, imageops.Geometry)
	if err != nil {
		return imageops.Rect{}, err
	}
	rect, ok := res.Rect()
	if !ok {
		// Operations answer geometry calls with a rect; treat a stray image as
		// covering itself.
		b := img.Bounds()
		rect = imageops.Rect{X0: b.Min.X, Y0: b.Min.Y, X1: b.Max.X, Y1: b.Max.Y}
	}
	return rect, nil
}

// Step parses and runs a single layer on a copy of img. img is never
// modified. The failure is counted but not logged.
func (in *Interpreter) Step(img *image.NRGBA, spec string, subs map[string]string, mode imageops.Mode) (imageops.Result, Layer, error) {
	layer, err := ParseLayer(spec)
	if err != nil {
		in.metrics.LayerFailed(failureReason(err))
		return imageops.Result{}, Layer{}, err
	}
	work := img
	if mode == imageops.Mutate {
		work = images.Clone(img)
	}
	res, err := in.registry.Run(layer.Kind, work, imageops.Call{
		Args:          layer.Args,
		Mode:          mode,
		Substitutions: subs,
	})
	if err != nil {
		in.metrics.LayerFailed(failureReason(err))
		return imageops.Result{}, layer, err
	}
	in.metrics.LayerApplied(layer.Kind.String())
	return res, layer, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, types.ErrParse):
		return metrics.ReasonParse
	case errors.Is(err, types.ErrUnknownOperation):
		return metrics.ReasonUnknown
	case errors.Is(err, types.ErrDecode):
		return metrics.ReasonDecode
	default:
		return metrics.ReasonOther
	}
}
