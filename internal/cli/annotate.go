package cli

import (
	"fmt"
	"image"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/glworbs/internal/annotate"
	"github.com/mesh-intelligence/glworbs/internal/images"
	"github.com/mesh-intelligence/glworbs/internal/imageops"
	"github.com/mesh-intelligence/glworbs/internal/refs"
	"github.com/mesh-intelligence/glworbs/internal/viewer"
	"github.com/mesh-intelligence/glworbs/pkg/types"
)

// layerFlags are shared by annotate and concat.
type layerFlags struct {
	layers     []string
	layersFile string
	out        string
	view       bool
}

func (f *layerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.layers, "layer", "l", nil, `layer to apply, e.g. "rectangle 10 10 50 50" (repeatable)`)
	cmd.Flags().StringVar(&f.layersFile, "layers-file", "", "YAML file with a list of layers, applied before --layer")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "write the result as PNG to this file")
	cmd.Flags().BoolVar(&f.view, "view", false, "show the result in the configured viewer")
}

// all returns the layers from the file followed by the flag layers.
func (f *layerFlags) all() ([]string, error) {
	if f.layersFile == "" {
		return f.layers, nil
	}
	fromFile, err := readLayersFile(f.layersFile)
	if err != nil {
		return nil, err
	}
	return append(fromFile, f.layers...), nil
}

// readLayersFile accepts either a YAML sequence of layer strings or a
// mapping with a "layers" sequence.
func readLayersFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seq []string
	if err := yaml.Unmarshal(data, &seq); err == nil {
		return seq, nil
	}
	var doc struct {
		Layers []string `yaml:"layers"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("layers file %s: %w: %v", path, types.ErrParse, err)
	}
	return doc.Layers, nil
}

// output writes img to --out and hands it to the viewer per the flags.
func (a *app) output(f *layerFlags, img image.Image) error {
	if f.out != "" {
		if err := writePNG(f.out, img); err != nil {
			return err
		}
	}
	if f.view {
		return a.viewer().Show(img)
	}
	return nil
}

func writePNG(path string, img image.Image) error {
	data, err := images.PNG(img)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (a *app) viewer() *viewer.Command {
	return viewer.New(a.config.ViewerCommand, a.logger)
}

func (a *app) interpreter() *annotate.Interpreter {
	reg := imageops.NewRegistry(
		imageops.WithFontSource(imageops.NewFileFonts(a.config.FontPath, a.config.FontFallbackPath)),
		imageops.WithViewer(a.viewer()),
	)
	return annotate.NewInterpreter(reg, annotate.WithLogger(a.logger), annotate.WithMetrics(a.metrics))
}

func newAnnotateCmd(a *app) *cobra.Command {
	var f layerFlags
	cmd := &cobra.Command{
		Use:   "annotate <address> <field>",
		Short: "Run layers over the image referenced by a field",
		Long: "Open the image the field references, apply the layers in order and write\n" +
			"or show the result. Bad layers are reported and skipped. Geometry results\n" +
			"are printed one per line.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			layers, err := f.all()
			if err != nil {
				return err
			}
			return a.withStore(func(b types.Store) error {
				ctx := cmd.Context()
				opener := &images.Opener{Records: b, Blobs: b}
				h, err := opener.Open(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				defer h.Close()
				fields, err := b.GetAll(ctx, args[0])
				if err != nil {
					return err
				}

				outcome := a.interpreter().Apply(h.Image, layers, fields.Map())
				warnTo(cmd.ErrOrStderr(), outcome.Errors)
				for _, r := range outcome.Rects {
					fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", r.Index, r.Rect)
				}
				return a.output(&f, outcome.Image)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newConcatCmd(a *app) *cobra.Command {
	var f layerFlags
	cmd := &cobra.Command{
		Use:   "concat <address>...",
		Short: "Annotate every image of several records and place them side by side",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.out == "" && !f.view {
				return fmt.Errorf("concat needs --out or --view: %w", types.ErrInvalidArgument)
			}
			layers, err := f.all()
			if err != nil {
				return err
			}
			return a.withStore(func(b types.Store) error {
				c := annotate.NewComposer(b, b, a.interpreter(), refs.NewResolver(a.config),
					annotate.WithLogger(a.logger),
					annotate.WithMetrics(a.metrics),
					annotate.WithBorder(a.config.ConcatBorder),
				)
				img, err := c.Concatenate(cmd.Context(), args, layers)
				if err != nil {
					return err
				}
				return a.output(&f, img)
			})
		},
	}
	f.register(cmd)
	return cmd
}
