package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/glworbs/internal/annotate"
	"github.com/mesh-intelligence/glworbs/internal/cloner"
	"github.com/mesh-intelligence/glworbs/internal/refs"
	"github.com/mesh-intelligence/glworbs/pkg/types"
)

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <address>",
		Short: "Print the fields of a record, highlighting references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(b types.Store) error {
				ctx := cmd.Context()
				fields, err := b.GetAll(ctx, args[0])
				if errors.Is(err, types.ErrWrongKind) {
					data, err := b.Get(ctx, args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "blob %s (%d bytes)\n", args[0], len(data))
					return nil
				}
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				r := lipgloss.NewRenderer(out)
				styles := map[refs.Kind]lipgloss.Style{
					refs.BlobRef:   r.NewStyle().Foreground(lipgloss.Color("2")),
					refs.RecordRef: r.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
				}
				resolver := refs.NewResolver(a.config)
				for _, f := range fields.Pairs() {
					value := f.Value
					if style, ok := styles[resolver.Classify(f.Name, f.Value)]; ok {
						value = style.Render(value)
					}
					fmt.Fprintf(out, "%-*s%s\n", annotate.FieldColumnWidth, f.Name, value)
				}
				return nil
			})
		},
	}
}

func newSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <address> <field> <value>",
		Short: "Set a field, creating the record if needed",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(b types.Store) error {
				return b.SetField(cmd.Context(), args[0], args[1], args[2])
			})
		},
	}
}

func newUnsetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <address> <field>",
		Short: "Remove a field; the record goes away with its last field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(b types.Store) error {
				return b.DeleteField(cmd.Context(), args[0], args[1])
			})
		},
	}
}

func newPutBlobCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "put-blob <key> <file>",
		Short: "Store the contents of a file as a blob",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			return a.withStore(func(b types.Store) error {
				return b.Put(cmd.Context(), args[0], data)
			})
		},
	}
}

func newScanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [pattern]",
		Short: "List live addresses matching a glob pattern",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := a.config.ScanPattern
			if len(args) == 1 {
				pattern = args[0]
			}
			return a.withStore(func(b types.Store) error {
				addrs, err := b.Scan(cmd.Context(), pattern)
				if err != nil {
					return err
				}
				for _, addr := range addrs {
					fmt.Fprintln(cmd.OutOrStdout(), addr)
				}
				return nil
			})
		},
	}
}

func newDuplicateCmd(a *app) *cobra.Command {
	var ttl int
	cmd := &cobra.Command{
		Use:   "duplicate <address>",
		Short: "Deep-copy a record and everything it references",
		Long: "Copy the record under a new address in the same namespace, following\n" +
			"every field whose name contains \"key\". Copies expire after --ttl seconds.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("ttl") {
				ttl = a.config.DefaultTTL
			}
			return a.withStore(func(b types.Store) error {
				addr, err := a.duplicate(cmd.Context(), b, args[0], ttl)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), addr)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&ttl, "ttl", types.DefaultTTLSeconds, "lifetime of the copies in seconds, 0 for none")
	return cmd
}

func (a *app) duplicate(ctx context.Context, b types.Store, address string, ttl int) (string, error) {
	c := cloner.New(b,
		cloner.WithLogger(a.logger),
		cloner.WithMetrics(a.metrics),
		cloner.WithCycleGuard(a.config.CycleGuard),
	)
	return c.Duplicate(ctx, address, ttl)
}
