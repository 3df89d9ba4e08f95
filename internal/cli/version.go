package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the glworb release. Builds may override it with -ldflags -X.
var Version = "0.1.0"

const modulePath = "github.com/mesh-intelligence/glworbs"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the glworb version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "glworb v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
