package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/glworbs/internal/paths"
	"github.com/mesh-intelligence/glworbs/pkg/types"
)

const configHeader = "# glworb configuration. Environment variables GLWORB_<KEY> override these.\n"

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configuration and the store",
		Long:  "Write a default config.yaml if none exists, then create the database in the data directory.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(a.configDir, 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			path := paths.ConfigFile(a.configDir)
			written, err := writeConfigIfMissing(path, a.config.DataDir)
			if err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			if err := a.withStore(func(types.Store) error { return nil }); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if written {
				fmt.Fprintln(out, "wrote", path)
			}
			fmt.Fprintln(out, "store ready in", a.config.DataDir)
			return nil
		},
	}
}

// writeConfigIfMissing writes the default configuration to path unless the
// file exists. It reports whether it wrote the file.
func writeConfigIfMissing(path, dataDir string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}

	cfg := types.DefaultConfig()
	cfg.DataDir = dataDir
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(configHeader), data...), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
