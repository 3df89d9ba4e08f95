// Package cli implements the glworb command-line interface.
//
// The CLI is the assembly point: it loads the configuration, attaches the
// SQLite store and wires the cloner, the annotation pipeline and the
// interactive session to it. Each command attaches the store for its own
// duration.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/glworbs/internal/metrics"
	"github.com/mesh-intelligence/glworbs/internal/paths"
	"github.com/mesh-intelligence/glworbs/pkg/sqlite"
	"github.com/mesh-intelligence/glworbs/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	logLevel  string
}

// app is the state shared by the commands of one invocation.
type app struct {
	flags     rootFlags
	configDir string
	config    types.Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewRootCmd creates the top-level "glworb" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: slog.Default()}
	root := &cobra.Command{
		Use:   "glworb",
		Short: "Duplicate and annotate glworb records",
		Long: "glworb manages records whose fields reference images and other records.\n" +
			"It makes disposable deep copies of records and runs annotation layers over\n" +
			"their images.",
		Version: Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: $"+paths.EnvConfigDir+" or the user config dir)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: data_dir from config, $"+paths.EnvDataDir+" or the user data dir)")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newShowCmd(a),
		newSetCmd(a),
		newUnsetCmd(a),
		newPutBlobCmd(a),
		newScanCmd(a),
		newDuplicateCmd(a),
		newAnnotateCmd(a),
		newConcatCmd(a),
		newShellCmd(a),
	)
	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "glworb:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps lookup and argument errors to exitUserError and everything
// else to exitSysError.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	for _, target := range []error{
		types.ErrNotFound,
		types.ErrWrongKind,
		types.ErrAddressInUse,
		types.ErrInvalidArgument,
		types.ErrParse,
		types.ErrUnknownOperation,
		types.ErrFieldNotLoaded,
		types.ErrNoActiveImage,
		types.ErrNothingToSelect,
	} {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	return exitSysError
}

// setup resolves directories, loads the config and builds the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	cfg.DataDir, err = paths.ResolveDataDir(a.flags.dataDir, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	if a.flags.logLevel != "" {
		cfg.LogLevel = a.flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return err
	}
	a.configDir = configDir
	a.config = cfg.WithDefaults()
	a.logger = logger
	a.metrics = metrics.New()
	logger.Debug("config loaded", "config_dir", configDir, "data_dir", cfg.DataDir)
	return nil
}

// withStore attaches the store for the duration of fn and writes the
// metrics textfile afterwards.
func (a *app) withStore(fn func(b types.Store) error) error {
	b := sqlite.NewBackend()
	if err := b.Attach(a.config); err != nil {
		return fmt.Errorf("attach store: %w", err)
	}
	err := fn(b)
	if derr := b.Detach(); derr != nil && err == nil {
		err = fmt.Errorf("detach store: %w", derr)
	}
	a.flushMetrics()
	return err
}

func (a *app) flushMetrics() {
	if totals, err := a.metrics.Totals(); err == nil {
		a.logger.Debug("metrics", "totals", totals)
	}
	if a.config.MetricsTextfile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.config.MetricsTextfile); err != nil {
		a.logger.Warn("cannot write metrics textfile", "path", a.config.MetricsTextfile, "err", err)
	}
}

// warnTo prints non-fatal errors the way the pipelines report them.
func warnTo(w io.Writer, errs []error) {
	for _, err := range errs {
		fmt.Fprintln(w, "warning:", err)
	}
}
