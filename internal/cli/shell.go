package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/glworbs/internal/refs"
	"github.com/mesh-intelligence/glworbs/internal/session"
	"github.com/mesh-intelligence/glworbs/pkg/types"
)

const shellPrompt = "glworb> "

const shellHelp = `use <address|random|latest> [field]  load a record, optionally picking the field
key <field>                          make a loaded field active
using                                print the active record and field
info                                 list loaded records and fields
ops                                  list operations applied since the last reuse
reuse                                reload the active image from the store
where <layer>                        print the area a layer would cover
save <file>                          write the active image as PNG
duplicate [ttl]                      deep-copy the active record and print the copy's address
quit                                 leave the shell
<layer>                              apply an operation to the active image`

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell [address]",
		Short: "Edit record images interactively",
		Long:  "Read commands and layers line by line from standard input.\n\n" + shellHelp,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(b types.Store) error {
				s := session.New(b, b, a.interpreter(),
					session.WithLogger(a.logger),
					session.WithResolver(refs.NewResolver(a.config)),
					session.WithScanPattern(a.config.ScanPattern),
				)
				defer s.Close()
				sh := &shell{app: a, store: b, session: s, out: cmd.OutOrStdout()}
				if len(args) == 1 {
					sh.exec(cmd.Context(), "use "+args[0])
				}
				return sh.run(cmd.Context(), cmd.InOrStdin(), a.shellHistory())
			})
		},
	}
}

type shell struct {
	app     *app
	store   types.Store
	session *session.Session
	out     io.Writer
}

// run reads lines until quit or end of input. Line editing and history are
// on only when both ends are terminals; piped input is read line by line
// without a prompt.
func (sh *shell) run(ctx context.Context, in io.Reader, historyFile string) error {
	interactive := isTerminal(in) && isTerminal(sh.out)
	cfg := &readline.Config{
		Prompt:         shellPrompt,
		Stdout:         sh.out,
		FuncIsTerminal: func() bool { return interactive },
	}
	if interactive {
		cfg.HistoryFile = historyFile
	} else {
		cfg.Stdin = io.NopCloser(in)
	}
	rl, err := readline.NewEx(cfg)
	if err != nil {
		return fmt.Errorf("shell: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("shell: %w", err)
		}
		if !sh.exec(ctx, line) {
			return nil
		}
	}
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// shellHistory is kept next to the configuration.
func (a *app) shellHistory() string {
	return filepath.Join(a.configDir, "shell_history")
}

// exec runs one line and reports whether the shell should continue.
func (sh *shell) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	if err := sh.dispatch(ctx, fields[0], fields[1:], line); err != nil {
		if errors.Is(err, errQuit) {
			return false
		}
		fmt.Fprintln(sh.out, "error:", err)
	}
	return true
}

var errQuit = errors.New("quit")

func (sh *shell) dispatch(ctx context.Context, name string, args []string, line string) error {
	s := sh.session
	switch name {
	case "quit", "exit":
		return errQuit
	case "help":
		fmt.Fprintln(sh.out, shellHelp)
	case "use":
		if len(args) == 0 {
			return fmt.Errorf("usage: use <address|random|latest> [field]")
		}
		field := session.KeepField
		if len(args) > 1 {
			field = args[1]
		}
		addr, err := s.Use(ctx, args[0], field)
		if err != nil {
			return err
		}
		fmt.Fprintln(sh.out, "using", addr)
	case "key":
		if len(args) != 1 {
			return fmt.Errorf("usage: key <field>")
		}
		return s.SetActiveField(args[0])
	case "using":
		p, ok := s.Active()
		if !ok {
			fmt.Fprintln(sh.out, "nothing active")
			return nil
		}
		fmt.Fprintln(sh.out, p.Address, p.Field)
	case "info":
		for _, l := range s.Info() {
			fmt.Fprintln(sh.out, l)
		}
	case "ops":
		for i, op := range s.Ops() {
			fmt.Fprintf(sh.out, "%d %s\n", i, op)
		}
	case "reuse":
		return s.Revert(ctx)
	case "where":
		rect, err := s.Geometry(strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(sh.out, rect)
	case "save":
		if len(args) != 1 {
			return fmt.Errorf("usage: save <file>")
		}
		img, err := s.ActiveImage()
		if err != nil {
			return err
		}
		return writePNG(args[0], img)
	case "duplicate":
		p, ok := s.Active()
		if !ok {
			return fmt.Errorf("duplicate: nothing active")
		}
		ttl := sh.app.config.DefaultTTL
		if len(args) == 1 {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("ttl %q: %w", args[0], err)
			}
			ttl = v
		}
		addr, err := sh.app.duplicate(ctx, sh.store, p.Address, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(sh.out, addr)
	default:
		res, err := s.Apply(line)
		if err != nil {
			return err
		}
		if rect, ok := res.Rect(); ok {
			fmt.Fprintln(sh.out, rect)
		}
	}
	return nil
}
