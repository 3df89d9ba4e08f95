// Package viewer shows images with an external program.
package viewer

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/mesh-intelligence/glworbs/internal/images"
	"github.com/mesh-intelligence/glworbs/pkg/types"
)

// Command writes each image to a temporary PNG and starts an external
// program on it without waiting. The PNG is left for the program to read;
// it lives in Dir, or the system temp directory when Dir is empty.
type Command struct {
	Name string
	Args []string
	Dir  string

	logger *slog.Logger
}

// New parses command ("xdg-open", "feh -F") into a Command. An empty
// command uses types.DefaultViewerCommand.
func New(command string, logger *slog.Logger) *Command {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		fields = []string{types.DefaultViewerCommand}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Command{Name: fields[0], Args: fields[1:], logger: logger}
}

// Show starts the viewer on img. Failure to start wraps types.ErrResource.
func (c *Command) Show(img image.Image) error {
	path, err := c.writeTemp(img)
	if err != nil {
		return fmt.Errorf("show: %w", err)
	}

	cmd := exec.Command(c.Name, append(append([]string{}, c.Args...), path)...)
	if err := cmd.Start(); err != nil {
		os.Remove(path)
		return fmt.Errorf("show: start %s: %w: %v", c.Name, types.ErrResource, err)
	}
	c.logger.Debug("viewer started", "command", c.Name, "pid", cmd.Process.Pid, "file", path)

	go func() {
		if err := cmd.Wait(); err != nil {
			var exit *exec.ExitError
			if errors.As(err, &exit) {
				c.logger.Warn("viewer exited", "command", c.Name, "code", exit.ExitCode())
				return
			}
			c.logger.Warn("viewer failed", "command", c.Name, "err", err)
		}
	}()
	return nil
}

func (c *Command) writeTemp(img image.Image) (string, error) {
	f, err := os.CreateTemp(c.Dir, "glworb-*.png")
	if err != nil {
		return "", err
	}
	if err := images.EncodePNG(f, img); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
