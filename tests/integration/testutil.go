// Package integration runs the glworb binary end to end against a
// throwaway configuration and data directory.
package integration

import (
	"bytes"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mesh-intelligence/glworbs/internal/images"
)

var (
	// glworbBin is the path to the built glworb binary.
	glworbBin string
	// buildErr captures any build error.
	buildErr error
)

// BuildError wraps a build error with output.
type BuildError struct {
	Err    error
	Output string
}

func (e *BuildError) Error() string {
	return e.Err.Error() + ": " + e.Output
}

// FindProjectRoot finds the project root by walking up and looking for go.mod.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

// SetGlworbBin sets the path to the glworb binary (called from TestMain).
func SetGlworbBin(path string) {
	glworbBin = path
}

// SetBuildErr sets the build error (called from TestMain).
func SetBuildErr(err error) {
	buildErr = err
}

// TestEnv provides an isolated environment with its own config and data
// directory.
type TestEnv struct {
	t       *testing.T
	TempDir string
	Config  string
	DataDir string
}

// NewTestEnv creates a new isolated test environment. The config file keeps
// logging quiet and points the viewer at a command that exits at once.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	if buildErr != nil {
		t.Fatalf("failed to build glworb: %v", buildErr)
	}
	if glworbBin == "" {
		t.Fatal("glworb binary not built (glworbBin is empty)")
	}

	tempDir := t.TempDir()
	dataDir := filepath.Join(tempDir, "data")
	configDir := filepath.Join(tempDir, "config")

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	configContent := "data_dir: " + dataDir + "\nlog_level: warn\nviewer_command: \"true\"\n"
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	return &TestEnv{
		t:       t,
		TempDir: tempDir,
		Config:  configDir,
		DataDir: dataDir,
	}
}

// CmdResult holds the result of a glworb command execution.
type CmdResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Lines returns the non-empty lines of Stdout.
func (r CmdResult) Lines() []string {
	var out []string
	for _, line := range strings.Split(r.Stdout, "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// RunGlworb executes the glworb CLI with the given arguments.
func (e *TestEnv) RunGlworb(args ...string) CmdResult {
	e.t.Helper()
	return e.RunGlworbInput("", args...)
}

// RunGlworbInput executes the glworb CLI with stdin set to input.
func (e *TestEnv) RunGlworbInput(input string, args ...string) CmdResult {
	e.t.Helper()

	allArgs := append([]string{"--config-dir", e.Config, "--data-dir", e.DataDir}, args...)
	cmd := exec.Command(glworbBin, allArgs...)
	cmd.Env = cleanEnv()
	cmd.Stdin = strings.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			e.t.Fatalf("failed to run glworb: %v", err)
		}
	}

	return CmdResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}
}

// MustRunGlworb executes the glworb CLI and fails the test on a non-zero exit.
func (e *TestEnv) MustRunGlworb(args ...string) CmdResult {
	e.t.Helper()
	result := e.RunGlworb(args...)
	if result.ExitCode != 0 {
		e.t.Fatalf("glworb %v failed with exit code %d:\nstdout: %s\nstderr: %s",
			args, result.ExitCode, result.Stdout, result.Stderr)
	}
	return result
}

// PutImage stores a w by h opaque black PNG under key and points the field
// of address at it.
func (e *TestEnv) PutImage(address, field, key string, w, h int) {
	e.t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	data, err := images.PNG(img)
	if err != nil {
		e.t.Fatalf("encode image: %v", err)
	}
	path := filepath.Join(e.TempDir, strings.ReplaceAll(key, ":", "_")+".png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		e.t.Fatalf("write image: %v", err)
	}
	e.MustRunGlworb("put-blob", key, path)
	e.MustRunGlworb("set", address, field, key)
}

// ReadPNG decodes the PNG file at path.
func ReadPNG(t *testing.T, path string) *image.NRGBA {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file %s: %v", path, err)
	}
	img, format, err := images.Decode(data)
	if err != nil {
		t.Fatalf("failed to decode %s: %v", path, err)
	}
	if format != "png" {
		t.Fatalf("%s is %s, want png", path, format)
	}
	return img
}

// cleanEnv returns os.Environ() without GLWORB_* and XDG_* variables so the
// host environment cannot leak into a test.
func cleanEnv() []string {
	var env []string
	for _, v := range os.Environ() {
		if strings.HasPrefix(v, "GLWORB_") || strings.HasPrefix(v, "XDG_") {
			continue
		}
		env = append(env, v)
	}
	return env
}
