package imageops

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/mesh-intelligence/glworbs/pkg/types"
)

// FontSource hands out faces for overlay text.
type FontSource interface {
	Face(size float64) (font.Face, error)
}

// FaceFunc adapts a function to FontSource.
type FaceFunc func(size float64) (font.Face, error)

// Face calls f.
func (f FaceFunc) Face(size float64) (font.Face, error) {
	return f(size)
}

// StaticFace is a FontSource returning face for every size.
func StaticFace(face font.Face) FontSource {
	return FaceFunc(func(float64) (font.Face, error) { return face, nil })
}

// FileFonts loads a TrueType or OpenType font from Primary, falling back
// to Fallback. A bare file name that is not in the working directory is
// searched for recursively under Dirs. The parsed font and the faces built
// from it are cached.
type FileFonts struct {
	Primary  string
	Fallback string
	Dirs     []string

	mu    sync.Mutex
	font  *opentype.Font
	faces map[float64]font.Face
}

// NewFileFonts returns a FileFonts for the two paths.
func NewFileFonts(primary, fallback string) *FileFonts {
	return &FileFonts{Primary: primary, Fallback: fallback, Dirs: SystemFontDirs()}
}

// SystemFontDirs lists the font directories of the current platform, user
// directories first.
func SystemFontDirs() []string {
	home, _ := os.UserHomeDir()
	var dirs []string
	switch runtime.GOOS {
	case "windows":
		if windir := os.Getenv("WINDIR"); windir != "" {
			dirs = append(dirs, filepath.Join(windir, "Fonts"))
		}
	case "darwin":
		if home != "" {
			dirs = append(dirs, filepath.Join(home, "Library", "Fonts"))
		}
		dirs = append(dirs, "/Library/Fonts", "/System/Library/Fonts")
	default:
		dataHome := os.Getenv("XDG_DATA_HOME")
		if dataHome == "" && home != "" {
			dataHome = filepath.Join(home, ".local", "share")
		}
		if dataHome != "" {
			dirs = append(dirs, filepath.Join(dataHome, "fonts"))
		}
		if home != "" {
			dirs = append(dirs, filepath.Join(home, ".fonts"))
		}
		dataDirs := os.Getenv("XDG_DATA_DIRS")
		if dataDirs == "" {
			dataDirs = "/usr/local/share:/usr/share"
		}
		for _, d := range filepath.SplitList(dataDirs) {
			dirs = append(dirs, filepath.Join(d, "fonts"))
		}
	}
	return dirs
}

// Face returns a face of the given size in points at 72 DPI.
// If neither path holds a usable font the error wraps types.ErrResource.
func (f *FileFonts) Face(size float64) (font.Face, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if face, ok := f.faces[size]; ok {
		return face, nil
	}
	if f.font == nil {
		parsed, err := f.load()
		if err != nil {
			return nil, err
		}
		f.font = parsed
	}
	face, err := opentype.NewFace(f.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("font face size %v: %w: %v", size, types.ErrResource, err)
	}
	if f.faces == nil {
		f.faces = make(map[float64]font.Face)
	}
	f.faces[size] = face
	return face, nil
}

func (f *FileFonts) load() (*opentype.Font, error) {
	var errs []error
	for _, path := range []string{f.Primary, f.Fallback} {
		if path == "" {
			continue
		}
		data, err := f.read(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		parsed, err := opentype.Parse(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %v", path, err))
			continue
		}
		return parsed, nil
	}
	return nil, fmt.Errorf("load font: %w: %v", types.ErrResource, errors.Join(errs...))
}

// read returns the font file at path. A bare name missing from the working
// directory is looked up under Dirs.
func (f *FileFonts) read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil || !errors.Is(err, fs.ErrNotExist) || filepath.Base(path) != path {
		return data, err
	}
	for _, dir := range f.Dirs {
		if found := findFile(dir, path); found != "" {
			return os.ReadFile(found)
		}
	}
	return nil, err
}

// findFile walks dir for a regular file called name and returns the first
// match in lexical order.
func findFile(dir, name string) string {
	var found string
	filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped.
			if d != nil && d.IsDir() && p != dir {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && d.Name() == name {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	return found
}

// Format resolves {name} placeholders in tmpl from subs. Placeholders with
// no substitution stay in the output as written. {{ and }} produce literal
// braces.
func Format(tmpl string, subs map[string]string) string {
	var b strings.Builder
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				b.WriteString(tmpl[i:])
				return b.String()
			}
			name := tmpl[i+1 : i+1+end]
			if v, ok := subs[name]; ok {
				b.WriteString(v)
			} else {
				b.WriteString(tmpl[i : i+end+2])
			}
			i += end + 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// overlay: text x y fontsize
func (r *Registry) overlay(img *image.NRGBA, call Call) (Result, error) {
	a := args(call.Args)
	if !a.has(0) {
		return Result{}, fmt.Errorf("missing text: %w", types.ErrInvalidArgument)
	}
	x, err := a.int(1, "x")
	if err != nil {
		return Result{}, err
	}
	y, err := a.int(2, "y")
	if err != nil {
		return Result{}, err
	}
	size, err := a.positive(3, "fontsize")
	if err != nil {
		return Result{}, err
	}
	if r.fonts == nil {
		return Result{}, fmt.Errorf("no font source: %w", types.ErrResource)
	}
	face, err := r.fonts.Face(float64(size))
	if err != nil {
		return Result{}, err
	}

	lines := strings.Split(Format(a[0], call.Substitutions), "\n")
	if call.Mode == Geometry {
		w, h := measure(face, lines)
		return RectResult(Rect{X0: x, Y0: y, X1: x + w, Y1: y + h}), nil
	}
	drawText(img, face, x, y, lines, color.White)
	return ImageResult(img), nil
}

// drawText draws lines with their top-left corner at (x, y).
func drawText(img *image.NRGBA, face font.Face, x, y int, lines []string, c color.Color) {
	m := face.Metrics()
	d := &font.Drawer{Dst: img, Src: image.NewUniform(c), Face: face}
	for i, line := range lines {
		d.Dot = fixed.P(x, y)
		d.Dot.Y += m.Ascent + m.Height*fixed.Int26_6(i)
		d.DrawString(line)
	}
}

func measure(face font.Face, lines []string) (w, h int) {
	for _, line := range lines {
		if lw := font.MeasureString(face, line).Ceil(); lw > w {
			w = lw
		}
	}
	return w, (face.Metrics().Height * fixed.Int26_6(len(lines))).Ceil()
}
