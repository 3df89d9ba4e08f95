package types

import "errors"

// Config holds the settings shared by the store, the pipelines and the CLI.
// Zero values are replaced by the Default* constants through WithDefaults.
type Config struct {
	DataDir          string   `json:"data_dir" yaml:"data_dir"`
	BlobCompression  string   `json:"blob_compression" yaml:"blob_compression"`
	DefaultTTL       int      `json:"default_ttl" yaml:"default_ttl"`
	ScanPattern      string   `json:"scan_pattern" yaml:"scan_pattern"`
	FontPath         string   `json:"font_path" yaml:"font_path"`
	FontFallbackPath string   `json:"font_fallback_path" yaml:"font_fallback_path"`
	ViewerCommand    string   `json:"viewer_command" yaml:"viewer_command"`
	ConcatBorder     int      `json:"concat_border" yaml:"concat_border"`
	CycleGuard       bool     `json:"cycle_guard" yaml:"cycle_guard"`
	LogLevel         string   `json:"log_level" yaml:"log_level"`
	MetricsTextfile  string   `json:"metrics_textfile,omitempty" yaml:"metrics_textfile,omitempty"`
	BlobPrefixes     []string `json:"blob_prefixes" yaml:"blob_prefixes"`
	RecordPrefixes   []string `json:"record_prefixes" yaml:"record_prefixes"`
}

// Blob compression modes.
const (
	CompressionLZ4  = "lz4"
	CompressionNone = "none"
)

// Defaults applied to unset Config fields. A bare font file name such as
// DefaultFontPath is looked up in the working directory, then in the
// platform font directories.
const (
	DefaultTTLSeconds       = 600
	DefaultScanPattern      = "glworb:*"
	DefaultFontPath         = "DejaVuSansMono.ttf"
	DefaultFontFallbackPath = "/usr/share/fonts/truetype/freefont/DejaVuSansMono.ttf"
	DefaultViewerCommand    = "xdg-open"
	DefaultConcatBorder     = 50
	DefaultLogLevel         = "info"
)

// Default reference prefixes recognized by the display heuristic.
var (
	DefaultBlobPrefixes   = []string{"binary"}
	DefaultRecordPrefixes = []string{"glworb"}
)

// Config validation errors.
var (
	ErrCompressionUnknown = errors.New("unknown blob compression")
	ErrTTLInvalid         = errors.New("default ttl must not be negative")
	ErrBorderInvalid      = errors.New("concat border must not be negative")
	ErrLogLevelUnknown    = errors.New("unknown log level")
)

var knownCompressions = map[string]bool{
	CompressionLZ4:  true,
	CompressionNone: true,
}

var knownLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// DefaultConfig returns a Config with every field set to its default.
// CycleGuard defaults to on.
func DefaultConfig() Config {
	return Config{CycleGuard: true}.WithDefaults()
}

// WithDefaults returns a copy of c with empty fields replaced by defaults.
// Booleans are left as they are.
func (c Config) WithDefaults() Config {
	if c.BlobCompression == "" {
		c.BlobCompression = CompressionLZ4
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = DefaultTTLSeconds
	}
	if c.ScanPattern == "" {
		c.ScanPattern = DefaultScanPattern
	}
	if c.FontPath == "" {
		c.FontPath = DefaultFontPath
	}
	if c.FontFallbackPath == "" {
		c.FontFallbackPath = DefaultFontFallbackPath
	}
	if c.ViewerCommand == "" {
		c.ViewerCommand = DefaultViewerCommand
	}
	if c.ConcatBorder == 0 {
		c.ConcatBorder = DefaultConcatBorder
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if len(c.BlobPrefixes) == 0 {
		c.BlobPrefixes = append([]string(nil), DefaultBlobPrefixes...)
	}
	if len(c.RecordPrefixes) == 0 {
		c.RecordPrefixes = append([]string(nil), DefaultRecordPrefixes...)
	}
	return c
}

// Validate checks that the Config is well-formed. Empty fields are accepted
// since WithDefaults fills them.
func (c Config) Validate() error {
	if c.BlobCompression != "" && !knownCompressions[c.BlobCompression] {
		return ErrCompressionUnknown
	}
	if c.DefaultTTL < 0 {
		return ErrTTLInvalid
	}
	if c.ConcatBorder < 0 {
		return ErrBorderInvalid
	}
	if c.LogLevel != "" && !knownLogLevels[c.LogLevel] {
		return ErrLogLevelUnknown
	}
	return nil
}
