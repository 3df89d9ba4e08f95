package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/glworbs/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "GLWORB"

	cfgKeyDataDir          = "data_dir"
	cfgKeyBlobCompression  = "blob_compression"
	cfgKeyDefaultTTL       = "default_ttl"
	cfgKeyScanPattern      = "scan_pattern"
	cfgKeyFontPath         = "font_path"
	cfgKeyFontFallbackPath = "font_fallback_path"
	cfgKeyViewerCommand    = "viewer_command"
	cfgKeyConcatBorder     = "concat_border"
	cfgKeyCycleGuard       = "cycle_guard"
	cfgKeyLogLevel         = "log_level"
	cfgKeyMetricsTextfile  = "metrics_textfile"
	cfgKeyBlobPrefixes     = "blob_prefixes"
	cfgKeyRecordPrefixes   = "record_prefixes"
)

// newViper returns a viper instance with defaults, the config file location
// and GLWORB_* environment overrides set up.
func newViper(configDir string) *viper.Viper {
	def := types.DefaultConfig()
	v := viper.New()
	v.SetDefault(cfgKeyBlobCompression, def.BlobCompression)
	v.SetDefault(cfgKeyDefaultTTL, def.DefaultTTL)
	v.SetDefault(cfgKeyScanPattern, def.ScanPattern)
	v.SetDefault(cfgKeyFontPath, def.FontPath)
	v.SetDefault(cfgKeyFontFallbackPath, def.FontFallbackPath)
	v.SetDefault(cfgKeyViewerCommand, def.ViewerCommand)
	v.SetDefault(cfgKeyConcatBorder, def.ConcatBorder)
	v.SetDefault(cfgKeyCycleGuard, def.CycleGuard)
	v.SetDefault(cfgKeyLogLevel, def.LogLevel)
	v.SetDefault(cfgKeyBlobPrefixes, def.BlobPrefixes)
	v.SetDefault(cfgKeyRecordPrefixes, def.RecordPrefixes)
	// Registered so AutomaticEnv sees them.
	v.SetDefault(cfgKeyDataDir, "")
	v.SetDefault(cfgKeyMetricsTextfile, "")

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig reads config.yaml from configDir. A missing file is not an
// error; defaults and environment overrides still apply.
func loadConfig(configDir string) (types.Config, error) {
	v := newViper(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return types.Config{
		DataDir:          v.GetString(cfgKeyDataDir),
		BlobCompression:  v.GetString(cfgKeyBlobCompression),
		DefaultTTL:       v.GetInt(cfgKeyDefaultTTL),
		ScanPattern:      v.GetString(cfgKeyScanPattern),
		FontPath:         v.GetString(cfgKeyFontPath),
		FontFallbackPath: v.GetString(cfgKeyFontFallbackPath),
		ViewerCommand:    v.GetString(cfgKeyViewerCommand),
		ConcatBorder:     v.GetInt(cfgKeyConcatBorder),
		CycleGuard:       v.GetBool(cfgKeyCycleGuard),
		LogLevel:         v.GetString(cfgKeyLogLevel),
		MetricsTextfile:  v.GetString(cfgKeyMetricsTextfile),
		BlobPrefixes:     v.GetStringSlice(cfgKeyBlobPrefixes),
		RecordPrefixes:   v.GetStringSlice(cfgKeyRecordPrefixes),
	}, nil
}
