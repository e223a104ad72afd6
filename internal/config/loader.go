package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "spreadmap"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "SPREADMAP"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so flags bound by
// the root command take part.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on v.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load reads the first config file found on the search path, applies env
// overrides and defaults, and validates the result.
func (l *Loader) Load() (*Config, error) {
	return l.load("", true)
}

// LoadWithoutValidation is Load without the final Validate.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load("", false)
}

// LoadWithFile loads configuration from a specific file path. An empty path
// falls back to Load.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if validate {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return &config, nil
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	// detector.canny_low -> SPREADMAP_DETECTOR_CANNY_LOW
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so AutomaticEnv can override it during
// Unmarshal.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("detector.engine", d.Detector.Engine)
	l.v.SetDefault("detector.renderer", d.Detector.Renderer)
	l.v.SetDefault("detector.canny_low", d.Detector.CannyLow)
	l.v.SetDefault("detector.canny_high", d.Detector.CannyHigh)
	l.v.SetDefault("detector.min_area_percent", d.Detector.MinAreaPercent)
	l.v.SetDefault("detector.dilate_iterations", d.Detector.DilateIterations)
	l.v.SetDefault("detector.render_scale", d.Detector.RenderScale)
	l.v.SetDefault("detector.default_padding_px", d.Detector.DefaultPaddingPx)

	l.v.SetDefault("extraction.max_plu_slots", d.Extraction.MaxPLUSlots)
	l.v.SetDefault("extraction.brands_file", d.Extraction.BrandsFile)
	l.v.SetDefault("extraction.pdf.user_password", "")
	l.v.SetDefault("extraction.pdf.owner_password", "")

	l.v.SetDefault("storage.assets_dir", d.Storage.AssetsDir)
	l.v.SetDefault("storage.state_db", d.Storage.StateDB)
	l.v.SetDefault("storage.projects_dir", d.Storage.ProjectsDir)
	l.v.SetDefault("storage.export_file", d.Storage.ExportFile)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.file", d.Output.File)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
}

// GenerateDefaultConfigFile writes the defaults to filename
// (spreadmap.yaml when empty).
func GenerateDefaultConfigFile(filename string) error {
	l := NewLoaderWithViper(viper.New())
	l.setDefaults()
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	return l.v.WriteConfigAs(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	if configDir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(configDir, "spreadmap"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "spreadmap"))
	}

	return append(paths, "/etc/spreadmap")
}
