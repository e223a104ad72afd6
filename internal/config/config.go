package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/spreadmap/internal/batch"
	"github.com/MeKo-Tech/spreadmap/internal/detector"
	"github.com/MeKo-Tech/spreadmap/internal/pdf"
)

// Config is the complete spreadmap configuration. It is read from a config
// file, SPREADMAP_* environment variables and command-line flags.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Detector   DetectorConfig   `mapstructure:"detector" yaml:"detector" json:"detector"`
	Extraction ExtractionConfig `mapstructure:"extraction" yaml:"extraction" json:"extraction"`
	Storage    StorageConfig    `mapstructure:"storage" yaml:"storage" json:"storage"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// DetectorConfig contains region detection settings.
type DetectorConfig struct {
	Engine           string  `mapstructure:"engine" yaml:"engine" json:"engine"`
	Renderer         string  `mapstructure:"renderer" yaml:"renderer" json:"renderer"`
	CannyLow         float64 `mapstructure:"canny_low" yaml:"canny_low" json:"canny_low"`
	CannyHigh        float64 `mapstructure:"canny_high" yaml:"canny_high" json:"canny_high"`
	MinAreaPercent   float64 `mapstructure:"min_area_percent" yaml:"min_area_percent" json:"min_area_percent"`
	DilateIterations int     `mapstructure:"dilate_iterations" yaml:"dilate_iterations" json:"dilate_iterations"`
	RenderScale      float64 `mapstructure:"render_scale" yaml:"render_scale" json:"render_scale"`
	DefaultPaddingPx float64 `mapstructure:"default_padding_px" yaml:"default_padding_px" json:"default_padding_px"`
}

// ExtractionConfig contains batch extraction settings.
type ExtractionConfig struct {
	MaxPLUSlots int             `mapstructure:"max_plu_slots" yaml:"max_plu_slots" json:"max_plu_slots"`
	BrandsFile  string          `mapstructure:"brands_file" yaml:"brands_file" json:"brands_file"`
	PDF         pdf.Credentials `mapstructure:"pdf" yaml:"pdf" json:"-"`
}

// StorageConfig locates persisted state.
type StorageConfig struct {
	AssetsDir   string `mapstructure:"assets_dir" yaml:"assets_dir" json:"assets_dir"`
	StateDB     string `mapstructure:"state_db" yaml:"state_db" json:"state_db"`
	ProjectsDir string `mapstructure:"projects_dir" yaml:"projects_dir" json:"projects_dir"`
	ExportFile  string `mapstructure:"export_file" yaml:"export_file" json:"export_file"`
}

// OutputConfig contains report formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	th := detector.DefaultThresholds()
	return Config{
		LogLevel: "info",
		Detector: DetectorConfig{
			Engine:           detector.EngineNative,
			Renderer:         pdf.RendererAuto,
			CannyLow:         th.CannyLow,
			CannyHigh:        th.CannyHigh,
			MinAreaPercent:   th.MinAreaPercent,
			DilateIterations: th.DilateIterations,
			RenderScale:      2,
			DefaultPaddingPx: 0,
		},
		Extraction: ExtractionConfig{
			MaxPLUSlots: batch.DefaultMaxPLUSlots,
		},
		Storage: StorageConfig{
			AssetsDir:   "data/assets",
			StateDB:     "data/state.db",
			ProjectsDir: "data/projects",
			ExportFile:  "data/spreads.json",
		},
		Output: OutputConfig{
			Format: "text",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			TimeoutSec:      300,
			ShutdownTimeout: 10,
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "csv"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	validEngines := []string{"", detector.EngineNative, detector.EngineOpenCV}
	if !slices.Contains(validEngines, c.Detector.Engine) {
		return fmt.Errorf("invalid detector engine: %s (must be one of: %s, %s)", c.Detector.Engine, detector.EngineNative, detector.EngineOpenCV)
	}
	validRenderers := []string{"", pdf.RendererAuto, pdf.RendererFitz, pdf.RendererEmbedded}
	if !slices.Contains(validRenderers, c.Detector.Renderer) {
		return fmt.Errorf("invalid renderer: %s (must be one of: %s)", c.Detector.Renderer, strings.Join(validRenderers[1:], ", "))
	}
	if err := c.Thresholds().Validate(); err != nil {
		return fmt.Errorf("invalid detector thresholds: %w", err)
	}
	if c.Detector.RenderScale <= 0 || c.Detector.RenderScale > 8 {
		return fmt.Errorf("invalid render scale: %g (must be in (0, 8])", c.Detector.RenderScale)
	}
	if c.Detector.DefaultPaddingPx < 0 {
		return fmt.Errorf("invalid default padding: %g (must not be negative)", c.Detector.DefaultPaddingPx)
	}

	if c.Extraction.MaxPLUSlots < 0 {
		return fmt.Errorf("invalid max PLU slots: %d (must not be negative)", c.Extraction.MaxPLUSlots)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout: %d (must not be negative)", c.Server.ShutdownTimeout)
	}
	return nil
}

// Thresholds converts the detector section to detector.Thresholds.
func (c *Config) Thresholds() detector.Thresholds {
	return detector.Thresholds{
		CannyLow:         c.Detector.CannyLow,
		CannyHigh:        c.Detector.CannyHigh,
		MinAreaPercent:   c.Detector.MinAreaPercent,
		DilateIterations: c.Detector.DilateIterations,
	}
}

// Credentials returns the PDF passwords for encrypted catalogues.
func (c *Config) Credentials() pdf.Credentials {
	return c.Extraction.PDF
}

// ServerAddr returns host:port for the HTTP listener.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
