// CLAUDE:SUMMARY Run configuration structs, YAML loading, defaults, and validation for a comparison run.
package compare

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration of one comparison run. It is computed
// once before the run starts and never mutated afterwards; the runner takes
// it by value.
type Config struct {
	// URLA and URLB are the two pages to compare (e.g. production vs staging).
	URLA string `yaml:"url_a"`
	URLB string `yaml:"url_b"`

	// Viewport is a preset name (desktop|tablet|mobile) or explicit "WxH".
	Viewport string `yaml:"viewport"`

	// ViewportWidth and ViewportHeight are the resolved dimensions. Filled
	// by the caller from the viewport spec; required by the runner.
	ViewportWidth  int `yaml:"-"`
	ViewportHeight int `yaml:"-"`

	// ViewportLabel names the device class in the run summary.
	ViewportLabel string `yaml:"-"`

	// SettleTime is the pause after each scroll before capture, allowing
	// lazy-loaded and animated content to stabilise. Must exceed ResetSettle:
	// in-viewport assets (images, fonts) keep loading after the scroll lands.
	// Default: 800ms.
	SettleTime time.Duration `yaml:"settle_time"`

	// ResetSettle is the shorter pause after the initial scroll-to-top,
	// before geometry measurement. Default: 500ms.
	ResetSettle time.Duration `yaml:"reset_settle"`

	// DriftTolerance is the allowed divergence in px between requested and
	// actual scroll offset before a frame is tagged with a drift warning.
	// Default: 10.
	DriftTolerance int `yaml:"drift_tolerance"`

	// GuardMargin widens the mid-run guard against geometry drift: iteration
	// stops once an offset reaches min(heightA, heightB) + GuardMargin.
	// Default: 100.
	GuardMargin int `yaml:"guard_margin"`

	// DiffPixelThreshold and MinRegionAreaPx configure the diff engine.
	// Defaults: 30 and 100.
	DiffPixelThreshold int `yaml:"diff_pixel_threshold"`
	MinRegionAreaPx    int `yaml:"min_region_area_px"`

	// KeepFrames retains the raw frame bitmaps on each record. Off by
	// default to bound peak memory on long pages; the highlight composite is
	// always retained.
	KeepFrames bool `yaml:"keep_frames"`

	Timeouts TimeoutConfig  `yaml:"timeouts"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Report   ReportConfig   `yaml:"report"`

	// AuditDB is the optional path of a SQLite run-event database.
	AuditDB string `yaml:"audit_db"`
}

// TimeoutConfig bounds the run's remote calls independently.
type TimeoutConfig struct {
	// Measure bounds each session's geometry probe. A measurement timeout is
	// fatal to the run. Default: 15s.
	Measure time.Duration `yaml:"measure"`
	// Capture bounds one scroll+settle+screenshot cycle. A capture timeout
	// is recorded on the frame and the run continues. Default: 20s.
	Capture time.Duration `yaml:"capture"`
	// Analyze bounds one vision call. Default: 45s.
	Analyze time.Duration `yaml:"analyze"`
}

// AnalysisConfig configures the optional vision analysis of each frame pair.
type AnalysisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	// APIKeyEnv names the environment variable holding the API key.
	// Default: OPENAI_API_KEY (resolved by the vision client).
	APIKeyEnv string `yaml:"api_key_env"`
}

// ReportConfig configures the report writer.
type ReportConfig struct {
	// Dir receives composite PNGs, results.json, and the optional PDF.
	Dir string `yaml:"dir"`
	// PDF enables assembling the composites into report.pdf.
	PDF bool `yaml:"pdf"`
}

// LoadFile reads a YAML configuration file and applies defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("compare: parse config: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Viewport == "" {
		c.Viewport = "desktop"
	}
	if c.ResetSettle <= 0 {
		c.ResetSettle = 500 * time.Millisecond
	}
	if c.SettleTime <= 0 {
		c.SettleTime = 800 * time.Millisecond
	}
	if c.DriftTolerance <= 0 {
		c.DriftTolerance = 10
	}
	if c.GuardMargin <= 0 {
		c.GuardMargin = 100
	}
	if c.DiffPixelThreshold <= 0 {
		c.DiffPixelThreshold = 30
	}
	if c.MinRegionAreaPx <= 0 {
		c.MinRegionAreaPx = 100
	}
	if c.Timeouts.Measure <= 0 {
		c.Timeouts.Measure = 15 * time.Second
	}
	if c.Timeouts.Capture <= 0 {
		c.Timeouts.Capture = 20 * time.Second
	}
	if c.Timeouts.Analyze <= 0 {
		c.Timeouts.Analyze = 45 * time.Second
	}
	if c.Analysis.Model == "" {
		c.Analysis.Model = "gpt-4o-mini"
	}
	if c.Report.Dir == "" {
		c.Report.Dir = "viewdiff-out"
	}
}

// Validate checks invariants that defaults cannot repair.
func (c *Config) Validate() error {
	if c.URLA == "" || c.URLB == "" {
		return fmt.Errorf("%w: both url_a and url_b are required", ErrInvalidConfig)
	}
	if c.ViewportWidth < 1 || c.ViewportHeight < 1 {
		return fmt.Errorf("%w: viewport %dx%d not resolved", ErrInvalidConfig, c.ViewportWidth, c.ViewportHeight)
	}
	if c.SettleTime <= c.ResetSettle {
		return fmt.Errorf("%w: settle_time %v must exceed reset_settle %v",
			ErrInvalidConfig, c.SettleTime, c.ResetSettle)
	}
	return nil
}
