package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultProfile is always available and changes nothing unless the config file defines it.
const DefaultProfile = "default"

// EnvPrefix namespaces environment overrides, e.g. DEMOREEL_BROWSER_WIDTH.
const EnvPrefix = "DEMOREEL"

// Config is the single configuration record for a playback run. Window
// geometry, scaling and timing differences between demo setups live in
// Profiles rather than in separate code paths.
type Config struct {
	Logger   LoggerConfig       `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig      `mapstructure:"browser" yaml:"browser"`
	Playback PlaybackConfig     `mapstructure:"playback" yaml:"playback"`
	Record   RecordConfig       `mapstructure:"record" yaml:"record"`
	Profiles map[string]Profile `mapstructure:"profiles" yaml:"profiles"`
}

// LoggerConfig holds the zap logger settings.
type LoggerConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"` // console or json
	AddSource  bool   `mapstructure:"add_source" yaml:"add_source"`
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig is passed to the browser at launch and not revisited during playback.
type BrowserConfig struct {
	Headless          bool    `mapstructure:"headless" yaml:"headless"`
	Width             int     `mapstructure:"width" yaml:"width"`
	Height            int     `mapstructure:"height" yaml:"height"`
	DeviceScaleFactor float64 `mapstructure:"device_scale_factor" yaml:"device_scale_factor"`
	Maximized         bool    `mapstructure:"maximized" yaml:"maximized"`
	Stealth           bool    `mapstructure:"stealth" yaml:"stealth"`
	Bin               string  `mapstructure:"bin" yaml:"bin"`
	ProfileDir        string  `mapstructure:"profile_dir" yaml:"profile_dir"`
}

// PlaybackConfig holds the engine's timing constants.
type PlaybackConfig struct {
	Workflow          string        `mapstructure:"workflow" yaml:"workflow"`
	OverlayScript     string        `mapstructure:"overlay_script" yaml:"overlay_script"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	ClickTimeout      time.Duration `mapstructure:"click_timeout" yaml:"click_timeout"`
	ElementTimeout    time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ScrollDelta       float64       `mapstructure:"scroll_delta" yaml:"scroll_delta"`
	DrainDelay        time.Duration `mapstructure:"drain_delay" yaml:"drain_delay"`
}

// RecordConfig controls the recording-enabled run.
type RecordConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir         string `mapstructure:"dir" yaml:"dir"`
	GIF         bool   `mapstructure:"gif" yaml:"gif"`
	GIFMaxWidth uint   `mapstructure:"gif_max_width" yaml:"gif_max_width"`
	JPEGQuality int    `mapstructure:"jpeg_quality" yaml:"jpeg_quality"`
}

// Profile is a named set of geometry and timing overrides. Zero fields leave
// the base value alone.
type Profile struct {
	Width             int           `mapstructure:"width" yaml:"width"`
	Height            int           `mapstructure:"height" yaml:"height"`
	DeviceScaleFactor float64       `mapstructure:"device_scale_factor" yaml:"device_scale_factor"`
	DrainDelay        time.Duration `mapstructure:"drain_delay" yaml:"drain_delay"`
	ScrollDelta       float64       `mapstructure:"scroll_delta" yaml:"scroll_delta"`
}

// SetDefaults registers every key with its built-in value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", false)

	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.width", 1920)
	v.SetDefault("browser.height", 1080)
	v.SetDefault("browser.device_scale_factor", 1.0)
	v.SetDefault("browser.maximized", true)
	v.SetDefault("browser.stealth", false)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.profile_dir", "")

	v.SetDefault("playback.workflow", "demo/workflow.json")
	v.SetDefault("playback.overlay_script", "")
	v.SetDefault("playback.poll_interval", "500ms")
	v.SetDefault("playback.click_timeout", "5s")
	v.SetDefault("playback.element_timeout", "10s")
	v.SetDefault("playback.navigation_timeout", "30s")
	v.SetDefault("playback.scroll_delta", 1500.0)
	v.SetDefault("playback.drain_delay", "2s")

	v.SetDefault("record.enabled", false)
	v.SetDefault("record.dir", "demo/recordings")
	v.SetDefault("record.gif", false)
	v.SetDefault("record.gif_max_width", 800)
	v.SetDefault("record.jpeg_quality", 80)

	v.SetDefault("profiles.retina.width", 1440)
	v.SetDefault("profiles.retina.height", 900)
	v.SetDefault("profiles.retina.device_scale_factor", 2.0)
	v.SetDefault("profiles.retina.drain_delay", "1s")
}

// NewDefaultConfig returns the built-in configuration.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	if err != nil {
		panic(fmt.Sprintf("failed to build default config: %v", err))
	}
	return cfg
}

// Load reads .env, the optional config file and DEMOREEL_* variables, in
// that order of increasing precedence. An empty path looks for ./config.yaml
// and carries on without it.
func Load(path string) (*Config, error) {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return NewConfigFromViper(v)
}

// NewConfigFromViper decodes and validates a populated viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ApplyProfile layers the named profile over the browser and playback sections.
func (c *Config) ApplyProfile(name string) error {
	p, ok := c.Profiles[name]
	if name == "" || (name == DefaultProfile && !ok) {
		return nil
	}
	if !ok {
		return fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(c.ProfileNames(), ", "))
	}
	if p.Width > 0 {
		c.Browser.Width = p.Width
	}
	if p.Height > 0 {
		c.Browser.Height = p.Height
	}
	if p.DeviceScaleFactor > 0 {
		c.Browser.DeviceScaleFactor = p.DeviceScaleFactor
	}
	if p.DrainDelay > 0 {
		c.Playback.DrainDelay = p.DrainDelay
	}
	if p.ScrollDelta > 0 {
		c.Playback.ScrollDelta = p.ScrollDelta
	}
	return c.Validate()
}

// ProfileNames lists the configured profiles in sorted order.
func (c *Config) ProfileNames() []string {
	names := []string{DefaultProfile}
	for name := range c.Profiles {
		if name != DefaultProfile {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Validate checks for values the player cannot work with.
func (c *Config) Validate() error {
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		return fmt.Errorf("browser.width and browser.height must be positive (got %dx%d)", c.Browser.Width, c.Browser.Height)
	}
	if c.Browser.DeviceScaleFactor <= 0 {
		return fmt.Errorf("browser.device_scale_factor must be positive")
	}
	if c.Playback.PollInterval <= 0 {
		return fmt.Errorf("playback.poll_interval must be positive")
	}
	if c.Playback.ClickTimeout <= 0 || c.Playback.ElementTimeout <= 0 || c.Playback.NavigationTimeout <= 0 {
		return fmt.Errorf("playback timeouts must be positive")
	}
	if c.Playback.DrainDelay < 0 {
		return fmt.Errorf("playback.drain_delay must not be negative")
	}
	if c.Record.JPEGQuality < 1 || c.Record.JPEGQuality > 100 {
		return fmt.Errorf("record.jpeg_quality must be between 1 and 100")
	}
	if c.Record.Enabled && c.Record.Dir == "" {
		return fmt.Errorf("record.dir is required when recording")
	}
	return nil
}
