package spectro

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PinConfig names the periph.io GPIO pins the instrument is wired to.
type PinConfig struct {
	Button1   string `yaml:"button1"`
	Button2   string `yaml:"button2"`
	Button3   string `yaml:"button3"`
	Backlight string `yaml:"backlight"`
}

// GeoConfig is an optional fixed location stamped onto saved records.
type GeoConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Latitude  *float64 `yaml:"latitude"`
	Longitude *float64 `yaml:"longitude"`
}

// Config configures the instrument.
type Config struct {
	// TickRate is the main loop rate in Hz.
	TickRate int `yaml:"tick_rate"`

	// IntegrationTimeMicros is the spectrometer exposure duration.
	IntegrationTimeMicros int `yaml:"integration_time_micros"`

	// CameraEnabled routes a successful spectrum save into camera preview.
	// With it off (or no camera wired), saving returns the machine to idle.
	CameraEnabled bool `yaml:"camera_enabled"`

	// CameraDevice is the video capture device index.
	CameraDevice int `yaml:"camera_device"`

	// OutputDir receives persisted records.
	OutputDir string `yaml:"output_dir"`

	// BacklightPercent is applied to the display at startup.
	BacklightPercent int `yaml:"backlight_percent"`

	// SPIPort is the periph.io SPI port name for the display ("" = first).
	SPIPort string `yaml:"spi_port"`

	Pins PinConfig `yaml:"pins"`
	Geo  GeoConfig `yaml:"geo"`
}

func (c *Config) defaults() {
	if c.TickRate <= 0 {
		c.TickRate = 10
	}
	if c.IntegrationTimeMicros <= 0 {
		c.IntegrationTimeMicros = 100_000
	}
	if c.OutputDir == "" {
		c.OutputDir = "spectra"
	}
	if c.BacklightPercent <= 0 || c.BacklightPercent > 100 {
		c.BacklightPercent = 80
	}
	if c.Pins.Button1 == "" {
		c.Pins.Button1 = "GPIO17"
	}
	if c.Pins.Button2 == "" {
		c.Pins.Button2 = "GPIO27"
	}
	if c.Pins.Button3 == "" {
		c.Pins.Button3 = "GPIO22"
	}
}

// LoadConfig reads a YAML config file and applies defaults. An empty path
// yields the default configuration.
func LoadConfig(path string) (Config, error) {
	var c Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return c, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	c.defaults()
	return c, nil
}
