package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration
type Config struct {
	Version     string        `yaml:"version"`
	Addr        string        `yaml:"addr"`
	ReportsDir  string        `yaml:"reports_dir"`
	StorageDir  string        `yaml:"storage_dir"`
	WALDir      string        `yaml:"wal_dir"`
	ScanTimeout time.Duration `yaml:"scan_timeout"`

	// InlineData selects the response shape of submit_link: when true the
	// JSON response carries the full record list next to the filename.
	InlineData bool `yaml:"inline_data"`

	Policy    Policy    `yaml:"policy,omitempty"`
	Telemetry Telemetry `yaml:"telemetry,omitempty"`
}

// Policy configures risk flagging of scan results
type Policy struct {
	Enabled bool     `yaml:"enabled"`
	Files   []string `yaml:"files,omitempty"`
}

// Telemetry configures OTEL export
type Telemetry struct {
	OTELEndpoint string `yaml:"otel_endpoint,omitempty"`
	Insecure     bool   `yaml:"insecure,omitempty"`
	Environment  string `yaml:"environment,omitempty"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Version:     "v1",
		Addr:        ":8000",
		ReportsDir:  "reports",
		StorageDir:  "data",
		WALDir:      "wal",
		ScanTimeout: 10 * time.Second,
		InlineData:  true,
		Policy:      Policy{Enabled: true},
	}
}

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate ensures config has required fields
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.ReportsDir == "" {
		return fmt.Errorf("reports_dir is required")
	}
	if c.ScanTimeout <= 0 {
		return fmt.Errorf("scan_timeout must be positive")
	}
	return nil
}
