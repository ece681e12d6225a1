package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env          string `mapstructure:"FHIRBUILD_ENV"`
	LogFormat    string `mapstructure:"FHIRBUILD_LOG_FORMAT"`
	BatchSize    int    `mapstructure:"FHIRBUILD_BATCH_SIZE"`
	CXX          int    `mapstructure:"FHIRBUILD_CXX"`
	Delimiter    string `mapstructure:"FHIRBUILD_DELIMITER"`
	Encoding     string `mapstructure:"FHIRBUILD_ENCODING"`
	DelimCmp     string `mapstructure:"FHIRBUILD_DELIM_CMP"`
	MainIDC      string `mapstructure:"FHIRBUILD_MAIN_IDC"`
	Timezone     string `mapstructure:"FHIRBUILD_TIMEZONE"`
	WriteWorkers int    `mapstructure:"FHIRBUILD_WRITE_WORKERS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("FHIRBUILD_ENV", "production")
	v.SetDefault("FHIRBUILD_LOG_FORMAT", "json")
	v.SetDefault("FHIRBUILD_BATCH_SIZE", 10)
	v.SetDefault("FHIRBUILD_CXX", 3)
	v.SetDefault("FHIRBUILD_DELIMITER", ";")
	v.SetDefault("FHIRBUILD_ENCODING", "utf-8")
	v.SetDefault("FHIRBUILD_DELIM_CMP", ",")
	v.SetDefault("FHIRBUILD_MAIN_IDC", "SAMPLEID")
	v.SetDefault("FHIRBUILD_TIMEZONE", "Europe/Berlin")
	v.SetDefault("FHIRBUILD_WRITE_WORKERS", 4)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("FHIRBUILD_ENV")
	v.BindEnv("FHIRBUILD_LOG_FORMAT")
	v.BindEnv("FHIRBUILD_BATCH_SIZE")
	v.BindEnv("FHIRBUILD_CXX")
	v.BindEnv("FHIRBUILD_DELIMITER")
	v.BindEnv("FHIRBUILD_ENCODING")
	v.BindEnv("FHIRBUILD_DELIM_CMP")
	v.BindEnv("FHIRBUILD_MAIN_IDC")
	v.BindEnv("FHIRBUILD_TIMEZONE")
	v.BindEnv("FHIRBUILD_WRITE_WORKERS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Location returns the time zone dates without zone information are read in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("FHIRBUILD_TIMEZONE: %w", err)
	}
	return loc, nil
}

// Validate checks the settings after flags have been applied.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("FHIRBUILD_BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.CXX != 3 && c.CXX != 4 {
		return fmt.Errorf("FHIRBUILD_CXX must be 3 or 4, got %d", c.CXX)
	}
	if c.WriteWorkers <= 0 {
		return fmt.Errorf("FHIRBUILD_WRITE_WORKERS must be positive, got %d", c.WriteWorkers)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("FHIRBUILD_LOG_FORMAT must be \"json\" or \"console\", got %q", c.LogFormat)
	}
	if c.DelimCmp == "" {
		return fmt.Errorf("FHIRBUILD_DELIM_CMP must not be empty")
	}
	// Component values are split inside a cell.
	if c.DelimCmp == c.Delimiter {
		return fmt.Errorf("FHIRBUILD_DELIM_CMP must differ from the input delimiter %q", c.Delimiter)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
