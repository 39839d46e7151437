// Package config assembles the console configuration from an optional YAML
// file overridden by environment variables.  Environment always wins so
// container deployments can override a checked-in file per instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cloudcrafter/console/common/environment"
)

// Duration decodes YAML duration strings such as "5s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full console configuration.
type Config struct {
	Env string `yaml:"env"` // "dev" or "prod"

	HTTP struct {
		Addr            string   `yaml:"addr"`
		ReadTimeout     Duration `yaml:"read_timeout"`
		WriteTimeout    Duration `yaml:"write_timeout"`
		ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	} `yaml:"http"`

	Log struct {
		Level  string `yaml:"level"`  // debug, info, warn, error
		Format string `yaml:"format"` // text or json
	} `yaml:"log"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Oracle struct {
		BaseURL    string   `yaml:"base_url"`
		BotID      string   `yaml:"bot_id"`
		BotAliasID string   `yaml:"bot_alias_id"`
		LocaleID   string   `yaml:"locale_id"`
		APIKey     string   `yaml:"api_key"`
		Timeout    Duration `yaml:"timeout"`
	} `yaml:"oracle"`

	Jobs struct {
		BaseURL       string   `yaml:"base_url"`
		Timeout       Duration `yaml:"timeout"`
		PlanInterval  Duration `yaml:"plan_interval"`
		ApplyInterval Duration `yaml:"apply_interval"`
		MaxPlanPolls  int      `yaml:"max_plan_polls"`
		MaxApplyPolls int      `yaml:"max_apply_polls"`
	} `yaml:"jobs"`

	Identity struct {
		BaseURL string `yaml:"base_url"`
		PoolID  string `yaml:"pool_id"`
	} `yaml:"identity"`
}

// IsDev reports whether the console runs in development mode.
func (c *Config) IsDev() bool { return c.Env != "prod" }

// Load builds the configuration.  When path is non-empty the YAML file is
// read first; environment variables then override individual fields.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Env = environment.StringOr("CONSOLE_ENV", c.Env)

	c.HTTP.Addr = environment.StringOr("HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.ReadTimeout = Duration(environment.DurationOr("HTTP_READ_TIMEOUT", c.HTTP.ReadTimeout.Std()))
	c.HTTP.WriteTimeout = Duration(environment.DurationOr("HTTP_WRITE_TIMEOUT", c.HTTP.WriteTimeout.Std()))
	c.HTTP.ShutdownTimeout = Duration(environment.DurationOr("HTTP_SHUTDOWN_TIMEOUT", c.HTTP.ShutdownTimeout.Std()))

	c.Log.Level = environment.StringOr("LOG_LEVEL", c.Log.Level)
	c.Log.Format = environment.StringOr("LOG_FORMAT", c.Log.Format)

	c.Database.Path = environment.StringOr("DATABASE_PATH", c.Database.Path)

	c.Oracle.BaseURL = environment.StringOr("ORACLE_BASE_URL", c.Oracle.BaseURL)
	c.Oracle.BotID = environment.StringOr("ORACLE_BOT_ID", c.Oracle.BotID)
	c.Oracle.BotAliasID = environment.StringOr("ORACLE_BOT_ALIAS_ID", c.Oracle.BotAliasID)
	c.Oracle.LocaleID = environment.StringOr("ORACLE_LOCALE_ID", c.Oracle.LocaleID)
	c.Oracle.APIKey = environment.StringOr("ORACLE_API_KEY", c.Oracle.APIKey)
	c.Oracle.Timeout = Duration(environment.DurationOr("ORACLE_TIMEOUT", c.Oracle.Timeout.Std()))

	c.Jobs.BaseURL = environment.StringOr("JOBS_BASE_URL", c.Jobs.BaseURL)
	c.Jobs.Timeout = Duration(environment.DurationOr("JOBS_TIMEOUT", c.Jobs.Timeout.Std()))
	c.Jobs.PlanInterval = Duration(environment.DurationOr("JOBS_PLAN_INTERVAL", c.Jobs.PlanInterval.Std()))
	c.Jobs.ApplyInterval = Duration(environment.DurationOr("JOBS_APPLY_INTERVAL", c.Jobs.ApplyInterval.Std()))
	c.Jobs.MaxPlanPolls = environment.IntOr("JOBS_MAX_PLAN_POLLS", c.Jobs.MaxPlanPolls)
	c.Jobs.MaxApplyPolls = environment.IntOr("JOBS_MAX_APPLY_POLLS", c.Jobs.MaxApplyPolls)

	c.Identity.BaseURL = environment.StringOr("IDENTITY_BASE_URL", c.Identity.BaseURL)
	c.Identity.PoolID = environment.StringOr("IDENTITY_POOL_ID", c.Identity.PoolID)
}

func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout <= 0 {
		c.HTTP.ReadTimeout = Duration(15 * time.Second)
	}
	if c.HTTP.WriteTimeout <= 0 {
		c.HTTP.WriteTimeout = Duration(30 * time.Second)
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = Duration(10 * time.Second)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./cloudcrafter.db"
	}
	if c.Oracle.LocaleID == "" {
		c.Oracle.LocaleID = "en_US"
	}
}

func (c *Config) validate() error {
	var missing []string
	if c.Oracle.BaseURL == "" {
		missing = append(missing, "ORACLE_BASE_URL")
	}
	if c.Oracle.BotID == "" {
		missing = append(missing, "ORACLE_BOT_ID")
	}
	if c.Oracle.BotAliasID == "" {
		missing = append(missing, "ORACLE_BOT_ALIAS_ID")
	}
	if c.Jobs.BaseURL == "" {
		missing = append(missing, "JOBS_BASE_URL")
	}
	if len(missing) > 0 {
		return errors.New("config: missing required settings: " + strings.Join(missing, ", "))
	}
	if c.Env != "dev" && c.Env != "prod" {
		return fmt.Errorf("config: invalid CONSOLE_ENV %q (want dev or prod)", c.Env)
	}
	return nil
}
