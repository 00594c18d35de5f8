package config

import (
	"encoding"
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as "30s" or "5m" in every config
// format and in the environment.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config represents the server configuration
type Config struct {
	// Server settings
	Server struct {
		Name                string   `yaml:"name" toml:"name" json:"name" env:"IRCD_SERVER_NAME" validate:"required,hostname_rfc1123"`
		Network             string   `yaml:"network" toml:"network" json:"network" env:"IRCD_NETWORK" validate:"required"`
		Host                string   `yaml:"host" toml:"host" json:"host" env:"IRCD_HOST"`
		Port                int      `yaml:"port" toml:"port" json:"port" env:"IRCD_PORT" validate:"gte=0,lte=65535"`
		MaxConnections      int      `yaml:"max_connections" toml:"max_connections" json:"max_connections" env:"IRCD_MAX_CONNECTIONS" validate:"gte=1"`
		IdleTimeout         Duration `yaml:"idle_timeout" toml:"idle_timeout" json:"idle_timeout" env:"IRCD_IDLE_TIMEOUT"`
		WriteTimeout        Duration `yaml:"write_timeout" toml:"write_timeout" json:"write_timeout" env:"IRCD_WRITE_TIMEOUT"`
		RetainEmptyChannels bool     `yaml:"retain_empty_channels" toml:"retain_empty_channels" json:"retain_empty_channels" env:"IRCD_RETAIN_EMPTY_CHANNELS"`
	} `yaml:"server" toml:"server" json:"server"`

	// Logging
	Log struct {
		Level  string `yaml:"level" toml:"level" json:"level" env:"IRCD_LOG_LEVEL" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" toml:"format" json:"format" env:"IRCD_LOG_FORMAT" validate:"oneof=tint json text"`
	} `yaml:"log" toml:"log" json:"log"`

	// Admin HTTP API
	Admin struct {
		Enabled   bool   `yaml:"enabled" toml:"enabled" json:"enabled" env:"IRCD_ADMIN_ENABLED"`
		Host      string `yaml:"host" toml:"host" json:"host" env:"IRCD_ADMIN_HOST"`
		Port      int    `yaml:"port" toml:"port" json:"port" env:"IRCD_ADMIN_PORT" validate:"gte=0,lte=65535"`
		TokenHash string `yaml:"token_hash" toml:"token_hash" json:"token_hash" env:"IRCD_ADMIN_TOKEN_HASH"`
	} `yaml:"admin" toml:"admin" json:"admin"`

	// Moderation audit log
	Audit struct {
		Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled" env:"IRCD_AUDIT_ENABLED"`
		Driver  string `yaml:"driver" toml:"driver" json:"driver" env:"IRCD_AUDIT_DRIVER" validate:"oneof=sqlite mysql postgres"`
		DSN     string `yaml:"dsn" toml:"dsn" json:"dsn" env:"IRCD_AUDIT_DSN" validate:"required_if=Enabled true"`
		Buffer  int    `yaml:"buffer" toml:"buffer" json:"buffer" env:"IRCD_AUDIT_BUFFER" validate:"gte=1"`
	} `yaml:"audit" toml:"audit" json:"audit"`

	// Source is the file the configuration was read from, empty for defaults.
	Source string `yaml:"-" toml:"-" json:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Name = "irc.local"
	cfg.Server.Network = "PresbreyNet"
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 6667
	cfg.Server.MaxConnections = 1024
	cfg.Server.WriteTimeout = Duration{10 * time.Second}
	cfg.Log.Level = "info"
	cfg.Log.Format = "tint"
	cfg.Admin.Host = "127.0.0.1"
	cfg.Admin.Port = 8080
	cfg.Audit.Driver = "sqlite"
	cfg.Audit.Buffer = 256
	return cfg
}

// Load loads configuration from a file over the defaults, then applies
// environment overrides and validates the result. An empty source uses
// the defaults alone.
func Load(source string) (*Config, error) {
	cfg := Default()

	if source != "" {
		if err := cfg.loadFromSource(source); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// loadFromSource loads configuration from a file
func (c *Config) loadFromSource(source string) error {
	data, err := os.ReadFile(source)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Determine the format based on file extension
	switch {
	case strings.HasSuffix(source, ".toml"):
		err = toml.Unmarshal(data, c)
	case strings.HasSuffix(source, ".json"):
		err = json.Unmarshal(data, c)
	default:
		err = yaml.Unmarshal(data, c)
	}

	if err != nil {
		return fmt.Errorf("failed to parse config %s: %w", source, err)
	}

	c.Source = source
	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) error {
	return applyEnvOverridesRecursive(reflect.ValueOf(cfg).Elem())
}

func applyEnvOverridesRecursive(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		if field.PkgPath != "" {
			continue
		}

		if envTag := field.Tag.Get("env"); envTag != "" {
			if envValue, exists := os.LookupEnv(envTag); exists {
				if err := setFieldFromEnv(fieldValue, envValue); err != nil {
					return fmt.Errorf("%s: %w", envTag, err)
				}
			}
		} else if field.Type.Kind() == reflect.Struct {
			if err := applyEnvOverridesRecursive(fieldValue); err != nil {
				return err
			}
		}
	}
	return nil
}

// setFieldFromEnv sets a field's value from an environment variable
func setFieldFromEnv(field reflect.Value, envValue string) error {
	if field.CanAddr() {
		if u, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return u.UnmarshalText([]byte(envValue))
		}
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(strings.TrimSpace(envValue), 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(v)
	case reflect.Bool:
		field.SetBool(parseBool(envValue))
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			values := strings.Split(envValue, ",")
			slice := reflect.MakeSlice(field.Type(), len(values), len(values))
			for i, v := range values {
				slice.Index(i).SetString(strings.TrimSpace(v))
			}
			field.Set(slice)
		}
	}
	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "y"
}

// GetListenAddress returns the formatted listen address for the server
func (c *Config) GetListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetAdminListenAddress returns the formatted listen address for the admin API
func (c *Config) GetAdminListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Admin.Host, c.Admin.Port)
}
