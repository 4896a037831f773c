// Package config loads service settings from the environment, an optional
// .env file and an optional config file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Port          string
	Env           string
	LogLevel      string
	BaseURL       string
	CORSOrigins   []string
	AdminEmails   []string
	AdminMapping  map[string]string
	NotifyTimeout time.Duration

	DB      DBConfig
	SMTP    SMTPConfig
	Tracing TracingConfig
}

type DBConfig struct {
	Driver     string
	URL        string
	SQLitePath string
	MaxConns   int32
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      bool
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	Protocol    string
	Insecure    bool
	SampleRatio float64
}

func (c Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// SMTPEnabled reports whether outgoing mail should go to a real server.
func (c Config) SMTPEnabled() bool {
	return c.SMTP.Host != ""
}

// LoadDotEnv loads the nearest .env file from the working directory or one
// of its parents. Variables already set in the environment win. It returns
// the path loaded, or "" when none was found.
func LoadDotEnv() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				return "", fmt.Errorf("load %s: %w", path, err)
			}
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}

// Bind registers defaults and environment bindings on v. Legacy variable
// names are accepted as aliases.
func Bind(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("app_env", EnvProduction)
	v.SetDefault("log_level", "info")
	v.SetDefault("db_driver", DriverSQLite)
	v.SetDefault("sqlite_path", "reservations.db")
	v.SetDefault("db_max_conns", 10)
	v.SetDefault("smtp_port", 587)
	v.SetDefault("notify_timeout", "10s")
	v.SetDefault("tracing_protocol", "grpc")
	v.SetDefault("tracing_sample_ratio", 1.0)

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("emails", "EMAILS", "ADMIN_EMAILS")
	_ = v.BindEnv("email_mapping", "EMAIL_MAPPING", "ADMIN_MAPPING")
	_ = v.BindEnv("smtp_username", "SMTP_USERNAME", "GMAIL_USER")
	_ = v.BindEnv("smtp_password", "SMTP_PASSWORD", "GMAIL_PASS")
	_ = v.BindEnv("app_env", "APP_ENV", "NODE_ENV")
}

// Load builds a Config from v. Call Bind first. Load does not validate;
// commands call Validate or ValidateStore for what they need.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:          v.GetString("port"),
		Env:           strings.ToLower(strings.TrimSpace(v.GetString("app_env"))),
		LogLevel:      strings.ToLower(v.GetString("log_level")),
		BaseURL:       strings.TrimRight(v.GetString("base_url"), "/"),
		CORSOrigins:   splitCSV(v.GetString("cors_origins")),
		NotifyTimeout: v.GetDuration("notify_timeout"),
		DB: DBConfig{
			Driver:     strings.ToLower(v.GetString("db_driver")),
			URL:        v.GetString("database_url"),
			SQLitePath: v.GetString("sqlite_path"),
			MaxConns:   v.GetInt32("db_max_conns"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("smtp_host"),
			Port:     v.GetInt("smtp_port"),
			Username: v.GetString("smtp_username"),
			Password: v.GetString("smtp_password"),
			From:     v.GetString("smtp_from"),
			TLS:      v.GetBool("smtp_tls"),
		},
		Tracing: TracingConfig{
			Enabled:     v.GetBool("tracing_enabled"),
			Endpoint:    v.GetString("tracing_endpoint"),
			Protocol:    strings.ToLower(v.GetString("tracing_protocol")),
			Insecure:    v.GetBool("tracing_insecure"),
			SampleRatio: v.GetFloat64("tracing_sample_ratio"),
		},
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}

	emails, err := parseEmails(v.Get("emails"))
	if err != nil {
		return Config{}, err
	}
	cfg.AdminEmails = emails

	mapping, err := parseMapping(v.Get("email_mapping"))
	if err != nil {
		return Config{}, err
	}
	cfg.AdminMapping = mapping

	return cfg, nil
}

// Validate checks everything the HTTP server needs.
func (c Config) Validate() error {
	var errs []error
	if err := c.ValidateStore(); err != nil {
		errs = append(errs, err)
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if len(c.AdminEmails) == 0 {
		errs = append(errs, errors.New("EMAILS must list at least one administrator"))
	}
	if c.NotifyTimeout < 0 {
		errs = append(errs, errors.New("NOTIFY_TIMEOUT must not be negative"))
	}
	if c.Tracing.Enabled && c.Tracing.Protocol != "grpc" && c.Tracing.Protocol != "http" {
		errs = append(errs, fmt.Errorf("TRACING_PROTOCOL must be grpc or http, got %q", c.Tracing.Protocol))
	}
	return errors.Join(errs...)
}

// ValidateStore checks only the database settings.
func (c Config) ValidateStore() error {
	switch c.DB.Driver {
	case DriverSQLite:
		if c.DB.SQLitePath == "" {
			return errors.New("SQLITE_PATH must not be empty")
		}
	case DriverPostgres:
		if c.DB.URL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q (want sqlite or postgres)", c.DB.Driver)
	}
	return nil
}

// parseEmails accepts a JSON array string, a comma separated string or a
// list from a config file.
func parseEmails(raw any) ([]string, error) {
	var list []string
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		if strings.HasPrefix(s, "[") {
			if err := json.Unmarshal([]byte(s), &list); err != nil {
				return nil, fmt.Errorf("parse EMAILS: %w", err)
			}
		} else {
			list = splitCSV(s)
		}
	case []string:
		list = val
	case []any:
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("parse EMAILS: unexpected entry %v", item)
			}
			list = append(list, s)
		}
	default:
		return nil, fmt.Errorf("parse EMAILS: unsupported type %T", raw)
	}

	out := make([]string, 0, len(list))
	for _, e := range list {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out, nil
}

func parseMapping(raw any) (map[string]string, error) {
	out := make(map[string]string)
	switch val := raw.(type) {
	case nil:
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			break
		}
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("parse EMAIL_MAPPING: %w", err)
		}
	case map[string]string:
		for k, v := range val {
			out[k] = v
		}
	case map[string]any:
		for k, v := range val {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("parse EMAIL_MAPPING: unexpected value for %s", k)
			}
			out[k] = s
		}
	default:
		return nil, fmt.Errorf("parse EMAIL_MAPPING: unsupported type %T", raw)
	}
	return out, nil
}

func splitCSV(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
