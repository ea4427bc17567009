/*
Package config loads the server configuration.

SOURCES (later wins):
  1. Defaults (Default)
  2. YAML file, when a path is given
  3. .env file in the working directory, when present
  4. NURSEPAY_* environment variables
  5. Command-line flags (applied by cmd/server)

Validate reports every problem at once.
*/
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/warp/nurse-pay/ics"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "NURSEPAY_"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
	Calendar CalendarConfig `yaml:"calendar"`
	Backup   BackupConfig   `yaml:"backup"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type StorageConfig struct {
	Driver       string `yaml:"driver"` // "sqlite" or "memory"
	SQLitePath   string `yaml:"sqlite_path"`
	SeedDefaults bool   `yaml:"seed_defaults"`
	RateCatalog  string `yaml:"rate_catalog"` // optional JSON catalog replacing the built-in one
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

type CalendarConfig struct {
	TimeZone     string `yaml:"timezone"`
	Locale       string `yaml:"locale"`
	CalendarName string `yaml:"calendar_name"`
	UIDDomain    string `yaml:"uid_domain"`
}

type BackupConfig struct {
	Enabled    bool              `yaml:"enabled"`
	Schedule   string            `yaml:"schedule"`
	MaxBackups int               `yaml:"max_backups"`
	Dir        string            `yaml:"dir"`
	S3         S3BackupConfig    `yaml:"s3"`
	Drive      DriveBackupConfig `yaml:"drive"`
}

type S3BackupConfig struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
	PathStyle bool   `yaml:"path_style"`
}

type DriveBackupConfig struct {
	FolderID        string `yaml:"folder_id"`
	CredentialsFile string `yaml:"credentials_file"`
	CredentialsJSON string `yaml:"credentials_json"`
}

// HasTarget reports whether at least one backup target is configured.
func (b BackupConfig) HasTarget() bool {
	return b.Dir != "" || b.S3.Bucket != "" || b.Drive.FolderID != ""
}

// Default returns the configuration of a fresh installation.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Storage: StorageConfig{
			Driver:       "sqlite",
			SQLitePath:   "nurse-pay.db",
			SeedDefaults: true,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Calendar: CalendarConfig{
			TimeZone:     "Europe/Paris",
			Locale:       "fr_FR",
			CalendarName: "Nursing missions",
			UIDDomain:    "nurse-pay",
		},
		Backup: BackupConfig{
			Schedule:   "@every 5m",
			MaxBackups: 10,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, a .env file and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decodeYAML(raw); err != nil {
			return nil, err
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeYAML overlays a YAML document. Unknown keys are rejected.
func (c *Config) decodeYAML(raw []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// applyEnv overlays NURSEPAY_* variables.
func (c *Config) applyEnv() error {
	var errs []string
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %q is not a number", EnvPrefix, name, v))
				return
			}
			*dst = n
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %q is not a boolean", EnvPrefix, name, v))
				return
			}
			*dst = b
		}
	}

	num("PORT", &c.Server.Port)
	if v, ok := os.LookupEnv(EnvPrefix + "CORS_ORIGINS"); ok {
		c.Server.CORSOrigins = splitList(v)
	}
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("DB_PATH", &c.Storage.SQLitePath)
	flag("SEED_DEFAULTS", &c.Storage.SeedDefaults)
	str("RATE_CATALOG", &c.Storage.RateCatalog)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("TIMEZONE", &c.Calendar.TimeZone)
	str("LOCALE", &c.Calendar.Locale)
	str("CALENDAR_NAME", &c.Calendar.CalendarName)
	flag("BACKUP_ENABLED", &c.Backup.Enabled)
	str("BACKUP_SCHEDULE", &c.Backup.Schedule)
	num("BACKUP_MAX", &c.Backup.MaxBackups)
	str("BACKUP_DIR", &c.Backup.Dir)
	str("S3_BUCKET", &c.Backup.S3.Bucket)
	str("S3_REGION", &c.Backup.S3.Region)
	str("S3_ENDPOINT", &c.Backup.S3.Endpoint)
	str("S3_PREFIX", &c.Backup.S3.Prefix)
	flag("S3_PATH_STYLE", &c.Backup.S3.PathStyle)
	str("DRIVE_FOLDER_ID", &c.Backup.Drive.FolderID)
	str("DRIVE_CREDENTIALS_FILE", &c.Backup.Drive.CredentialsFile)
	str("DRIVE_CREDENTIALS_JSON", &c.Backup.Drive.CredentialsJSON)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Server.Port))
	}
	timeouts := []struct {
		name string
		d    time.Duration
	}{
		{"read timeout", c.Server.ReadTimeout},
		{"write timeout", c.Server.WriteTimeout},
		{"idle timeout", c.Server.IdleTimeout},
		{"shutdown timeout", c.Server.ShutdownTimeout},
	}
	for _, t := range timeouts {
		if t.d <= 0 {
			errs = append(errs, fmt.Sprintf("invalid %s %v: must be positive", t.name, t.d))
		}
	}

	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using the sqlite driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid storage driver '%s': must be one of [sqlite memory]", c.Storage.Driver))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be text or json", c.Log.Format))
	}

	if _, ok := ics.LookupZone(c.Calendar.TimeZone); !ok {
		errs = append(errs, fmt.Sprintf("unsupported time zone '%s'", c.Calendar.TimeZone))
	} else if _, err := time.LoadLocation(c.Calendar.TimeZone); err != nil {
		errs = append(errs, fmt.Sprintf("cannot load time zone '%s': %v", c.Calendar.TimeZone, err))
	}
	if c.Calendar.Locale == "" {
		errs = append(errs, "calendar locale cannot be empty")
	}

	if c.Backup.MaxBackups < 1 {
		errs = append(errs, fmt.Sprintf("invalid max backups %d: must be at least 1", c.Backup.MaxBackups))
	}
	if c.Backup.Enabled {
		if !c.Backup.HasTarget() {
			errs = append(errs, "backups are enabled but no target (dir, s3 bucket or drive folder) is configured")
		}
		if _, err := cron.ParseStandard(c.Backup.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("invalid backup schedule '%s': %v", c.Backup.Schedule, err))
		}
	}
	if c.Backup.Drive.FolderID != "" && c.Backup.Drive.CredentialsFile == "" && c.Backup.Drive.CredentialsJSON == "" {
		errs = append(errs, "a drive folder needs credentials_file or credentials_json")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
