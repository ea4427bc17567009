package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "Europe/Paris", cfg.Calendar.TimeZone)
	assert.Equal(t, 10, cfg.Backup.MaxBackups)
	assert.Equal(t, "@every 5m", cfg.Backup.Schedule)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, `
server:
  port: 9090
  shutdown_timeout: 5s
  cors_origins: ["https://planning.example"]
storage:
  driver: memory
log:
  level: debug
  format: json
calendar:
  timezone: Europe/Brussels
backup:
  enabled: true
  dir: ./backups
  max_backups: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"https://planning.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "Europe/Brussels", cfg.Calendar.TimeZone)
	assert.True(t, cfg.Backup.Enabled)
	assert.Equal(t, 3, cfg.Backup.MaxBackups)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_UnknownKeyIsRejected(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "server:\n  prot: 9090\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "server:\n  port: 9090\n")
	t.Setenv("NURSEPAY_PORT", "7070")
	t.Setenv("NURSEPAY_DB_PATH", "/data/pay.db")
	t.Setenv("NURSEPAY_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("NURSEPAY_BACKUP_ENABLED", "true")
	t.Setenv("NURSEPAY_S3_BUCKET", "pay-backups")
	t.Setenv("NURSEPAY_S3_PATH_STYLE", "1")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/data/pay.db", cfg.Storage.SQLitePath)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Backup.Enabled)
	assert.Equal(t, "pay-backups", cfg.Backup.S3.Bucket)
	assert.True(t, cfg.Backup.S3.PathStyle)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NURSEPAY_LOCALE=en_US\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("NURSEPAY_LOCALE") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "en_US", cfg.Calendar.Locale)
}

func TestLoad_BadEnvironmentValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("NURSEPAY_PORT", "eighty")
	t.Setenv("NURSEPAY_BACKUP_ENABLED", "maybe")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NURSEPAY_PORT")
	assert.Contains(t, err.Error(), "NURSEPAY_BACKUP_ENABLED")
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Server.IdleTimeout = 0
	cfg.Storage.Driver = "postgres"
	cfg.Log.Level = "verbose"
	cfg.Log.Format = "xml"
	cfg.Calendar.TimeZone = "America/New_York"
	cfg.Backup.Enabled = true
	cfg.Backup.Schedule = "whenever"
	cfg.Backup.MaxBackups = 0

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "configuration validation failed:\n- ")
	for _, want := range []string{
		"invalid port 0",
		"invalid idle timeout",
		"invalid storage driver 'postgres'",
		"invalid log level 'verbose'",
		"invalid log format 'xml'",
		"unsupported time zone 'America/New_York'",
		"invalid max backups 0",
		"no target",
		"invalid backup schedule 'whenever'",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestValidate_SQLiteNeedsPath(t *testing.T) {
	cfg := Default()
	cfg.Storage.SQLitePath = ""
	assert.ErrorContains(t, cfg.Validate(), "SQLite database path cannot be empty")
}

func TestValidate_DriveNeedsCredentials(t *testing.T) {
	cfg := Default()
	cfg.Backup.Drive.FolderID = "folder"
	assert.ErrorContains(t, cfg.Validate(), "drive folder needs credentials")
}
