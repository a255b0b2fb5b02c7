// Package config reads the three environment variables §6 defines into a
// resolved Config, applying the documented defaults and the db-path
// extension rewrite rule.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	envDBPath         = "SCHEDULE_TASK_DB_PATH"
	envTimezone       = "SCHEDULE_TASK_TIMEZONE"
	envSamplingMillis = "SCHEDULE_TASK_SAMPLING_TIMEOUT"

	defaultSamplingTimeout = 180_000 * time.Millisecond
)

// Config holds the resolved runtime settings for the serve/migrate
// commands.
type Config struct {
	DBPath          string
	TimezoneName    string
	SamplingTimeout time.Duration
}

// Load reads the environment and applies every default from §6.
func Load() (Config, error) {
	cfg := Config{
		DBPath:          resolveDBPath(os.Getenv(envDBPath)),
		TimezoneName:    os.Getenv(envTimezone),
		SamplingTimeout: defaultSamplingTimeout,
	}

	if raw, ok := os.LookupEnv(envSamplingMillis); ok && raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			return Config{}, &InvalidEnvError{Name: envSamplingMillis, Value: raw}
		}
		cfg.SamplingTimeout = time.Duration(ms) * time.Millisecond
	}

	return cfg, nil
}

// resolveDBPath applies the default path and the .json->.db / no-extension
// rewrite rule from §6.
func resolveDBPath(raw string) string {
	if raw == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		return filepath.Join(home, ".schedule-task-mcp", "tasks.db")
	}
	if strings.HasSuffix(raw, ".json") {
		return strings.TrimSuffix(raw, ".json") + ".db"
	}
	if filepath.Ext(raw) == "" {
		return raw + ".db"
	}
	return raw
}

// InvalidEnvError reports a malformed environment variable value.
type InvalidEnvError struct {
	Name  string
	Value string
}

func (e *InvalidEnvError) Error() string {
	return e.Name + ": invalid value " + strconv.Quote(e.Value)
}
