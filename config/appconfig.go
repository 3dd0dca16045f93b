// config/appconfig.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// AppKey defines a configuration key for an application.
// Apps register their config keys using this type, and Load handles
// reading them from config files, environment variables, and flags.
type AppKey struct {
	// Name is the key name (e.g., "smtp_host", "operator_email").
	// This is used as-is for config files and CLI flags.
	// For env vars, it's uppercased and prefixed (e.g., INQUIRY_SMTP_HOST).
	Name string

	// Default is the default value if not set elsewhere.
	// Supported types: string, int, int64, bool, []string.
	Default any

	// Desc is a short description for --help output.
	Desc string
}

// AppConfigValues holds the loaded app configuration values.
// Keys are the AppKey.Name values, values are the loaded configuration.
type AppConfigValues map[string]any

// String returns a string value or empty string if not found/wrong type.
func (a AppConfigValues) String(key string) string {
	switch v := a[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int returns an int value or 0 if not found/wrong type.
// Handles int, int64 and numeric strings (env vars always arrive as strings).
func (a AppConfigValues) Int(key string) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &n); err == nil {
			return n
		}
	}
	return 0
}

// Bool returns a bool value or false if not found/wrong type.
func (a AppConfigValues) Bool(key string) bool {
	switch v := a[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on":
			return true
		}
	}
	return false
}

// StringSlice returns a []string value or nil if not found/wrong type.
// List keys are normalized during loading, so env values like
// '["a","b"]' or "a,b" both arrive here as []string.
func (a AppConfigValues) StringSlice(key string) []string {
	if v, ok := a[key].([]string); ok {
		return v
	}
	return nil
}

// Duration parses a duration value from the config.
// Accepts:
//   - Duration strings: "10m", "1h30m", "90s", "2h"
//   - Numeric values: interpreted as seconds (e.g., 600 = 10 minutes)
//   - Plain numeric strings: "600" = 600 seconds
//
// Returns the default value if the key is not found, empty, or invalid.
func (a AppConfigValues) Duration(key string, def time.Duration) time.Duration {
	raw := a[key]
	if raw == nil {
		return def
	}
	dur, err := parseDurationFlexible(raw, def)
	if err != nil {
		return def
	}
	return dur
}

// loadAppConfig loads app-specific configuration using the same precedence
// as the core config: flags > env > config files > defaults.
//
// The envPrefix is used for environment variables (e.g., "INQUIRY" means
// the key "smtp_host" maps to env var "INQUIRY_SMTP_HOST").
func loadAppConfig(logger *zap.Logger, v *viper.Viper, envPrefix string, keys []AppKey) (AppConfigValues, error) {
	if len(keys) == 0 {
		return make(AppConfigValues), nil
	}

	appV := viper.New()
	appV.SetEnvPrefix(envPrefix)
	appV.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	appV.AutomaticEnv()

	for _, key := range keys {
		appV.SetDefault(key.Name, key.Default)

		// Config files are merged into the core viper; a file value only
		// replaces the default so env and flags still win over it.
		if v.InConfig(key.Name) {
			appV.SetDefault(key.Name, v.Get(key.Name))
		}

		_ = appV.BindEnv(key.Name)

		if f := pflag.Lookup(key.Name); f != nil && f.Changed {
			_ = appV.BindPFlag(key.Name, f)
		}
	}

	result := make(AppConfigValues, len(keys))
	for _, key := range keys {
		val := appV.Get(key.Name)
		if _, isList := key.Default.([]string); isList {
			list, err := decodeStringList(key.Name, val)
			if err != nil {
				return nil, err
			}
			val = list
		}
		result[key.Name] = val
	}

	if logger != nil {
		fields := make([]zap.Field, 0, len(keys))
		for _, key := range keys {
			if isSecretKey(key.Name) {
				fields = append(fields, zap.String(key.Name, "[REDACTED]"))
			} else {
				fields = append(fields, zap.Any(key.Name, result[key.Name]))
			}
		}
		logger.Info("app config loaded", fields...)
	}

	return result, nil
}

// isSecretKey reports whether a key name looks like it holds a credential.
func isSecretKey(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "key") ||
		strings.Contains(n, "secret") ||
		strings.Contains(n, "password") ||
		strings.Contains(n, "pass") ||
		strings.Contains(n, "token")
}

// registerAppFlags registers command-line flags for app config keys.
// Must be called before pflag.Parse().
func registerAppFlags(keys []AppKey) error {
	for _, key := range keys {
		if pflag.Lookup(key.Name) != nil {
			return fmt.Errorf("config key %q conflicts with existing flag", key.Name)
		}

		switch d := key.Default.(type) {
		case string:
			pflag.String(key.Name, d, key.Desc)
		case int:
			pflag.Int(key.Name, d, key.Desc)
		case int64:
			pflag.Int64(key.Name, d, key.Desc)
		case bool:
			pflag.Bool(key.Name, d, key.Desc)
		case []string:
			pflag.String(key.Name, "", key.Desc+" (JSON array or comma-separated)")
		default:
			return fmt.Errorf("config key %q has unsupported default type %T", key.Name, key.Default)
		}
	}
	return nil
}
