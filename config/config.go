// config/config.go
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// HTTPConfig groups HTTP/HTTPS port, protocol, and server timeout settings.
type HTTPConfig struct {
	HTTPPort  int  `mapstructure:"http_port"`
	HTTPSPort int  `mapstructure:"https_port"`
	UseHTTPS  bool `mapstructure:"use_https"`

	ReadTimeout       time.Duration `mapstructure:"-"`
	ReadHeaderTimeout time.Duration `mapstructure:"-"`
	WriteTimeout      time.Duration `mapstructure:"-"`
	IdleTimeout       time.Duration `mapstructure:"-"`
	ShutdownTimeout   time.Duration `mapstructure:"-"`
}

// TLSConfig groups manual TLS and Let's Encrypt (http-01) settings.
type TLSConfig struct {
	CertFile            string `mapstructure:"cert_file"`
	KeyFile             string `mapstructure:"key_file"`
	UseLetsEncrypt      bool   `mapstructure:"use_lets_encrypt"`
	LetsEncryptEmail    string `mapstructure:"lets_encrypt_email"`
	LetsEncryptCacheDir string `mapstructure:"lets_encrypt_cache_dir"`
	Domain              string `mapstructure:"domain"`
}

// CoreConfig holds the process-level configuration: runtime, HTTP, TLS.
// Inquiry-specific settings live in AppConfigValues.
type CoreConfig struct {
	// runtime
	Env      string `mapstructure:"env"`       // "dev" | "prod"
	LogLevel string `mapstructure:"log_level"` // debug, info, warn, error …

	HTTP HTTPConfig `mapstructure:",squash"`
	TLS  TLSConfig  `mapstructure:",squash"`

	// HTTP behavior
	MaxRequestBodyBytes int64 `mapstructure:"max_request_body_bytes"`
}

// Dump returns a pretty JSON string of the config for debugging.
// CoreConfig carries no secrets; app secrets are redacted in loadAppConfig.
func (c CoreConfig) Dump() string {
	b, _ := json.MarshalIndent(c, "", "  ")
	return string(b)
}

// Load merges defaults → config.* file(s) → env vars → explicit flags into
// one CoreConfig plus the app's own keys.
// Final precedence (highest wins): flags(explicit) > env > config > defaults.
//
// Core keys read env vars with the envPrefix (e.g. INQUIRY_HTTP_PORT), the
// same prefix the app keys use.
func Load(logger *zap.Logger, envPrefix string, appKeys []AppKey) (*CoreConfig, AppConfigValues, error) {
	// 0) Optionally load .env (safe: real env still wins over .env)
	if err := godotenv.Load(); err == nil && logger != nil {
		logger.Info("Loaded .env file")
	}

	// 1) Define flags (only *explicitly set* flags will override)
	pflag.String("env", "dev", `Runtime environment "dev"|"prod"`)
	pflag.String("log_level", "debug", "Log level")

	pflag.Int("http_port", 8080, "HTTP port")
	pflag.Int("https_port", 443, "HTTPS port")
	pflag.Bool("use_https", false, "Serve HTTPS")

	pflag.Bool("use_lets_encrypt", false, "Use Let's Encrypt (http-01)")
	pflag.String("lets_encrypt_email", "", "ACME account e-mail")
	pflag.String("lets_encrypt_cache_dir", "letsencrypt-cache", "ACME cache dir")
	pflag.String("cert_file", "", "TLS cert file (manual TLS)")
	pflag.String("key_file", "", "TLS key file  (manual TLS)")
	pflag.String("domain", "", "Domain for TLS or ACME")

	pflag.String("read_timeout", "15s", "HTTP server read timeout")
	pflag.String("read_header_timeout", "10s", "HTTP server read-header timeout")
	pflag.String("write_timeout", "60s", "HTTP server write timeout (must cover both mail sends)")
	pflag.String("idle_timeout", "120s", "HTTP server idle timeout")
	pflag.String("shutdown_timeout", "15s", "Graceful shutdown window")

	pflag.Int64("max_request_body_bytes", 64<<10, "Max HTTP request body size in bytes (0 = unlimited)")

	if err := registerAppFlags(appKeys); err != nil {
		return nil, nil, err
	}
	pflag.Parse()

	// 2) Viper + env
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for _, k := range allKeys() {
		_ = v.BindEnv(k)
	}

	// 3) Optional config.* files (yaml|yml|json|toml)
	for _, ext := range [...]string{"yaml", "yml", "json", "toml"} {
		file := "config." + ext
		if _, err := os.Stat(file); err != nil {
			continue
		}
		b, err := os.ReadFile(file)
		if err != nil {
			if logger != nil {
				logger.Warn("cannot read config file", zap.String("file", file), zap.Error(err))
			}
			continue
		}
		v.SetConfigType(ext)
		if err := v.MergeConfig(bytes.NewReader(b)); err != nil {
			if logger != nil {
				logger.Warn("cannot decode config file", zap.String("file", file), zap.Error(err))
			}
			continue
		}
		if logger != nil {
			logger.Info("Loaded config file", zap.String("file", file))
		}
	}

	// 4) Defaults (lowest precedence)
	setDefaults(v)

	// 5) Apply *explicit* flags (highest precedence)
	pflag.CommandLine.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			_ = v.BindPFlag(f.Name, f)
		}
	})

	// 6) Build struct
	var cfg CoreConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("unable to decode core config: %w", err)
	}

	cfg.HTTP.ReadTimeout = durationKey(logger, v, "read_timeout", 15*time.Second)
	cfg.HTTP.ReadHeaderTimeout = durationKey(logger, v, "read_header_timeout", 10*time.Second)
	cfg.HTTP.WriteTimeout = durationKey(logger, v, "write_timeout", 60*time.Second)
	cfg.HTTP.IdleTimeout = durationKey(logger, v, "idle_timeout", 120*time.Second)
	cfg.HTTP.ShutdownTimeout = durationKey(logger, v, "shutdown_timeout", 15*time.Second)

	// 7) Validate
	if err := validateCoreConfig(cfg); err != nil {
		return nil, nil, err
	}

	appValues, err := loadAppConfig(logger, v, envPrefix, appKeys)
	if err != nil {
		return nil, nil, err
	}

	return &cfg, appValues, nil
}

func durationKey(logger *zap.Logger, v *viper.Viper, key string, def time.Duration) time.Duration {
	d, err := parseDurationFlexible(v.Get(key), def)
	if err != nil && logger != nil {
		logger.Warn("invalid duration; using default",
			zap.String("key", key),
			zap.Any("value", v.Get(key)),
			zap.Duration("default", def),
			zap.Error(err))
	}
	return d
}

func allKeys() []string {
	return []string{
		"env", "log_level",
		"http_port", "https_port", "use_https",
		"use_lets_encrypt", "lets_encrypt_email", "lets_encrypt_cache_dir",
		"cert_file", "key_file", "domain",
		"read_timeout", "read_header_timeout", "write_timeout", "idle_timeout", "shutdown_timeout",
		"max_request_body_bytes",
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "debug")

	v.SetDefault("http_port", 8080)
	v.SetDefault("https_port", 443)
	v.SetDefault("use_https", false)

	v.SetDefault("use_lets_encrypt", false)
	v.SetDefault("lets_encrypt_email", "")
	v.SetDefault("lets_encrypt_cache_dir", "letsencrypt-cache")
	v.SetDefault("cert_file", "")
	v.SetDefault("key_file", "")
	v.SetDefault("domain", "")

	v.SetDefault("read_timeout", "15s")
	v.SetDefault("read_header_timeout", "10s")
	v.SetDefault("write_timeout", "60s")
	v.SetDefault("idle_timeout", "120s")
	v.SetDefault("shutdown_timeout", "15s")

	v.SetDefault("max_request_body_bytes", int64(64<<10))
}

// decodeStringList coerces a JSON-array string, a comma-separated string, or
// a decoded list into []string.
func decodeStringList(key string, val any) ([]string, error) {
	switch t := val.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, nil
		}
		if strings.HasPrefix(s, "[") {
			var arr []string
			if err := json.Unmarshal([]byte(s), &arr); err != nil {
				return nil, fmt.Errorf("config key %q expects a JSON array string, got %q: %w", key, s, err)
			}
			return arr, nil
		}
		var arr []string
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				arr = append(arr, p)
			}
		}
		return arr, nil
	case []interface{}:
		arr := make([]string, 0, len(t))
		for _, e := range t {
			arr = append(arr, fmt.Sprint(e))
		}
		return arr, nil
	case []string:
		return t, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("config key %q: unexpected type %T for list", key, val)
	}
}

func validateCoreConfig(cfg CoreConfig) error {
	var missing []string
	var invalid []string

	if cfg.TLS.UseLetsEncrypt && !cfg.HTTP.UseHTTPS {
		invalid = append(invalid, "use_lets_encrypt=true requires use_https=true")
	}
	if cfg.TLS.UseLetsEncrypt && (strings.TrimSpace(cfg.TLS.CertFile) != "" || strings.TrimSpace(cfg.TLS.KeyFile) != "") {
		invalid = append(invalid, "use_lets_encrypt=true cannot be combined with cert_file/key_file")
	}
	if cfg.TLS.UseLetsEncrypt {
		if strings.TrimSpace(cfg.TLS.Domain) == "" {
			missing = append(missing, "domain for Let's Encrypt")
		}
		if s := strings.TrimSpace(cfg.TLS.LetsEncryptEmail); s == "" {
			missing = append(missing, "lets_encrypt_email")
		} else if !strings.Contains(s, "@") {
			invalid = append(invalid, "lets_encrypt_email must look like an email address")
		}
	}

	if cfg.HTTP.UseHTTPS && !cfg.TLS.UseLetsEncrypt {
		if strings.TrimSpace(cfg.TLS.CertFile) == "" || strings.TrimSpace(cfg.TLS.KeyFile) == "" {
			missing = append(missing, "cert_file and key_file for manual TLS")
		}
	}

	if cfg.HTTP.HTTPPort <= 0 || cfg.HTTP.HTTPPort > 65535 {
		invalid = append(invalid, "http_port must be in 1..65535")
	}
	if cfg.HTTP.HTTPSPort <= 0 || cfg.HTTP.HTTPSPort > 65535 {
		invalid = append(invalid, "https_port must be in 1..65535")
	}
	if cfg.HTTP.UseHTTPS && cfg.HTTP.HTTPPort == cfg.HTTP.HTTPSPort {
		invalid = append(invalid, "http_port and https_port cannot be equal when use_https=true")
	}
	if cfg.MaxRequestBodyBytes < 0 {
		invalid = append(invalid, "max_request_body_bytes must be >= 0")
	}

	return joinProblems("core configuration errors", missing, invalid)
}

// joinProblems folds missing/invalid lists into one error, or nil.
func joinProblems(prefix string, missing, invalid []string) error {
	if len(missing) == 0 && len(invalid) == 0 {
		return nil
	}
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid: "+strings.Join(invalid, ", "))
	}
	return fmt.Errorf("%s: %s", prefix, strings.Join(parts, " | "))
}

// Problems accumulates configuration problems for app-level validation so
// apps report them in the same shape as the core config.
type Problems struct {
	missing []string
	invalid []string
}

// Missing records a required key that is absent.
func (p *Problems) Missing(what string) { p.missing = append(p.missing, what) }

// Invalid records a key whose value is unusable.
func (p *Problems) Invalid(what string) { p.invalid = append(p.invalid, what) }

// Err returns nil when nothing was recorded.
func (p *Problems) Err(prefix string) error {
	return joinProblems(prefix, p.missing, p.invalid)
}
