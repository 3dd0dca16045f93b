package bootstrap

import (
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/inquiry/config"
	"github.com/dalemusser/inquiry/pantry/email"
)

// EnvPrefix prefixes every environment variable, core and app keys alike.
const EnvPrefix = "INQUIRY"

// Throttle backends.
const (
	ThrottleNone   = "none"
	ThrottleMemory = "memory"
	ThrottleRedis  = "redis"
)

// appKeys are the inquiry service's own configuration keys.
var appKeys = []config.AppKey{
	{Name: "smtp_host", Default: "", Desc: "SMTP server host"},
	{Name: "smtp_port", Default: 0, Desc: "SMTP port (0 = 465/587/25 by security mode)"},
	{Name: "smtp_security", Default: "ssl", Desc: `SMTP transport security "ssl"|"starttls"|"none"`},
	{Name: "smtp_user", Default: "", Desc: "SMTP username; also the default sender and operator mailbox"},
	{Name: "smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "smtp_timeout", Default: "15s", Desc: "Timeout for each mail send"},
	{Name: "smtp_attempts", Default: 1, Desc: "Tries per mail send on temporary (4xx) SMTP failures"},

	{Name: "operator_email", Default: "", Desc: "Mailbox that receives inquiries (default smtp_user)"},
	{Name: "from_address", Default: "", Desc: "Envelope sender address (default smtp_user)"},
	{Name: "from_name", Default: "GNOSIS Assets", Desc: "Sender display name"},

	{Name: "site_name", Default: "Gnosis Assets", Desc: "Site name used in messages"},
	{Name: "site_url", Default: "https://gnosisbase.com", Desc: "Site URL used in messages"},
	{Name: "site_tagline", Default: "Identity Infrastructure for the AI Era.", Desc: "Line under the acknowledgment signature (empty = none)"},
	{Name: "header_image_url", Default: "https://gnosisbase.com/gnosis-assets-header.png", Desc: "Banner image for the HTML acknowledgment (empty = none)"},

	{Name: "form_token", Default: "", Desc: "Shared secret expected in the x-form-token header (empty = off)"},
	{Name: "allowed_origins", Default: []string{}, Desc: "Origins allowed to submit; also the CORS allowlist"},
	{Name: "ip_denylist", Default: []string{}, Desc: "Client IPs, CIDR prefixes or literal prefixes to reject"},
	{Name: "country_denylist", Default: []string{}, Desc: "ISO country codes to reject (needs geoip_db_path)"},
	{Name: "name_denylist", Default: []string{"roberttum"}, Desc: "Name substrings to reject"},
	{Name: "company_denylist", Default: []string{"google"}, Desc: "Company substrings to reject"},
	{Name: "email_denylist", Default: []string{}, Desc: "Email addresses to reject"},
	{Name: "min_fill_time", Default: "2500ms", Desc: "Shortest plausible form fill time (0 = off)"},

	{Name: "throttle_backend", Default: ThrottleNone, Desc: `Per-IP throttle store "none"|"memory"|"redis"`},
	{Name: "throttle_window", Default: "60s", Desc: "Minimum interval between admitted inquiries per client IP"},
	{Name: "redis_addr", Default: "localhost:6379", Desc: "Redis address for the redis throttle"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},

	{Name: "geoip_db_path", Default: "", Desc: "MaxMind country database (.mmdb); empty = no country lookup"},

	{Name: "route_path", Default: "/api/contact", Desc: "Path of the inquiry endpoint"},
	{Name: "metrics_path", Default: "/metrics", Desc: "Path of the Prometheus endpoint (empty = off)"},
	{Name: "health_path", Default: "/health", Desc: "Path of the health endpoint (empty = off)"},
	{Name: "version_path", Default: "/version", Desc: "Path of the build info endpoint (empty = off)"},
}

// AppConfig holds the inquiry service's configuration.
type AppConfig struct {
	SMTP          email.Config
	OperatorEmail string

	SiteName       string
	SiteURL        string
	SiteTagline    string
	HeaderImageURL string

	FormToken       string
	AllowedOrigins  []string
	IPDenylist      []string
	CountryDenylist []string
	NameDenylist    []string
	CompanyDenylist []string
	EmailDenylist   []string
	// MinFillTime < 0 disables the timing trap.
	MinFillTime time.Duration

	ThrottleBackend string
	ThrottleWindow  time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	GeoIPPath string

	RoutePath   string
	MetricsPath string
	HealthPath  string
	VersionPath string
}

// appConfigFrom maps loaded values onto AppConfig and validates them.
func appConfigFrom(v config.AppConfigValues) (AppConfig, error) {
	var p config.Problems

	sec, err := email.ParseSecurity(v.String("smtp_security"))
	if err != nil {
		p.Invalid("smtp_security: " + err.Error())
	}

	user := v.String("smtp_user")
	cfg := AppConfig{
		SMTP: email.Config{
			Host:        v.String("smtp_host"),
			Port:        v.Int("smtp_port"),
			Username:    user,
			Password:    v.String("smtp_pass"),
			FromAddress: firstNonEmpty(v.String("from_address"), user),
			FromName:    v.String("from_name"),
			Security:    sec,
			Timeout:     v.Duration("smtp_timeout", 15*time.Second),
			Attempts:    v.Int("smtp_attempts"),
		},
		OperatorEmail: firstNonEmpty(v.String("operator_email"), user),

		SiteName:       v.String("site_name"),
		SiteURL:        v.String("site_url"),
		SiteTagline:    v.String("site_tagline"),
		HeaderImageURL: v.String("header_image_url"),

		FormToken:       v.String("form_token"),
		AllowedOrigins:  v.StringSlice("allowed_origins"),
		IPDenylist:      v.StringSlice("ip_denylist"),
		CountryDenylist: v.StringSlice("country_denylist"),
		NameDenylist:    v.StringSlice("name_denylist"),
		CompanyDenylist: v.StringSlice("company_denylist"),
		EmailDenylist:   v.StringSlice("email_denylist"),
		MinFillTime:     minFillTime(v.String("min_fill_time")),

		ThrottleBackend: strings.ToLower(v.String("throttle_backend")),
		ThrottleWindow:  v.Duration("throttle_window", time.Minute),
		RedisAddr:       v.String("redis_addr"),
		RedisPassword:   v.String("redis_password"),
		RedisDB:         v.Int("redis_db"),

		GeoIPPath: v.String("geoip_db_path"),

		RoutePath:   v.String("route_path"),
		MetricsPath: v.String("metrics_path"),
		HealthPath:  v.String("health_path"),
		VersionPath: v.String("version_path"),
	}

	if cfg.SMTP.Host == "" {
		p.Missing("smtp_host")
	}
	if cfg.SMTP.FromAddress == "" {
		p.Missing("from_address or smtp_user")
	} else if _, err := mail.ParseAddress(cfg.SMTP.FromAddress); err != nil {
		p.Invalid("from_address must be an email address")
	}
	if cfg.OperatorEmail == "" {
		p.Missing("operator_email or smtp_user")
	} else if _, err := mail.ParseAddress(cfg.OperatorEmail); err != nil {
		p.Invalid("operator_email must be an email address")
	}
	if cfg.SMTP.Attempts < 1 || cfg.SMTP.Attempts > 5 {
		p.Invalid("smtp_attempts must be in 1..5")
	}
	if cfg.SMTP.Port < 0 || cfg.SMTP.Port > 65535 {
		p.Invalid("smtp_port must be in 0..65535")
	}
	if u, err := url.Parse(cfg.SiteURL); cfg.SiteURL != "" && (err != nil || u.Host == "") {
		p.Invalid("site_url must be an absolute URL")
	}

	switch cfg.ThrottleBackend {
	case "":
		cfg.ThrottleBackend = ThrottleNone
	case ThrottleNone, ThrottleMemory:
	case ThrottleRedis:
		if cfg.RedisAddr == "" {
			p.Missing("redis_addr for throttle_backend=redis")
		}
	default:
		p.Invalid(`throttle_backend must be "none", "memory" or "redis"`)
	}
	if len(cfg.CountryDenylist) > 0 && cfg.GeoIPPath == "" {
		p.Missing("geoip_db_path for country_denylist")
	}

	if !strings.HasPrefix(cfg.RoutePath, "/") {
		p.Invalid("route_path must start with /")
	}
	if cfg.MetricsPath != "" && !strings.HasPrefix(cfg.MetricsPath, "/") {
		p.Invalid("metrics_path must start with / or be empty")
	}
	if cfg.HealthPath != "" && !strings.HasPrefix(cfg.HealthPath, "/") {
		p.Invalid("health_path must start with / or be empty")
	}
	if cfg.VersionPath != "" && !strings.HasPrefix(cfg.VersionPath, "/") {
		p.Invalid("version_path must start with / or be empty")
	}

	if err := p.Err("inquiry configuration errors"); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// minFillTime parses the timing trap threshold. "0" turns the trap off; an
// unparsable value keeps the default.
func minFillTime(s string) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	if d <= 0 {
		return -1
	}
	return d
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
