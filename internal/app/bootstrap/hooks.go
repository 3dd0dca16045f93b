package bootstrap

import (
	"net/http"

	"github.com/dalemusser/inquiry/app"
	"github.com/dalemusser/inquiry/config"
	"github.com/dalemusser/inquiry/internal/inquiry"
	"github.com/dalemusser/inquiry/metrics"
	"github.com/dalemusser/inquiry/middleware"
	"github.com/dalemusser/inquiry/pantry/email"
	"github.com/dalemusser/inquiry/pantry/health"
	"github.com/dalemusser/inquiry/pantry/version"
	"github.com/dalemusser/inquiry/router"
	"go.uber.org/zap"
)

// LoadConfig loads the core config and the inquiry service's own keys.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, values, err := config.Load(logger, EnvPrefix, appKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}
	appCfg, err := appConfigFrom(values)
	if err != nil {
		return nil, AppConfig{}, err
	}
	return coreCfg, appCfg, nil
}

// BuildHandler wires the SMTP sender, filter, dispatcher and endpoint into
// the standard router, with CORS on the inquiry route only.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps Deps, logger *zap.Logger) (http.Handler, error) {
	sender, err := email.NewSMTPSender(appCfg.SMTP)
	if err != nil {
		return nil, err
	}
	return buildHandler(coreCfg, appCfg, deps, sender, logger)
}

// buildHandler is BuildHandler with the sender injected.
func buildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps Deps, sender email.Sender, logger *zap.Logger) (http.Handler, error) {
	filter, err := inquiry.NewFilter(inquiry.Rules{
		Token:           appCfg.FormToken,
		AllowedOrigins:  appCfg.AllowedOrigins,
		IPDenylist:      appCfg.IPDenylist,
		CountryDenylist: appCfg.CountryDenylist,
		NameDenylist:    appCfg.NameDenylist,
		CompanyDenylist: appCfg.CompanyDenylist,
		EmailDenylist:   appCfg.EmailDenylist,
		MinFillTime:     appCfg.MinFillTime,
	})
	if err != nil {
		return nil, err
	}

	dispatcher, err := inquiry.NewDispatcher(inquiry.DispatcherConfig{
		Sender:        sender,
		OperatorEmail: appCfg.OperatorEmail,
		OperatorName:  appCfg.SMTP.FromName,
		Brand: inquiry.Branding{
			SiteName:       appCfg.SiteName,
			SiteURL:        appCfg.SiteURL,
			Tagline:        appCfg.SiteTagline,
			HeaderImageURL: appCfg.HeaderImageURL,
		},
		Timeout: appCfg.SMTP.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	opts := inquiry.Options{
		Filter:         filter,
		Dispatcher:     dispatcher,
		Throttle:       deps.Throttle,
		ThrottleWindow: appCfg.ThrottleWindow,
		Logger:         logger,
	}
	if deps.Geo != nil {
		opts.Geo = deps.Geo
	}
	endpoint, err := inquiry.NewHandler(opts)
	if err != nil {
		return nil, err
	}

	r := router.New(coreCfg, logger, appCfg.HealthPath, appCfg.MetricsPath)
	r.With(middleware.CORS(middleware.DefaultCORSOptions(appCfg.AllowedOrigins))).
		Handle(appCfg.RoutePath, endpoint)

	if appCfg.HealthPath != "" {
		checks := map[string]health.Check{}
		if deps.Redis != nil {
			checks["redis"] = deps.Redis.Ping
		}
		r.Method(http.MethodGet, appCfg.HealthPath, health.Handler(checks, logger))
	}
	if appCfg.VersionPath != "" {
		r.Method(http.MethodGet, appCfg.VersionPath, version.Handler())
	}
	if appCfg.MetricsPath != "" {
		r.Method(http.MethodGet, appCfg.MetricsPath, metrics.Handler())
	}

	logger.Info("inquiry endpoint ready",
		zap.String("route", appCfg.RoutePath),
		zap.Strings("filter", filter.Signals()),
		zap.Int("allowed_origins", len(appCfg.AllowedOrigins)),
	)
	return r, nil
}

// Hooks wires the service into the app lifecycle.
var Hooks = app.Hooks[AppConfig, Deps]{
	Name:            "inquiry",
	LoadConfig:      LoadConfig,
	ConnectBackends: ConnectBackends,
	BuildHandler:    BuildHandler,
}
