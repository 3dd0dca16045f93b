package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/inquiry/config"
	"github.com/dalemusser/inquiry/pantry/geo/ip"
	"github.com/dalemusser/inquiry/pantry/throttle"
	"go.uber.org/zap"
)

// Deps holds the optional backends. The zero value means no throttle and no
// country lookup. app.Run closes it on exit.
type Deps struct {
	Throttle throttle.Store
	// Redis is set when Throttle is the shared Redis store; health pings it.
	Redis *throttle.Redis
	Geo   *ip.DB
}

// Close releases every backend that was opened.
func (d Deps) Close() error {
	var errs []error
	if c, ok := d.Throttle.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	if d.Geo != nil {
		errs = append(errs, d.Geo.Close())
	}
	return errors.Join(errs...)
}

// ConnectBackends opens the throttle store and the GeoIP database the
// configuration asks for. A failure closes whatever was already opened.
func ConnectBackends(ctx context.Context, _ *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (Deps, error) {
	var deps Deps

	switch appCfg.ThrottleBackend {
	case ThrottleMemory:
		deps.Throttle = throttle.NewMemory(0)
		logger.Info("throttle: in-memory store", zap.Duration("window", appCfg.ThrottleWindow))
	case ThrottleRedis:
		r, err := throttle.NewRedis(ctx, throttle.RedisConfig{
			Address:  appCfg.RedisAddr,
			Password: appCfg.RedisPassword,
			DB:       appCfg.RedisDB,
		})
		if err != nil {
			return Deps{}, fmt.Errorf("connect redis throttle: %w", err)
		}
		deps.Throttle, deps.Redis = r, r
		logger.Info("throttle: redis store",
			zap.String("addr", appCfg.RedisAddr),
			zap.Duration("window", appCfg.ThrottleWindow))
	default:
		logger.Info("throttle: disabled")
	}

	if appCfg.GeoIPPath != "" {
		db, err := ip.Open(appCfg.GeoIPPath)
		if err != nil {
			_ = deps.Close()
			return Deps{}, err
		}
		deps.Geo = db
		logger.Info("geoip database loaded", zap.String("path", appCfg.GeoIPPath))
	}

	return deps, nil
}
