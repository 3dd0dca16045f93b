// app/app.go
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dalemusser/inquiry/config"
	"github.com/dalemusser/inquiry/logging"
	"github.com/dalemusser/inquiry/metrics"
	"github.com/dalemusser/inquiry/pantry/version"
	"github.com/dalemusser/inquiry/server"
	"go.uber.org/zap"
)

// Hooks are the pieces a service supplies to Run. C is the service's own
// config type and D is whatever bundle of backend clients it needs.
type Hooks[C any, D any] struct {
	// Name is used only for logging.
	Name string

	// LoadConfig returns the core config and the service config.
	LoadConfig func(logger *zap.Logger) (*config.CoreConfig, C, error)

	// ConnectBackends dials optional backends (cache, lookup databases).
	// If the returned D implements io.Closer it is closed when Run returns.
	ConnectBackends func(ctx context.Context, core *config.CoreConfig, appCfg C, logger *zap.Logger) (D, error)

	// BuildHandler returns the complete http.Handler, routes and middleware included.
	BuildHandler func(core *config.CoreConfig, appCfg C, deps D, logger *zap.Logger) (http.Handler, error)
}

// Run performs the startup sequence and blocks until shutdown:
//
//  1. bootstrap logger
//  2. LoadConfig
//  3. final logger from log_level/env
//  4. default metrics
//  5. ConnectBackends
//  6. SIGINT/SIGTERM → context cancel
//  7. BuildHandler
//  8. serve until ctx is done
func Run[C any, D any](ctx context.Context, hooks Hooks[C, D]) error {
	if hooks.LoadConfig == nil || hooks.BuildHandler == nil {
		return fmt.Errorf("app %q: LoadConfig and BuildHandler are required", hooks.Name)
	}

	boot := logging.BootstrapLogger()
	defer func() { _ = boot.Sync() }()
	boot.Info("bootstrap logger initialized",
		zap.String("app", hooks.Name),
		zap.String("version", version.Get().Version),
	)

	coreCfg, appCfg, err := hooks.LoadConfig(boot)
	if err != nil {
		boot.Error("config load failed", zap.Error(err))
		return fmt.Errorf("load config: %w", err)
	}
	boot.Info("config loaded",
		zap.String("env", coreCfg.Env),
		zap.String("log_level", coreCfg.LogLevel),
	)

	logger, err := logging.BuildLogger(coreCfg.LogLevel, coreCfg.Env)
	if err != nil {
		boot.Error("logger build failed", zap.Error(err))
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("app", hooks.Name))

	metrics.RegisterDefault(logger)

	var deps D
	if hooks.ConnectBackends != nil {
		deps, err = hooks.ConnectBackends(ctx, coreCfg, appCfg, logger)
		if err != nil {
			logger.Error("backend connect failed", zap.Error(err))
			return fmt.Errorf("connect backends: %w", err)
		}
		if c, ok := any(deps).(io.Closer); ok {
			defer func() {
				if cerr := c.Close(); cerr != nil {
					logger.Warn("backend close failed", zap.Error(cerr))
				}
			}()
		}
	}

	ctx, cancel := server.WithShutdownSignals(ctx, logger)
	defer cancel()

	handler, err := hooks.BuildHandler(coreCfg, appCfg, deps, logger)
	if err != nil {
		logger.Error("handler build failed", zap.Error(err))
		return fmt.Errorf("build handler: %w", err)
	}

	if err := server.ListenAndServeWithContext(ctx, coreCfg, handler, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
