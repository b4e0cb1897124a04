package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/eleven-am/vision-client/internal/health"
	"github.com/eleven-am/vision-client/internal/viewer"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
)

var defaultCORSConfig = middleware.CORSConfig{
	AllowOrigins: []string{"*"},
	AllowMethods: []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPost,
		http.MethodOptions,
	},
	AllowHeaders: []string{
		"Accept",
		"Content-Type",
		"X-Requested-With",
	},
	MaxAge: 86400,
}

func NewEchoServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(defaultCORSConfig))
	return e
}

func ProvideRateLimiterConfig(cfg *Config) viewer.RateLimiterConfig {
	rl := viewer.DefaultRateLimiterConfig()
	if cfg.ViewerRateRPS > 0 {
		rl.RequestsPerSecond = cfg.ViewerRateRPS
	}
	if cfg.ViewerRateBurst > 0 {
		rl.Burst = cfg.ViewerRateBurst
	}
	return rl
}

func RegisterViewerRoutes(e *echo.Echo, h *viewer.Handler, hh *health.Handler, rl viewer.RateLimiterConfig) {
	hh.RegisterRoutes(e)
	h.RegisterRoutes(e, viewer.RateLimiter(rl))
}

func StartServer(lc fx.Lifecycle, e *echo.Echo, cfg *Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info("viewer starting", "addr", cfg.ViewerAddr)
				if err := e.Start(cfg.ViewerAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("viewer server error", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
}

var ViewerModule = fx.Options(
	fx.Provide(
		NewEchoServer,
		ProvideRateLimiterConfig,
		ProvideViewerHandler,
		ProvideHealthHandler,
	),
	fx.Invoke(RegisterViewerRoutes),
	fx.Invoke(StartServer),
)

func Run() {
	fx.New(
		fx.Provide(LoadConfig),
		ClientModule,
		ViewerModule,
	).Run()
}
