package bootstrap

import (
	"context"
	"log/slog"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/eleven-am/vision-client/internal/camera"
	"github.com/eleven-am/vision-client/internal/console"
	"github.com/eleven-am/vision-client/internal/health"
	"github.com/eleven-am/vision-client/internal/metrics"
	"github.com/eleven-am/vision-client/internal/session"
	"github.com/eleven-am/vision-client/internal/socketio"
	"github.com/eleven-am/vision-client/internal/view"
	"github.com/eleven-am/vision-client/internal/viewer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
)

// Version is set at build time with -ldflags "-X ...bootstrap.Version=...".
var Version = "dev"

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func ProvideMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New(reg)
}

func ProvideSocketOptions(cfg *Config) socketio.Options {
	opts := socketio.DefaultOptions(cfg.ServerURL)
	opts.Path = cfg.SocketPath
	if len(cfg.Transports) > 0 {
		opts.Transports = cfg.Transports
	}
	opts.Upgrade = cfg.Upgrade
	opts.RememberUpgrade = cfg.RememberUpgrade
	opts.Reconnection = cfg.Reconnect
	opts.ReconnectionDelay = cfg.ReconnectDelay
	opts.ReconnectionDelayMax = cfg.ReconnectDelayMax
	opts.Timeout = cfg.ConnectTimeout
	return opts
}

func ProvideSocketClient(opts socketio.Options, m *metrics.Metrics, logger *slog.Logger) (*socketio.Client, error) {
	client, err := socketio.New(opts, logger)
	if err != nil {
		return nil, err
	}
	client.SetEmitHook(m.ObserveEmit)
	return client, nil
}

func ProvideCameraClient(cfg *Config) *camera.Client {
	return camera.NewClient(camera.Config{
		BaseURL: cfg.ServerURL,
		Timeout: cfg.HTTPTimeout,
	})
}

func ProvideHub() *view.Hub {
	return view.NewHub()
}

func ProvideController(cfg *Config, client *socketio.Client, cam *camera.Client, hub *view.Hub, m *metrics.Metrics, logger *slog.Logger) *session.Controller {
	return session.New(client, cam, session.Config{
		FPSInterval:     cfg.FPSInterval,
		NotificationTTL: cfg.NotificationTTL,
		Clock:           clock.New(),
		Metrics:         m,
		Publisher:       hub,
	}, logger)
}

func ProvideViewerHandler(ctrl *session.Controller, hub *view.Hub, cam *camera.Client, reg *prometheus.Registry, logger *slog.Logger) *viewer.Handler {
	return viewer.NewHandler(ctrl, hub, cam, reg, logger)
}

func ProvideHealthHandler(client *socketio.Client, cam *camera.Client) *health.Handler {
	return health.NewHandler(client, cam, Version)
}

type runParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Config     *Config
	Client     *socketio.Client
	Controller *session.Controller
	Hub        *view.Hub
	Logger     *slog.Logger
}

// StartSession runs the socket client, the controller loop and the optional
// console for the lifetime of the application.
func StartSession(p runParams) {
	var (
		cancel context.CancelFunc
		group  *errgroup.Group
	)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			group, ctx = errgroup.WithContext(ctx)

			group.Go(func() error {
				return p.Controller.Run(ctx, p.Client.Events())
			})
			group.Go(func() error {
				p.Logger.Info("connecting", "url", p.Config.ServerURL, "path", p.Config.SocketPath)
				return p.Client.Run(ctx)
			})
			if p.Config.ConsoleEnabled {
				con := console.New(os.Stdin, os.Stdout, p.Controller, p.Hub, p.Logger)
				group.Go(func() error {
					return con.Run(ctx)
				})
			}

			go func() {
				if err := group.Wait(); err != nil {
					p.Logger.Error("session stopped", "error", err)
					_ = p.Shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			_ = p.Client.Close()

			done := make(chan error, 1)
			go func() { done <- group.Wait() }()
			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

var ClientModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,
		ProvideSocketOptions,
		ProvideSocketClient,
		ProvideCameraClient,
		ProvideHub,
		ProvideController,
	),
	fx.Invoke(StartSession),
)
