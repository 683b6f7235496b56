package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"service-dispatch/internal/config"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/service/dispatch"
	"service-dispatch/internal/service/tracker"
	"service-dispatch/internal/service/weather"
)

const shutdownTimeout = 15 * time.Second

// Runner runs the API process.
type Runner struct {
	runFn func(*dig.Container) error
}

// NewRunner returns a new Runner
func NewRunner() *Runner {
	return &Runner{runFn: run}
}

// MustRun starts the HTTP server using the provided DI container
func (r *Runner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil {
		return
	}

	var logger logx.Logger = logx.Nop()
	_ = container.Invoke(func(l logx.Logger) { logger = l })

	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("shutdown requested, exiting")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("startup aborted: startup timeout exceeded")
	default:
		logger.Error("run error", logx.Err(err))
		_ = logger.Sync()
		panic(err)
	}
}

type drainer interface {
	Shutdown(ctx context.Context) error
}

type flusher interface {
	Flush(ctx context.Context) (tracker.FlushResult, error)
}

type refresher interface {
	Refresh(ctx context.Context) (domain.WeatherSample, error)
}

// resources are closed once both runners are done with them.
type resources struct {
	pool   *pgxpool.Pool
	redis  *redis.Client
	notify notifyCloser
}

func (r resources) close(logger logx.Logger) {
	if r.notify != nil {
		if err := r.notify(); err != nil {
			logger.Error("notify close error", logx.Err(err))
		}
	}
	if r.redis != nil {
		if err := r.redis.Close(); err != nil {
			logger.Error("redis close error", logx.Err(err))
		}
	}
	if r.pool != nil {
		r.pool.Close()
	}
}

type runIn struct {
	dig.In

	Ctx      context.Context
	Logger   logx.Logger
	Cfg      *config.Config    `optional:"true"`
	Server   *http.Server
	Debug    *http.Server      `name:"debug_server" optional:"true"`
	Pool     *pgxpool.Pool     `optional:"true"`
	Redis    *redis.Client     `optional:"true"`
	Notify   notifyCloser      `optional:"true"`
	Dispatch *dispatch.Service `optional:"true"`
	Tracker  *tracker.Service  `optional:"true"`
	Weather  *weather.Service  `optional:"true"`
}

func run(container *dig.Container) error {
	return container.Invoke(func(in runIn) error {
		var (
			flushEvery   = time.Minute
			weatherEvery = 30 * time.Minute
		)
		if in.Cfg != nil {
			flushEvery, weatherEvery = in.Cfg.Tracker.FlushInterval, in.Cfg.Weather.RefreshInterval
		}

		startServer(in.Server, in.Logger, "api")
		if in.Debug != nil {
			startServer(in.Debug, in.Logger, "debug")
		}

		loopsCtx, stopLoops := context.WithCancel(in.Ctx)
		defer stopLoops()
		if in.Tracker != nil {
			startFlushLoop(loopsCtx, in.Logger, in.Tracker, flushEvery)
		}
		if in.Weather != nil && in.Cfg != nil && in.Cfg.Weather.APIKey != "" {
			startWeatherLoop(loopsCtx, in.Logger, in.Weather, weatherEvery)
		}

		waitForShutdown(in.Ctx, in.Logger)
		stopLoops()

		gracefulShutdown(in.Server, in.Logger, shutdownTimeout)
		if in.Debug != nil {
			gracefulShutdown(in.Debug, in.Logger, time.Second)
		}
		var d drainer
		if in.Dispatch != nil {
			d = in.Dispatch
		}
		drain(d, in.Logger, shutdownTimeout)
		if in.Tracker != nil {
			finalFlush(in.Tracker, in.Logger)
		}
		resources{pool: in.Pool, redis: in.Redis, notify: in.Notify}.close(in.Logger)
		return in.Ctx.Err()
	})
}

func startServer(server *http.Server, logger logx.Logger, name string) {
	go func() {
		logger.Info("http server listening", logx.String("server", name), logx.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen error", logx.String("server", name), logx.Err(err))
		}
	}()
}

func waitForShutdown(ctx context.Context, logger logx.Logger) {
	<-ctx.Done()
	logger.Info("shutting down service-dispatch")
}

func gracefulShutdown(srv *http.Server, logger logx.Logger, timeout time.Duration) {
	shCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Warn("graceful shutdown error", logx.Err(err))
	}
}

// drain waits for in-flight dispatch runs.
func drain(d drainer, logger logx.Logger, timeout time.Duration) {
	if d == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		logger.Warn("dispatch drain incomplete", logx.Err(err))
	}
}

// startLoop calls fn every interval until ctx is done.
func startLoop(ctx context.Context, logger logx.Logger, name string, interval time.Duration, fn func(context.Context) error) {
	if interval <= 0 {
		logger.Warn("background loop disabled", logx.String("loop", name))
		return
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := fn(ctx); err != nil && ctx.Err() == nil {
					logger.Error("background loop failed", logx.String("loop", name), logx.Err(err))
				}
			}
		}
	}()
}

func startFlushLoop(ctx context.Context, logger logx.Logger, f flusher, interval time.Duration) {
	startLoop(ctx, logger, "location_flush", interval, func(ctx context.Context) error {
		_, err := f.Flush(ctx)
		return err
	})
}

// startWeatherLoop refreshes once right away so prices see weather before the first tick.
func startWeatherLoop(ctx context.Context, logger logx.Logger, r refresher, interval time.Duration) {
	refresh := func(ctx context.Context) error {
		_, err := r.Refresh(ctx)
		return err
	}
	go func() {
		if err := refresh(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("initial weather refresh failed", logx.Err(err))
		}
	}()
	startLoop(ctx, logger, "weather_refresh", interval, refresh)
}

// finalFlush persists what the live index holds before exit.
func finalFlush(f flusher, logger logx.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := f.Flush(ctx); err != nil {
		logger.Warn("final location flush failed", logx.Err(err))
	}
}
