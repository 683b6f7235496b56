package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"service-dispatch/internal/logx"
	"service-dispatch/internal/service/dispatch"
	"service-dispatch/internal/transport/kafka"
)

// WorkerRunner runs the Kafka dispatch-trigger consumer
type WorkerRunner struct {
	runFn func(*dig.Container) error
}

// NewWorkerRunner returns a new WorkerRunner
func NewWorkerRunner() *WorkerRunner {
	return &WorkerRunner{runFn: runWorker}
}

// MustRun starts the consumer using the provided DI container
func (r *WorkerRunner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	panic(err)
}

type workerIn struct {
	dig.In

	Ctx      context.Context
	Logger   logx.Logger
	Consumer *kafka.Consumer
	Dispatch *dispatch.Service `optional:"true"`
	Pool     *pgxpool.Pool     `optional:"true"`
	Redis    *redis.Client     `optional:"true"`
	Notify   notifyCloser      `optional:"true"`
}

func runWorker(container *dig.Container) error {
	return container.Invoke(func(in workerIn) error {
		var d drainer
		if in.Dispatch != nil {
			d = in.Dispatch
		}
		return workerRun(in.Ctx, in.Logger, in.Consumer, d,
			resources{pool: in.Pool, redis: in.Redis, notify: in.Notify})
	})
}

func workerRun(ctx context.Context, logger logx.Logger, consumer *kafka.Consumer, d drainer, res resources) error {
	if consumer == nil {
		return fmt.Errorf("kafka consumer is nil: worker container misconfigured")
	}
	defer closeWorker(logger, consumer, d, res)

	logger.Info("service-dispatch-worker started")
	return consumer.Run(ctx)
}

func closeWorker(logger logx.Logger, consumer *kafka.Consumer, d drainer, res resources) {
	if err := consumer.Close(); err != nil {
		logger.Error("kafka close error", logx.Err(err))
	}
	drain(d, logger, shutdownTimeout)
	res.close(logger)
}
