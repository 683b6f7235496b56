package app

import (
	"context"
	"time"

	"service-dispatch/internal/service/orders"
	"service-dispatch/internal/transport/kafka"
)

// kafkaHandleTimeout bounds one event. Dispatch runs continue in the background.
const kafkaHandleTimeout = 5 * time.Second

type eventHandler interface {
	Handle(ctx context.Context, e orders.Event) error
}

func makeOrdersKafka(h eventHandler, timeout time.Duration) kafka.HandleFunc {
	return func(ctx context.Context, event orders.Event) error {
		if timeout <= 0 {
			return h.Handle(ctx, event)
		}
		hCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return h.Handle(hCtx, event)
	}
}
