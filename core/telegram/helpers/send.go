package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/intakebot/core/logger"
	"github.com/m3rciful/intakebot/core/outbound"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[outbound.Dispatcher]

// SetDispatcher wires the asynchronous dispatcher used by helper functions.
func SetDispatcher(d *outbound.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *outbound.Dispatcher {
	return globalDispatcher.Load()
}

// SendOrdered delivers one update's outbound messages as a single dispatcher
// job so they reach the chat in the given order. Separate jobs run on a
// worker pool and may interleave; messages within one job cannot.
func SendOrdered(c tele.Context, sends ...func() error) error {
	run := func() error {
		for _, send := range sends {
			if err := send(); err != nil {
				return err
			}
		}
		return nil
	}

	disp := currentDispatcher()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	if err := disp.Enqueue(ctx, "send.batch", "sendMessage", run); err != nil {
		if errors.Is(err, outbound.ErrQueueFull) || errors.Is(err, outbound.ErrQueueClosed) {
			logger.Warn(ctx, "outbound", "queue.fallback",
				slog.String("action", "send.batch"),
				slog.Int("count", len(sends)),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}
