package eventstream

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DropCounter reports how many records the probe failed to submit.
type DropCounter interface {
	DroppedEvents() (uint64, error)
}

// WatchDrops polls counter every interval and logs when the kernel has
// dropped records since the previous poll. It returns when ctx ends.
func WatchDrops(ctx context.Context, counter DropCounter, interval time.Duration, logger *zap.Logger) {
	logger = logger.With(zap.String("component", "dropwatch"))

	last, err := counter.DroppedEvents()
	if err != nil {
		logger.Warn("reading kernel drop counter", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		total, err := counter.DroppedEvents()
		if err != nil {
			logger.Warn("reading kernel drop counter", zap.Error(err))
			continue
		}
		if total > last {
			logger.Warn("ring buffer full, kernel dropped execution events",
				zap.Uint64("dropped", total-last),
				zap.Uint64("total", total),
			)
		}
		last = total
	}
}
