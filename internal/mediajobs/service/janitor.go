package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/aetherium-labs/aetherium-backend/internal/logging"
)

// StartJanitor schedules ExpireStale. spec is a cron expression with a
// seconds field, e.g. "0 */1 * * * *". Stop the returned cron on shutdown.
func (s *JobService) StartJanitor(spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds())

	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		n, err := s.ExpireStale(ctx)
		if err != nil {
			logging.L().Warn("media job janitor failed", zap.Error(err))
			return
		}
		if n > 0 {
			logging.L().Info("media jobs expired", zap.Int("count", n))
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	logging.L().Info("media job janitor started", zap.String("schedule", spec))
	return c, nil
}
