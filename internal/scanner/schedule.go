package scanner

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Schedule runs full rescans on the configured cron expression. Returns nil
// without starting anything when no expression is configured.
func Schedule(ctx context.Context, s *Scanner, log *slog.Logger) (*cron.Cron, error) {
	expr := s.cfg.Library.RescanCron
	if expr == "" {
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(expr, func() {
		log.Info("scheduled rescan starting", slog.String("cron", expr))
		if err := s.ScanAll(ctx); err != nil {
			log.Error("scheduled rescan failed", slog.String("error", err.Error()))
			return
		}
		if err := s.Cleanup(ctx); err != nil {
			log.Error("scheduled cleanup failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	log.Info("rescan schedule active", slog.String("cron", expr))
	return c, nil
}
