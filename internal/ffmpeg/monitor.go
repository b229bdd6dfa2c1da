package ffmpeg

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Monitor periodically samples CPU and memory usage of an encoder process
// and logs it. Sampling stops when the context is cancelled or the process
// disappears.
type Monitor struct {
	pid      int32
	interval time.Duration
	log      *slog.Logger
}

// NewMonitor creates a process monitor for the given pid.
func NewMonitor(log *slog.Logger, pid int, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{
		pid:      int32(pid),
		interval: interval,
		log:      log,
	}
}

// Run samples until the context is cancelled. It is meant to be called in
// its own goroutine.
func (m *Monitor) Run(ctx context.Context) {
	proc, err := process.NewProcessWithContext(ctx, m.pid)
	if err != nil {
		m.log.Debug("process monitor unavailable",
			slog.Int("pid", int(m.pid)),
			slog.String("error", err.Error()),
		)
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		running, err := proc.IsRunningWithContext(ctx)
		if err != nil || !running {
			return
		}

		cpu, err := proc.CPUPercentWithContext(ctx)
		if err != nil {
			continue
		}
		var rss uint64
		if mem, err := proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
			rss = mem.RSS
		}

		m.log.Debug("encoder resource usage",
			slog.Int("pid", int(m.pid)),
			slog.Float64("cpu_percent", cpu),
			slog.Uint64("rss_bytes", rss),
		)
	}
}
