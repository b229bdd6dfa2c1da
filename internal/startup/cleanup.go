// Package startup holds boot-time housekeeping.
package startup

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// CleanupScratchDirs removes stranded per-session scratch directories from a
// previous run. Sessions never survive a restart, so anything under the
// scratch root is garbage. Returns the number of entries removed.
func CleanupScratchDirs(dir string, log *slog.Logger) (int, error) {
	if log == nil {
		log = slog.Default()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading scratch root: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Warn("could not remove stranded scratch entry",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Info("removed stranded scratch entries", slog.Int("count", removed))
	}
	return removed, nil
}
