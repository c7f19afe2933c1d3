package generation

import (
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reaper removes stale batch work directories and orphaned archives left
// behind by aborted or crashed generations. The core deliberately never
// cleans up after a failed batch, so this sweep is the only cleanup policy.
type Reaper struct {
	workDir string
	maxAge  time.Duration
	cron    *cron.Cron
	logger  *zap.Logger
}

func NewReaper(workDir string, maxAge time.Duration, logger *zap.Logger) *Reaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reaper{
		workDir: workDir,
		maxAge:  maxAge,
		cron:    cron.New(),
		logger:  logger,
	}
}

// Start schedules an hourly sweep.
func (r *Reaper) Start() error {
	if _, err := r.cron.AddFunc("@hourly", r.Sweep); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

func (r *Reaper) Stop() {
	r.cron.Stop()
}

// Sweep deletes every entry under the work directory older than maxAge.
func (r *Reaper) Sweep() {
	entries, err := os.ReadDir(r.workDir)
	if err != nil {
		r.logger.Warn("reaper cannot read work directory",
			zap.String("dir", r.workDir),
			zap.Error(err))
		return
	}

	cutoff := time.Now().Add(-r.maxAge)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(r.workDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			r.logger.Warn("reaper failed to remove stale batch",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		r.logger.Info("reaped stale batch artifacts",
			zap.Int("removed", removed),
			zap.String("dir", r.workDir))
	}
}
