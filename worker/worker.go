// Package worker implements the stranded-review sweeper.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/roboskills/skillhub/config"
	"github.com/roboskills/skillhub/workflow"
)

// Worker periodically re-drives submissions stuck in platform_review without
// a persisted report. In normal operation the platform review completes
// synchronously inside the submit call; the sweeper only matters after a
// crash between the status write and the report write.
type Worker struct {
	cfg    *config.WorkerConfig
	svc    *workflow.Service
	logger *slog.Logger
}

// New creates a sweeper worker.
func New(cfg *config.WorkerConfig, svc *workflow.Service, logger *slog.Logger) *Worker {
	return &Worker{
		cfg:    cfg,
		svc:    svc,
		logger: logger,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	if !w.cfg.Enabled {
		w.logger.Info("sweeper disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	interval := time.Duration(w.cfg.SweepInterval) * time.Minute
	strandedAfter := time.Duration(w.cfg.StrandedAfter) * time.Minute
	w.logger.Info("starting sweeper", "interval", interval, "stranded_after", strandedAfter)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			completed, err := w.svc.SweepStranded(ctx, strandedAfter)
			if err != nil {
				w.logger.Error("sweep failed", "error", err)
				continue
			}
			if completed > 0 {
				w.logger.Info("sweep completed stranded reviews", "count", completed)
			}
		}
	}
}
