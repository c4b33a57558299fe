package services

import (
	"context"
	"time"

	"github.com/greatsami/g-drive-clone/logger"
	"github.com/greatsami/g-drive-clone/repositories"

	"go.uber.org/zap"
)

type CleanupService interface {
	// PurgeExpiredTrash permanently deletes trash older than the retention window.
	PurgeExpiredTrash(ctx context.Context) (int64, error)
	// RequeueStalePending re-enqueues files whose replication never completed.
	RequeueStalePending(ctx context.Context) (int, error)
	// StartCleanupWorkers runs both sweeps on their configured intervals until ctx ends.
	StartCleanupWorkers(ctx context.Context)
}

type cleanupService struct {
	files       repositories.FileRepository
	purger      *purger
	replication ReplicationService
	now         func() time.Time
}

func NewCleanupService(files repositories.FileRepository, purger *purger, replication ReplicationService) CleanupService {
	return &cleanupService{
		files:       files,
		purger:      purger,
		replication: replication,
		now:         time.Now,
	}
}

const purgeBatchSize = 100

func (s *cleanupService) PurgeExpiredTrash(ctx context.Context) (int64, error) {
	retention := time.Duration(currentConfig().Trash.RetentionDays) * 24 * time.Hour
	cutoff := s.now().Add(-retention)

	var removed int64
	for {
		files, err := s.files.ListTrashedBefore(ctx, nil, cutoff, purgeBatchSize)
		if err != nil {
			return removed, err
		}
		var batch int64
		for _, f := range files {
			if f.IsRoot() {
				continue
			}
			n, err := s.purger.purge(ctx, f.UserID, f.ID)
			if err != nil {
				return removed, err
			}
			batch += n
		}
		removed += batch
		if len(files) < purgeBatchSize || batch == 0 {
			break
		}
	}

	if removed > 0 {
		logger.L().Info("expired trash purged", zap.Int64("rows", removed), zap.Time("cutoff", cutoff))
	}
	return removed, nil
}

func (s *cleanupService) RequeueStalePending(ctx context.Context) (int, error) {
	staleAfter := time.Duration(currentConfig().Replication.StaleAfter) * time.Second
	return s.replication.EnqueuePending(ctx, staleAfter)
}

func (s *cleanupService) StartCleanupWorkers(ctx context.Context) {
	cfg := currentConfig()
	if cfg.Trash.PurgeEnabled {
		go s.loop(ctx, "trash purge", time.Duration(cfg.Trash.CleanupInterval)*time.Second, func(ctx context.Context) error {
			_, err := s.PurgeExpiredTrash(ctx)
			return err
		})
	}
	go s.loop(ctx, "pending replication sweep", time.Duration(cfg.Replication.SweepInterval)*time.Second, func(ctx context.Context) error {
		_, err := s.RequeueStalePending(ctx)
		return err
	})
}

func (s *cleanupService) loop(ctx context.Context, name string, interval time.Duration, run func(context.Context) error) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := run(ctx); err != nil {
				logger.L().Warn("cleanup task failed", zap.String("task", name), zap.Error(err))
			}
		}
	}
}
