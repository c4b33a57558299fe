package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/greatsami/g-drive-clone/logger"
	"github.com/greatsami/g-drive-clone/metrics"
	"github.com/greatsami/g-drive-clone/repositories"
	"github.com/greatsami/g-drive-clone/storage"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ReplicationService interface {
	// Replicate copies one file's bytes from the local tier to the remote tier
	// and marks it replicated. Safe to run any number of times, concurrently.
	Replicate(ctx context.Context, fileID uint) error
	// EnqueuePending re-queues files still pending after olderThan.
	EnqueuePending(ctx context.Context, olderThan time.Duration) (int, error)
}

type replicationService struct {
	files repositories.FileRepository
	queue repositories.ReplicationQueue
	tiers storage.Tiers
	now   func() time.Time
}

func NewReplicationService(files repositories.FileRepository, queue repositories.ReplicationQueue, tiers storage.Tiers) ReplicationService {
	return &replicationService{files: files, queue: queue, tiers: tiers, now: time.Now}
}

func (s *replicationService) Replicate(ctx context.Context, fileID uint) error {
	file, err := s.files.GetByID(ctx, nil, fileID, true)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.ReplicationTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return nil
	}
	if err != nil {
		return s.fail(fileID, fmt.Errorf("load file: %w", err))
	}
	if file.IsFolder || file.IsReplicated() || file.StoragePath == "" {
		metrics.ReplicationTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return nil
	}

	logger.Debugf("replicating file %d (%s)", file.ID, file.StoragePath)

	rc, err := s.tiers.Local.Get(ctx, file.StoragePath)
	if err != nil {
		return s.fail(fileID, fmt.Errorf("read local: %w", err))
	}
	err = s.tiers.Remote.Put(ctx, file.StoragePath, rc)
	_ = rc.Close()
	if err != nil {
		return s.fail(fileID, fmt.Errorf("write remote: %w", err))
	}

	flipped, err := s.files.MarkReplicated(ctx, nil, file.ID)
	if err != nil {
		return s.fail(fileID, fmt.Errorf("mark replicated: %w", err))
	}
	if !flipped {
		// Either another unit got there first, or the file was purged while
		// we copied it and the remote blob is now unreferenced.
		if _, err := s.files.GetByID(ctx, nil, file.ID, true); errors.Is(err, gorm.ErrRecordNotFound) {
			if err := s.tiers.Remote.Delete(ctx, file.StoragePath); err != nil {
				return s.fail(fileID, fmt.Errorf("drop orphaned remote copy: %w", err))
			}
			logger.L().Info("dropped remote copy of purged file", zap.Uint("file_id", file.ID))
		}
		metrics.ReplicationTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return nil
	}

	metrics.ReplicationTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	logger.L().Info("file replicated", zap.Uint("file_id", file.ID), zap.Int64("size", file.FileSize))
	return nil
}

func (s *replicationService) fail(fileID uint, err error) error {
	metrics.ReplicationTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
	logger.L().Error("replication failed", zap.Uint("file_id", fileID), zap.Error(err))
	return err
}

func (s *replicationService) EnqueuePending(ctx context.Context, olderThan time.Duration) (int, error) {
	files, err := s.files.ListPendingReplication(ctx, nil, s.now().Add(-olderThan), 500)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, f := range files {
		if err := s.queue.Push(ctx, f.ID); err != nil {
			return queued, err
		}
		queued++
	}
	if queued > 0 {
		logger.L().Info("re-queued pending replications", zap.Int("count", queued))
	}
	return queued, nil
}

type ReplicationWorkerOptions struct {
	Workers  int
	RetryMax int
	Backoff  time.Duration
	PopWait  time.Duration
}

// ReplicationWorkerPool drains the replication queue with a fixed number of
// workers. A unit that still fails after RetryMax attempts is dropped; the
// pending sweep re-queues it later.
type ReplicationWorkerPool struct {
	queue   repositories.ReplicationQueue
	service ReplicationService
	opts    ReplicationWorkerOptions
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewReplicationWorkerPool(queue repositories.ReplicationQueue, service ReplicationService, opts ReplicationWorkerOptions) *ReplicationWorkerPool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 1
	}
	if opts.PopWait <= 0 {
		opts.PopWait = 5 * time.Second
	}
	return &ReplicationWorkerPool{queue: queue, service: service, opts: opts, sleep: sleepContext}
}

// Run blocks until ctx is cancelled and all workers have returned.
func (p *ReplicationWorkerPool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.loop(ctx, worker)
		}(i)
	}
	logger.L().Info("replication workers started", zap.Int("workers", p.opts.Workers))
	wg.Wait()
	logger.L().Info("replication workers stopped")
}

func (p *ReplicationWorkerPool) loop(ctx context.Context, worker int) {
	for ctx.Err() == nil {
		fileID, ok, err := p.queue.Pop(ctx, p.opts.PopWait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.L().Warn("replication queue pop failed", zap.Int("worker", worker), zap.Error(err))
			if p.sleep(ctx, time.Second) != nil {
				return
			}
			continue
		}
		if !ok {
			continue
		}
		p.process(ctx, fileID)
	}
}

func (p *ReplicationWorkerPool) process(ctx context.Context, fileID uint) {
	for attempt := 1; attempt <= p.opts.RetryMax; attempt++ {
		err := p.service.Replicate(ctx, fileID)
		if err == nil {
			return
		}
		if attempt == p.opts.RetryMax {
			logger.L().Error("replication gave up",
				zap.Uint("file_id", fileID),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return
		}
		if p.sleep(ctx, time.Duration(attempt)*p.opts.Backoff) != nil {
			return
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
