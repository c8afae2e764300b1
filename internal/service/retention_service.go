package service

import (
	"context"
	"time"

	"github.com/deLKM/Genteblog/internal/metrics"
	"github.com/deLKM/Genteblog/internal/store"
	"go.uber.org/zap"
)

const defaultRetention = 30 * 24 * time.Hour

// SweepResult 记录一次清理删除的记录数。
type SweepResult struct {
	Revisions    int       `json:"revisions"`
	Interactions int       `json:"interactions"`
	Cutoff       time.Time `json:"cutoff"`
}

// RetentionService 删除过期的修订记录与已取消的互动。
type RetentionService struct {
	store     store.Store
	retention time.Duration
	log       *zap.Logger
	metrics   *metrics.Metrics
	clock     Clock
}

func NewRetentionService(s store.Store) *RetentionService {
	return &RetentionService{store: s, retention: defaultRetention, log: zap.NewNop()}
}

func (s *RetentionService) WithRetention(d time.Duration) *RetentionService {
	if d > 0 {
		s.retention = d
	}
	return s
}

func (s *RetentionService) WithLogger(l *zap.Logger) *RetentionService {
	if l != nil {
		s.log = l
	}
	return s
}

func (s *RetentionService) WithMetrics(m *metrics.Metrics) *RetentionService {
	s.metrics = m
	return s
}

func (s *RetentionService) WithClock(c Clock) *RetentionService {
	s.clock = c
	return s
}

// Sweep deletes revisions created before the cutoff and inactive
// interactions last updated before it, in one transaction.
func (s *RetentionService) Sweep(ctx context.Context) (result SweepResult, err error) {
	defer func() { s.metrics.Operation("sweep", err) }()

	cutoff := utcNow(s.clock).Add(-s.retention)
	result.Cutoff = cutoff
	scope := []store.Collection{store.Revisions, store.Interactions}
	err = s.store.WithTransaction(ctx, scope, store.ReadWrite, func(tx store.Tx) error {
		revisions, err := tx.Revisions().DeleteBefore(cutoff)
		if err != nil {
			return err
		}
		interactions, err := tx.Interactions().DeleteInactiveBefore(cutoff)
		if err != nil {
			return err
		}
		result.Revisions, result.Interactions = revisions, interactions
		return nil
	})
	if err != nil {
		return SweepResult{Cutoff: cutoff}, err
	}

	s.metrics.Swept(string(store.Revisions), result.Revisions)
	s.metrics.Swept(string(store.Interactions), result.Interactions)
	s.log.Info("retention sweep finished",
		zap.Time("cutoff", cutoff),
		zap.Int("revisions", result.Revisions),
		zap.Int("interactions", result.Interactions),
	)
	return result, nil
}

// Run sweeps once immediately and then every interval until ctx is done.
// A failed sweep is logged and retried on the next tick.
func (s *RetentionService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("retention sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
