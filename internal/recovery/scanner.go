// Package recovery returns abandoned in-flight items to the ready pool.
// An item left in processing past the stuck-timeout (a crashed or wedged
// dispatcher invocation) is reset without penalty: recovery is not a
// failed attempt.
package recovery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/packhub/boxflow/internal/repository"
)

// Scanner periodically sweeps the processing set for abandoned items.
type Scanner struct {
	repo         repository.QueueRepository
	stuckTimeout time.Duration
	logger       *zap.Logger

	// Optional metric hook (nil = no-op).
	onRecovered func(count int)
}

func NewScanner(repo repository.QueueRepository, stuckTimeout time.Duration, logger *zap.Logger, onRecovered func(int)) *Scanner {
	if onRecovered == nil {
		onRecovered = func(int) {}
	}
	return &Scanner{
		repo:         repo,
		stuckTimeout: stuckTimeout,
		logger:       logger,
		onRecovered:  onRecovered,
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("recovery scanner started",
		zap.Duration("interval", interval),
		zap.Duration("stuck_timeout", s.stuckTimeout),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("recovery scanner stopping")
			return
		case <-ticker.C:
			if _, err := s.Scan(ctx); err != nil {
				s.logger.Error("recovery scan error", zap.Error(err))
			}
		}
	}
}

// Scan finds abandoned processing items and resets them to pending.
// An item is abandoned if started_at predates the stuck-timeout, or is
// absent despite status=processing (which signals corruption; the reset
// repairs it). The resets are batched but need not be atomic across items.
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.stuckTimeout)

	stuck, err := s.repo.FindStuck(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(stuck) == 0 {
		return 0, nil
	}

	ids := make([]string, len(stuck))
	for i, item := range stuck {
		ids[i] = item.ID
		s.logger.Warn("abandoned item found",
			zap.String("item_id", item.ID),
			zap.String("order_number", item.OrderNumber),
			zap.Bool("missing_started_at", item.StartedAt == nil),
		)
	}

	reset, err := s.repo.ResetStuck(ctx, ids)
	if err != nil {
		return 0, err
	}

	s.onRecovered(reset)
	s.logger.Info("abandoned items returned to ready pool", zap.Int("count", reset))
	return reset, nil
}
