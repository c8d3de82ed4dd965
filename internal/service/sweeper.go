package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/simauction/internal/metrics"
	"github.com/mmeshcher/simauction/internal/model"
)

// sweepBatch ограничивает число лотов, закрываемых за один проход.
const sweepBatch = 100

// StartSweeper периодически закрывает активные лоты с истёкшим временем окончания.
// Блокируется до отмены ctx.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepExpired(ctx)
		}
	}
}

// SweepExpired закрывает одну партию истёкших лотов и возвращает число закрытых.
func (s *Service) SweepExpired(ctx context.Context) int {
	expired, err := s.repo.ListExpired(ctx, s.now(), sweepBatch)
	if err != nil {
		s.logger.Error("failed to list expired listings", zap.Error(err))
		return 0
	}

	closed := 0
	for _, l := range expired {
		if ctx.Err() != nil {
			return closed
		}
		res, err := s.closeListing(ctx, l.ID)
		if err != nil {
			metrics.ObserveSweep(metrics.OutcomeError)
			s.logger.Error("failed to close expired listing",
				zap.String("listing_id", l.ID),
				zap.Error(err),
			)
			continue
		}
		closed++
		outcome := metrics.OutcomeEnded
		if res.Status == model.ListingStatusSold {
			outcome = metrics.OutcomeSold
		}
		metrics.ObserveSweep(outcome)
		s.logger.Info("expired listing reconciled",
			zap.String("listing_id", l.ID),
			zap.String("status", string(res.Status)),
		)
	}
	return closed
}
