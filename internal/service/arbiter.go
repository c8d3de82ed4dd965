package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/simauction/internal/ids"
	"github.com/mmeshcher/simauction/internal/metrics"
	"github.com/mmeshcher/simauction/internal/model"
	"github.com/mmeshcher/simauction/internal/repository"
	"github.com/mmeshcher/simauction/internal/validation"
)

const (
	opPlaceBid = "place_bid"
	opBuyNow   = "buy_now"
	opClose    = "close"
)

// PlaceBid принимает ставку вызывающего по лоту.
// При конкурентном изменении цены проверки повторяются заново, не более maxAttempts раз.
func (s *Service) PlaceBid(ctx context.Context, caller model.Caller, listingID string, amount decimal.Decimal) (*model.Listing, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if err := validation.ValidateAmount(amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		l, err := s.repo.GetListing(ctx, listingID)
		if err != nil {
			return nil, s.reject(opPlaceBid, s.storageError("get listing", err))
		}

		now := s.now()
		if !l.IsOpen(now) {
			return nil, s.reject(opPlaceBid, ErrAuctionClosed)
		}
		if !amount.GreaterThan(l.CurrentPrice) {
			return nil, s.reject(opPlaceBid, fmt.Errorf("%w: current price is %s", ErrBidTooLow, l.CurrentPrice.StringFixed(2)))
		}
		if err := s.checkFunds(ctx, caller.ID, amount); err != nil {
			return nil, s.reject(opPlaceBid, err)
		}

		bid := model.Bid{
			ID:        ids.NewSortable(),
			ListingID: listingID,
			BidderID:  caller.ID,
			Amount:    amount,
			CreatedAt: now,
		}
		updated, err := s.repo.CommitBid(ctx, listingID, bid, l.CurrentPrice)
		if err == nil {
			metrics.ObserveOutcome(opPlaceBid, metrics.OutcomeAccepted)
			s.logger.Debug("bid accepted",
				zap.String("listing_id", listingID),
				zap.String("bidder_id", caller.ID),
				zap.String("amount", amount.StringFixed(2)),
				zap.Int("attempt", attempt),
			)
			return updated, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, s.reject(opPlaceBid, s.storageError("commit bid", err))
		}
		s.conflict(opPlaceBid, listingID, attempt)
	}

	return nil, s.reject(opPlaceBid, ErrContention)
}

// BuyNow продаёт лот вызывающему по цене выкупа: ставка, переход в SOLD и списание баланса
// выполняются одной атомарной операцией.
func (s *Service) BuyNow(ctx context.Context, caller model.Caller, listingID string) (*model.Listing, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		l, err := s.repo.GetListing(ctx, listingID)
		if err != nil {
			return nil, s.reject(opBuyNow, s.storageError("get listing", err))
		}

		now := s.now()
		if !l.IsOpen(now) {
			return nil, s.reject(opBuyNow, ErrAuctionClosed)
		}
		if !l.BuyNowAvailable() {
			return nil, s.reject(opBuyNow, ErrNoBuyNowPrice)
		}
		price := l.BuyNowPrice.Decimal
		if err := s.checkFunds(ctx, caller.ID, price); err != nil {
			return nil, s.reject(opBuyNow, err)
		}

		bid := model.Bid{
			ID:        ids.NewSortable(),
			ListingID: listingID,
			BidderID:  caller.ID,
			Amount:    price,
			CreatedAt: now,
		}
		sold, err := s.repo.CommitSale(ctx, listingID, bid, l.CurrentPrice)
		if err == nil {
			metrics.ObserveOutcome(opBuyNow, metrics.OutcomeSold)
			s.logger.Info("listing bought now",
				zap.String("listing_id", listingID),
				zap.String("buyer_id", caller.ID),
				zap.String("price", price.StringFixed(2)),
			)
			return sold, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, s.reject(opBuyNow, s.storageError("commit sale", err))
		}
		s.conflict(opBuyNow, listingID, attempt)
	}

	return nil, s.reject(opBuyNow, ErrContention)
}

// CloseAuction принудительно закрывает лот по команде администратора.
// Повторный вызов для закрытого лота возвращает его текущее состояние.
func (s *Service) CloseAuction(ctx context.Context, caller model.Caller, listingID string) (*model.Listing, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return s.closeListing(ctx, listingID)
}

// closeListing выбирает победителя и фиксирует закрытие лота.
// Кандидаты перебираются по убыванию ставки, по одному на участника; побеждает первый,
// чей баланс покрывает его ставку. Если платёжеспособных нет, лот завершается без победителя.
func (s *Service) closeListing(ctx context.Context, listingID string) (*model.Listing, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		l, err := s.repo.GetListing(ctx, listingID)
		if err != nil {
			return nil, s.reject(opClose, s.storageError("get listing", err))
		}
		if l.Status.IsTerminal() {
			return l, nil
		}
		if l.Status != model.ListingStatusActive {
			return nil, fmt.Errorf("%w: listing %s is %s", ErrValidation, listingID, l.Status)
		}

		candidates, err := s.closeCandidates(ctx, listingID)
		if err != nil {
			return nil, s.reject(opClose, s.storageError("load bids", err))
		}

		closed, err := s.settle(ctx, l, candidates)
		if err == nil {
			outcome := metrics.OutcomeEnded
			if closed.Status == model.ListingStatusSold {
				outcome = metrics.OutcomeSold
			}
			metrics.ObserveOutcome(opClose, outcome)
			s.logger.Info("auction closed",
				zap.String("listing_id", listingID),
				zap.String("status", string(closed.Status)),
			)
			return closed, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, s.reject(opClose, s.storageError("commit close", err))
		}
		s.conflict(opClose, listingID, attempt)
	}

	return nil, s.reject(opClose, ErrContention)
}

// closeCandidates возвращает лучшую ставку каждого участника по убыванию суммы.
func (s *Service) closeCandidates(ctx context.Context, listingID string) ([]model.Bid, error) {
	var out []model.Bid
	seen := make(map[string]struct{})
	for b, err := range s.repo.BidsForListing(ctx, listingID, model.BidOrderAmountDesc) {
		if err != nil {
			return nil, err
		}
		if _, ok := seen[b.BidderID]; ok {
			continue
		}
		seen[b.BidderID] = struct{}{}
		out = append(out, b)
	}
	return out, nil
}

func (s *Service) settle(ctx context.Context, l *model.Listing, candidates []model.Bid) (*model.Listing, error) {
	closedAt := s.now()
	for i := range candidates {
		winner := candidates[i]
		closed, err := s.repo.CommitClose(ctx, l.ID, model.CloseOutcome{
			ExpectedPrice: l.CurrentPrice,
			Winner:        &winner,
			ClosedAt:      closedAt,
		})
		if errors.Is(err, repository.ErrInsufficientFunds) {
			s.logger.Warn("winning bidder cannot pay, trying next bid",
				zap.String("listing_id", l.ID),
				zap.String("bidder_id", winner.BidderID),
				zap.String("amount", winner.Amount.StringFixed(2)),
			)
			continue
		}
		return closed, err
	}

	return s.repo.CommitClose(ctx, l.ID, model.CloseOutcome{
		ExpectedPrice: l.CurrentPrice,
		ClosedAt:      closedAt,
	})
}

func (s *Service) checkFunds(ctx context.Context, accountID string, amount decimal.Decimal) error {
	acc, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return s.storageError("get account", err)
	}
	if acc.Balance.LessThan(amount) {
		return fmt.Errorf("%w: balance %s", repository.ErrInsufficientFunds, acc.Balance.StringFixed(2))
	}
	return nil
}

func (s *Service) conflict(op, listingID string, attempt int) {
	metrics.ObserveConflict(op)
	s.logger.Warn("listing changed concurrently, retrying",
		zap.String("op", op),
		zap.String("listing_id", listingID),
		zap.Int("attempt", attempt),
	)
}

// reject учитывает отказ арбитра в метриках и возвращает ошибку без изменений.
func (s *Service) reject(op string, err error) error {
	metrics.ObserveOutcome(op, outcomeOf(err))
	s.logger.Debug("arbiter rejected request", zap.String("op", op), zap.Error(err))
	return err
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrAuctionClosed):
		return metrics.OutcomeAuctionClosed
	case errors.Is(err, ErrBidTooLow):
		return metrics.OutcomeBidTooLow
	case errors.Is(err, ErrNoBuyNowPrice):
		return metrics.OutcomeNoBuyNow
	case errors.Is(err, repository.ErrInsufficientFunds):
		return metrics.OutcomeInsufficientFunds
	case errors.Is(err, ErrContention):
		return metrics.OutcomeContention
	}
	return metrics.OutcomeError
}
