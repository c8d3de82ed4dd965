package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/simauction/internal/ids"
	"github.com/mmeshcher/simauction/internal/model"
	"github.com/mmeshcher/simauction/internal/repository"
	"github.com/mmeshcher/simauction/internal/validation"
)

// ListingDetail содержит лот и его ставки, новые первыми.
type ListingDetail struct {
	Listing *model.Listing
	Bids    []model.Bid
}

// PublishParams задаёт окно торгов при публикации черновика.
// EndTime имеет приоритет над Duration.
type PublishParams struct {
	Duration time.Duration
	EndTime  *time.Time
}

// ListActive возвращает лоты, принимающие ставки, с учётом фильтра.
func (s *Service) ListActive(ctx context.Context, f model.ListingFilter) ([]model.Listing, error) {
	listings, err := s.repo.ListActive(ctx, f.Normalize(), s.now())
	if err != nil {
		return nil, s.storageError("list active", err)
	}
	return listings, nil
}

// GetListingDetail возвращает лот со списком ставок.
func (s *Service) GetListingDetail(ctx context.Context, id string) (*ListingDetail, error) {
	l, err := s.repo.GetListing(ctx, id)
	if err != nil {
		return nil, s.storageError("get listing", err)
	}

	bids := make([]model.Bid, 0, l.BidCount)
	for b, err := range s.repo.BidsForListing(ctx, id, model.BidOrderNewest) {
		if err != nil {
			return nil, s.storageError("list bids", err)
		}
		bids = append(bids, b)
	}
	return &ListingDetail{Listing: l, Bids: bids}, nil
}

// CreateListing создаёт лот. Если указано окно торгов, лот сразу становится активным.
func (s *Service) CreateListing(ctx context.Context, caller model.Caller, in validation.ListingFields) (*model.Listing, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	in.Number = validation.NormalizeNumber(in.Number)
	if err := validation.ValidateListing(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := s.now()
	l := &model.Listing{
		ID:            ids.New(),
		Number:        in.Number,
		Network:       in.Network,
		Category:      in.Category,
		StartingPrice: in.StartingPrice,
		CurrentPrice:  in.StartingPrice,
		BuyNowPrice:   in.BuyNowPrice,
		BeautyScore:   in.BeautyScore,
		Description:   in.Description,
		Status:        model.ListingStatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.StartTime != nil {
		l.Status = model.ListingStatusActive
		l.StartTime = in.StartTime.UTC()
		l.EndTime = in.EndTime.UTC()
	}

	if err := s.repo.CreateListing(ctx, l); err != nil {
		return nil, s.storageError("create listing", err)
	}
	s.logger.Info("listing created",
		zap.String("listing_id", l.ID),
		zap.String("number", l.Number),
		zap.String("status", string(l.Status)),
	)
	return l, nil
}

// UpdateListing изменяет поля лота. Стартовая цена и окно торгов меняются только у черновика.
func (s *Service) UpdateListing(ctx context.Context, caller model.Caller, id string, in validation.ListingFields) (*model.Listing, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	cur, err := s.repo.GetListing(ctx, id)
	if err != nil {
		return nil, s.storageError("get listing", err)
	}
	if cur.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: listing %s is %s", ErrAuctionClosed, id, cur.Status)
	}
	if cur.Status != model.ListingStatusDraft {
		in.StartingPrice = cur.StartingPrice
		start, end := cur.StartTime, cur.EndTime
		in.StartTime, in.EndTime = &start, &end
	}

	in.Number = validation.NormalizeNumber(in.Number)
	if err := validation.ValidateListing(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	upd := &model.Listing{
		ID:            id,
		Number:        in.Number,
		Network:       in.Network,
		Category:      in.Category,
		StartingPrice: in.StartingPrice,
		BuyNowPrice:   in.BuyNowPrice,
		BeautyScore:   in.BeautyScore,
		Description:   in.Description,
		UpdatedAt:     s.now(),
	}
	if in.StartTime != nil {
		upd.StartTime = in.StartTime.UTC()
		upd.EndTime = in.EndTime.UTC()
	}

	l, err := s.repo.UpdateListing(ctx, upd)
	if errors.Is(err, repository.ErrConflict) {
		return nil, fmt.Errorf("%w: listing %s closed during update", ErrAuctionClosed, id)
	}
	if err != nil {
		return nil, s.storageError("update listing", err)
	}
	return l, nil
}

// PublishListing открывает торги по черновику с текущего момента.
func (s *Service) PublishListing(ctx context.Context, caller model.Caller, id string, p PublishParams) (*model.Listing, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	start := s.now()
	end := start.Add(p.Duration)
	if p.EndTime != nil {
		end = p.EndTime.UTC()
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end time must be in the future", ErrValidation)
	}

	l, err := s.repo.PublishListing(ctx, id, start, end)
	if errors.Is(err, repository.ErrConflict) {
		return nil, fmt.Errorf("%w: only draft listings can be published", ErrValidation)
	}
	if err != nil {
		return nil, s.storageError("publish listing", err)
	}
	s.logger.Info("listing published", zap.String("listing_id", id), zap.Time("end_time", end))
	return l, nil
}

// DeleteListing удаляет лот без ставок.
func (s *Service) DeleteListing(ctx context.Context, caller model.Caller, id string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if err := s.repo.DeleteListing(ctx, id); err != nil {
		return s.storageError("delete listing", err)
	}
	s.logger.Info("listing deleted", zap.String("listing_id", id))
	return nil
}

// ListAllListings возвращает все лоты для администратора, новые первыми.
func (s *Service) ListAllListings(ctx context.Context, caller model.Caller, limit, offset int) ([]model.Listing, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > model.MaxPageSize {
		limit = model.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	listings, err := s.repo.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, s.storageError("list listings", err)
	}
	return listings, nil
}
