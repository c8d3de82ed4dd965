package service

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/simauction/internal/model"
	"github.com/mmeshcher/simauction/internal/repository"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

var admin = model.Caller{ID: "admin-1", Roles: []string{model.RoleAdmin}}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestService(t *testing.T, opts ...Option) (*Service, *repository.MemoryRepository, *clock) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	c := &clock{t: testNow}
	base := []Option{WithClock(c.now), WithPasswordCost(bcrypt.MinCost)}
	return NewService(repo, append(base, opts...)...), repo, c
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedAccount(t *testing.T, repo *repository.MemoryRepository, id, balance string) model.Caller {
	t.Helper()
	err := repo.CreateAccount(context.Background(), &model.Account{
		ID:      id,
		Login:   id,
		Role:    model.RoleUser,
		Balance: money(balance),
	})
	if err != nil {
		t.Fatalf("seed account %s: %v", id, err)
	}
	return model.Caller{ID: id, Roles: []string{model.RoleUser}}
}

func seedListing(t *testing.T, repo *repository.MemoryRepository, id, price string, buyNow string, end time.Time) {
	t.Helper()
	l := &model.Listing{
		ID:            id,
		Number:        "0901234567",
		Network:       "Viettel",
		Category:      "Tứ quý",
		StartingPrice: money(price),
		CurrentPrice:  money(price),
		BeautyScore:   3,
		Status:        model.ListingStatusActive,
		StartTime:     testNow.Add(-time.Hour),
		EndTime:       end,
		CreatedAt:     testNow.Add(-time.Hour),
	}
	if buyNow != "" {
		l.BuyNowPrice = decimal.NewNullDecimal(money(buyNow))
	}
	if err := repo.CreateListing(context.Background(), l); err != nil {
		t.Fatalf("seed listing %s: %v", id, err)
	}
}

func balanceOf(t *testing.T, repo *repository.MemoryRepository, id string) decimal.Decimal {
	t.Helper()
	a, err := repo.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("get account %s: %v", id, err)
	}
	return a.Balance
}

// conflictRepo всегда отвечает конфликтом на попытку фиксации.
type conflictRepo struct {
	*repository.MemoryRepository
	commits int
}

func (r *conflictRepo) CommitBid(ctx context.Context, listingID string, bid model.Bid, expectedPrice decimal.Decimal) (*model.Listing, error) {
	r.commits++
	return nil, repository.ErrConflict
}

func (r *conflictRepo) CommitSale(ctx context.Context, listingID string, bid model.Bid, expectedPrice decimal.Decimal) (*model.Listing, error) {
	r.commits++
	return nil, repository.ErrConflict
}

// brokenRepo имитирует недоступное хранилище.
type brokenRepo struct {
	*repository.MemoryRepository
}

func (r *brokenRepo) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	return nil, errors.New("connection refused")
}

func (r *brokenRepo) BidsForListing(ctx context.Context, listingID string, order model.BidOrder) iter.Seq2[model.Bid, error] {
	return func(yield func(model.Bid, error) bool) {
		yield(model.Bid{}, errors.New("connection reset"))
	}
}

func (r *brokenRepo) Ping(ctx context.Context) error {
	return errors.New("connection refused")
}

func TestStorageFailureIsUnavailable(t *testing.T) {
	svc := NewService(&brokenRepo{MemoryRepository: repository.NewMemoryRepository()})

	_, err := svc.PlaceBid(context.Background(), model.Caller{ID: "u"}, "l", money("10"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := svc.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from Ping, got %v", err)
	}
}

func TestRequireAdmin(t *testing.T) {
	svc, _, _ := newTestService(t)
	user := model.Caller{ID: "u", Roles: []string{model.RoleUser}}

	if _, err := svc.CloseAuction(context.Background(), user, "l"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for close, got %v", err)
	}
	if _, err := svc.AdjustBalance(context.Background(), user, "u", money("1")); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for balance, got %v", err)
	}
	if err := svc.DeleteListing(context.Background(), user, "l"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for delete, got %v", err)
	}
}
