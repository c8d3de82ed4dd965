// Package service реализует бизнес-логику аукциона: арбитр ставок, каталог лотов,
// учётные записи и фоновое закрытие истёкших аукционов.
package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/simauction/internal/model"
	"github.com/mmeshcher/simauction/internal/repository"
)

var (
	// ErrAuctionClosed возвращается для завершённого лота или лота с истёкшим временем.
	ErrAuctionClosed = errors.New("auction closed")
	// ErrBidTooLow возвращается, если ставка не превышает текущую цену.
	ErrBidTooLow = errors.New("bid amount too low")
	// ErrNoBuyNowPrice возвращается, если у лота нет доступной цены выкупа.
	ErrNoBuyNowPrice = errors.New("buy-now price not available")
	// ErrContention возвращается, если конкурентные изменения лота не позволили зафиксировать операцию.
	ErrContention = errors.New("listing contended, retry later")
	// ErrValidation возвращается при некорректных входных данных.
	ErrValidation = errors.New("validation error")
	// ErrUnavailable возвращается при сбое хранилища. Операцию можно повторить.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrInvalidCredentials возвращается при неверном логине или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden возвращается, если у вызывающего нет нужной роли.
	ErrForbidden = errors.New("forbidden")
)

// Ledger описывает реестр лотов и ставок.
type Ledger interface {
	CreateListing(ctx context.Context, l *model.Listing) error
	GetListing(ctx context.Context, id string) (*model.Listing, error)
	UpdateListing(ctx context.Context, l *model.Listing) (*model.Listing, error)
	PublishListing(ctx context.Context, id string, start, end time.Time) (*model.Listing, error)
	DeleteListing(ctx context.Context, id string) error
	ListActive(ctx context.Context, f model.ListingFilter, now time.Time) ([]model.Listing, error)
	ListAll(ctx context.Context, limit, offset int) ([]model.Listing, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Listing, error)
	BidsForListing(ctx context.Context, listingID string, order model.BidOrder) iter.Seq2[model.Bid, error]
	CommitBid(ctx context.Context, listingID string, bid model.Bid, expectedPrice decimal.Decimal) (*model.Listing, error)
	CommitSale(ctx context.Context, listingID string, bid model.Bid, expectedPrice decimal.Decimal) (*model.Listing, error)
	CommitClose(ctx context.Context, listingID string, outcome model.CloseOutcome) (*model.Listing, error)
}

// AccountStore описывает хранилище учётных записей участников.
type AccountStore interface {
	CreateAccount(ctx context.Context, a *model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccountByLogin(ctx context.Context, login string) (*model.Account, error)
	ListAccounts(ctx context.Context, limit, offset int) ([]model.Account, error)
	AdjustBalance(ctx context.Context, accountID string, delta decimal.Decimal) (decimal.Decimal, error)
}

// Repository объединяет реестр аукциона и хранилище учётных записей.
type Repository interface {
	Ledger
	AccountStore
	Ping(ctx context.Context) error
	Close() error
}

// DefaultMaxAttempts ограничивает число попыток сравнения-и-замены.
const DefaultMaxAttempts = 3

// Service содержит бизнес-логику аукциона.
type Service struct {
	repo        Repository
	logger      *zap.Logger
	now         func() time.Time
	maxAttempts int
	bcryptCost  int
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxAttempts задаёт число попыток фиксации при конкурентных изменениях.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithLogger задаёт логгер сервиса.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPasswordCost задаёт стоимость bcrypt для хэширования паролей.
func WithPasswordCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// NewService создаёт новый сервис поверх указанного репозитория.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		logger:      zap.NewNop(),
		now:         func() time.Time { return time.Now().UTC() },
		maxAttempts: DefaultMaxAttempts,
		bcryptCost:  defaultPasswordCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// storageError пропускает доменные ошибки хранилища и сводит прочие к ErrUnavailable.
func (s *Service) storageError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrInsufficientFunds),
		errors.Is(err, repository.ErrAccountExists),
		errors.Is(err, repository.ErrListingHasBids),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, repository.ErrOutOfRange):
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	s.logger.Error("storage failure", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

func requireAdmin(caller model.Caller) error {
	if !caller.IsAdmin() {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return nil
}
